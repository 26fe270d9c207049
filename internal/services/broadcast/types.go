package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"castbot/internal/storage"
	kit "castbot/internal/transport"
	logx "castbot/pkg/logx"

	"golang.org/x/time/rate"
)

type Config struct {
	RatePerSec int
	RetryMax   int
}

// Content is the serialized message payload stored with a scheduled
// broadcast. Either a message reference (copied verbatim on delivery, so
// media and formatting survive) or plain text.
type Content struct {
	MessageID int    `json:"message_id,omitempty"`
	ChatID    int64  `json:"chat_id,omitempty"`
	Text      string `json:"text,omitempty"`
}

// Encode serializes c for storage.
func (c Content) Encode() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeContent parses a stored payload. A payload that decodes but
// references nothing sendable is reported as an error so the caller can
// stop retrying it.
func DecodeContent(raw string) (Content, error) {
	var c Content
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Content{}, fmt.Errorf("decode broadcast content: %w", err)
	}
	if c.MessageID == 0 && strings.TrimSpace(c.Text) == "" {
		return Content{}, errors.New("broadcast content is empty")
	}
	return c, nil
}

// Report summarizes one fan-out run.
type Report struct {
	Total  int
	Sent   int
	Failed int
}

// Service fans a broadcast out to every subscriber, sequentially, under a
// rate limit (Telegram throttles bots that send too fast).
type Service struct {
	mu  sync.Mutex
	cfg Config

	adapter kit.Adapter
	store   storage.Store
	log     logx.Logger

	limiter *rate.Limiter
}
