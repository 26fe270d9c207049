package config

type Config struct {
	Telegram  TelegramConfig   `json:"telegram"`
	Logging   LoggingConfig    `json:"logging"`
	Storage   StorageConfig    `json:"storage"`
	Broadcast *BroadcastConfig `json:"broadcast,omitempty"`
	Delivery  *DeliveryConfig  `json:"delivery,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// AdminUserIDs lists operators allowed to drive the scheduling dialog
	// and broadcast commands. Everyone else is a plain subscriber.
	AdminUserIDs []int64 `json:"admin_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the broadcast store backend.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "memory": in-process store, lost on restart (tests, dry runs)
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// BroadcastConfig controls the fan-out sender.
//
// Defaults (when fields are omitted/zero):
//   - rate_per_sec: 10
//   - retry_max: 2
type BroadcastConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"`
	RetryMax   int `json:"retry_max,omitempty"`
}

// DeliveryConfig controls the due-broadcast poller.
//
// Enabled is a pointer so that merely writing a delivery section (to set
// the timezone, say) does not switch the poller off: the poller runs
// unless enabled is explicitly false.
// PollInterval is a Go duration string; default "1m".
// Timezone is an IANA name used when combining operator date+time input;
// empty means the host local zone.
// MaxAttempts caps delivery retries for a persistently failing record;
// 0 disables the cap (retry every cycle forever).
type DeliveryConfig struct {
	Enabled      *bool  `json:"enabled,omitempty"`
	PollInterval string `json:"poll_interval,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
	MaxAttempts  int    `json:"max_attempts,omitempty"`
}
