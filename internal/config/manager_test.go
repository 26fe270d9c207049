package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
  admin_user_ids: [7, 8]
logging:
  level: debug
  console: true
storage:
  driver: sqlite
  path: bot.db
delivery:
  enabled: true
  poll_interval: 30s
  max_attempts: 5
`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.AdminUserIDs) != 2 || cfg.Telegram.AdminUserIDs[1] != 8 {
		t.Fatalf("admins = %v", cfg.Telegram.AdminUserIDs)
	}
	if cfg.Delivery == nil || cfg.Delivery.PollInterval != "30s" || cfg.Delivery.MaxAttempts != 5 {
		t.Fatalf("delivery = %+v", cfg.Delivery)
	}
	if cfg.Broadcast != nil {
		t.Fatalf("broadcast section should be nil when omitted, got %+v", cfg.Broadcast)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
  admin_user_ids: [7]
  shceduled: oops
logging:
  level: info
  console: true
storage:
  driver: memory
`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestDuration(t *testing.T) {
	t.Parallel()
	const def = 45 * time.Second
	cases := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", def, false},
		{"  ", def, false},
		{"0s", def, false},
		{"30s", 30 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"-1s", 0, true},
		{"fast", 0, true},
	}
	for _, tc := range cases {
		got, err := Duration("delivery.poll_interval", tc.raw, def)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Duration(%q) accepted, want error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("Duration(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Duration(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestLoadRejectsTrailingJSON(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json",
		`{"telegram":{"token":"t","admin_user_ids":[1]},"logging":{"level":"info","console":true},"storage":{"driver":"memory"}}{"extra":1}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("trailing JSON accepted")
	}
}
