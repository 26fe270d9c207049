package app

import (
	"testing"
	"time"

	"castbot/internal/config"
)

func boolPtr(b bool) *bool { return &b }

func TestMapDeliveryConfig(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name         string
		delivery     *config.DeliveryConfig
		wantEnabled  bool
		wantInterval time.Duration
	}{
		// The poller is the bot's core feature: it runs unless switched
		// off explicitly, whether or not the section is written out.
		{"section omitted", nil, true, 0},
		{"section present without enabled", &config.DeliveryConfig{Timezone: "UTC"}, true, time.Minute},
		{"explicitly disabled", &config.DeliveryConfig{Enabled: boolPtr(false)}, false, time.Minute},
		{"enabled with interval", &config.DeliveryConfig{Enabled: boolPtr(true), PollInterval: "30s"}, true, 30 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			dc, err := mapDeliveryConfig(&config.Config{Delivery: tc.delivery})
			if err != nil {
				t.Fatal(err)
			}
			if dc.Enabled != tc.wantEnabled {
				t.Fatalf("enabled = %v, want %v", dc.Enabled, tc.wantEnabled)
			}
			if dc.PollInterval != tc.wantInterval {
				t.Fatalf("interval = %v, want %v", dc.PollInterval, tc.wantInterval)
			}
		})
	}
}

func TestMapDeliveryConfigRejectsBadInterval(t *testing.T) {
	t.Parallel()
	_, err := mapDeliveryConfig(&config.Config{
		Delivery: &config.DeliveryConfig{PollInterval: "soon"},
	})
	if err == nil {
		t.Fatal("bad poll_interval accepted")
	}
}
