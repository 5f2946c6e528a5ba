package app

import (
	"context"
	"strings"
	"testing"

	"github.com/SoloWolfStudios/BoostBotTracker/internal/config"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func validTestConfig() *config.Config {
	return &config.Config{
		Discord: config.DiscordConfig{
			Token:             "token-abc",
			CreatureChannelID: "111",
			BossChannelID:     "222",
		},
	}
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string // substring, empty = valid
	}{
		{
			name:   "minimal valid",
			mutate: func(*config.Config) {},
		},
		{
			name: "full valid",
			mutate: func(c *config.Config) {
				c.Tibia.World = "Wintera"
				c.Tibia.RetryMax = intPtr(0)
				c.Tibia.RequestTimeout = "15s"
				c.Updater.Schedule = "10:05"
				c.Updater.Timezone = "Europe/Berlin"
				c.Pprof.ReadTimeout = "5s"
			},
		},
		{
			name:    "missing token",
			mutate:  func(c *config.Config) { c.Discord.Token = "  " },
			wantErr: "discord.token",
		},
		{
			name:    "bad schedule",
			mutate:  func(c *config.Config) { c.Updater.Schedule = "banana" },
			wantErr: "invalid schedule",
		},
		{
			name:    "daily time out of range",
			mutate:  func(c *config.Config) { c.Updater.Schedule = "25:00" },
			wantErr: "invalid hour",
		},
		{
			name:    "bad timezone",
			mutate:  func(c *config.Config) { c.Updater.Timezone = "Mars/Olympus" },
			wantErr: "timezone",
		},
		{
			name:    "negative retry max",
			mutate:  func(c *config.Config) { c.Tibia.RetryMax = intPtr(-1) },
			wantErr: "tibia.retry_max",
		},
		{
			name:    "negative rate",
			mutate:  func(c *config.Config) { c.Tibia.RatePerSec = -2 },
			wantErr: "tibia.rate_per_sec",
		},
		{
			name:    "bad request timeout",
			mutate:  func(c *config.Config) { c.Tibia.RequestTimeout = "fast" },
			wantErr: "tibia.request_timeout",
		},
		{
			name:    "bad pprof timeout",
			mutate:  func(c *config.Config) { c.Pprof.IdleTimeout = "whenever" },
			wantErr: "pprof.idle_timeout",
		},
		{
			name:    "negative discord log rate",
			mutate:  func(c *config.Config) { c.Logging.Discord.RatePerSec = -1 },
			wantErr: "logging.discord.rate_per_sec",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := validateConfig(context.Background(), cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("validateConfig() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("validateConfig() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("validateConfig() = %q, want substring %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestTibiaChanged(t *testing.T) {
	t.Parallel()

	base := func() *config.Config {
		return &config.Config{Tibia: config.TibiaConfig{World: "Antica", RatePerSec: 1}}
	}

	same := base()
	if tibiaChanged(base(), same) {
		t.Fatal("tibiaChanged() = true for identical configs, want false")
	}

	world := base()
	world.Tibia.World = "Wintera"
	if !tibiaChanged(base(), world) {
		t.Fatal("tibiaChanged() = false after world change, want true")
	}

	// An explicit retry_max equal to the default is not a change.
	retry := base()
	retry.Tibia.RetryMax = intPtr(3)
	if tibiaChanged(base(), retry) {
		t.Fatal("tibiaChanged() = true for retry_max equal to default, want false")
	}

	retry.Tibia.RetryMax = intPtr(0)
	if !tibiaChanged(base(), retry) {
		t.Fatal("tibiaChanged() = false after retry_max change, want true")
	}
}

func TestUpdaterChanged(t *testing.T) {
	t.Parallel()

	base := func() *config.Config {
		return &config.Config{Updater: config.UpdaterConfig{Schedule: "10m"}}
	}

	if updaterChanged(base(), base()) {
		t.Fatal("updaterChanged() = true for identical configs, want false")
	}
	if !updaterChanged(nil, base()) {
		t.Fatal("updaterChanged() = false for nil old config, want true")
	}

	sched := base()
	sched.Updater.Schedule = "10:00"
	if !updaterChanged(base(), sched) {
		t.Fatal("updaterChanged() = false after schedule change, want true")
	}

	// Omitted enabled means true, so an explicit true is not a change.
	enabled := base()
	enabled.Updater.Enabled = boolPtr(true)
	if updaterChanged(base(), enabled) {
		t.Fatal("updaterChanged() = true for explicit enabled=true, want false")
	}

	disabled := base()
	disabled.Updater.Enabled = boolPtr(false)
	if !updaterChanged(base(), disabled) {
		t.Fatal("updaterChanged() = false after disable, want true")
	}
}
