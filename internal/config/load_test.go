package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestParseFileJSON(t *testing.T) {
	path := writeTemp(t, "bot.json", `{
		"discord": {
			"token": "file-token",
			"creature_channel_id": "111",
			"boss_channel_id": "222"
		},
		"tibia": {"world": "Antica", "retry_max": 2},
		"updater": {"schedule": "10m"},
		"logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}, "discord": {"enabled": false}}
	}`)

	cfg, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile error: %v", err)
	}
	if cfg.Discord.Token != "file-token" {
		t.Fatalf("Token = %q, want file-token", cfg.Discord.Token)
	}
	if cfg.Discord.CreatureChannelID != "111" || cfg.Discord.BossChannelID != "222" {
		t.Fatalf("channel ids = %q/%q", cfg.Discord.CreatureChannelID, cfg.Discord.BossChannelID)
	}
	if cfg.Tibia.World != "Antica" {
		t.Fatalf("World = %q, want Antica", cfg.Tibia.World)
	}
	if cfg.Tibia.RetryMax == nil || *cfg.Tibia.RetryMax != 2 {
		t.Fatalf("RetryMax = %v, want 2", cfg.Tibia.RetryMax)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
}

func TestParseFileYAML(t *testing.T) {
	path := writeTemp(t, "bot.yaml", `
discord:
  token: yaml-token
  creature_channel_id: "111"
  boss_channel_id: "222"
tibia:
  world: Secura
updater:
  schedule: "10:00"
  timezone: Europe/Berlin
logging:
  level: info
  console: true
  file:
    enabled: true
    path: ./bot.log
  discord:
    enabled: false
`)

	cfg, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile error: %v", err)
	}
	if cfg.Discord.Token != "yaml-token" {
		t.Fatalf("Token = %q", cfg.Discord.Token)
	}
	if cfg.Tibia.World != "Secura" {
		t.Fatalf("World = %q, want Secura", cfg.Tibia.World)
	}
	if cfg.Updater.Schedule != "10:00" || cfg.Updater.Timezone != "Europe/Berlin" {
		t.Fatalf("updater = %+v", cfg.Updater)
	}
	if !cfg.Logging.File.Enabled || cfg.Logging.File.Path != "./bot.log" {
		t.Fatalf("file logging = %+v", cfg.Logging.File)
	}
}

func TestParseFileRejectsUnknownFields(t *testing.T) {
	path := writeTemp(t, "bot.json", `{"discord": {"token": "x", "creatur_channel_id": "typo"}}`)
	if _, err := ParseFile(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseFileRejectsTrailingData(t *testing.T) {
	path := writeTemp(t, "bot.json", `{"discord": {"token": "x"}} {"extra": true}`)
	_, err := ParseFile(path)
	if err == nil {
		t.Fatal("expected error for trailing data")
	}
	if !strings.Contains(err.Error(), "trailing") && !strings.Contains(err.Error(), "invalid") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseFileEnvOverlay(t *testing.T) {
	// t.Setenv is incompatible with t.Parallel, so this one runs serially.
	t.Setenv("DISCORD_TOKEN", "env-token")
	t.Setenv("CREATURE_CHANNEL_ID", "999")
	t.Setenv("TIBIA_WORLD", "Harmonia")

	path := writeTemp(t, "bot.json", `{
		"discord": {"token": "file-token", "creature_channel_id": "111", "boss_channel_id": "222"},
		"tibia": {"world": "Antica"}
	}`)

	cfg, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile error: %v", err)
	}
	if cfg.Discord.Token != "env-token" {
		t.Fatalf("Token = %q, want env override", cfg.Discord.Token)
	}
	if cfg.Discord.CreatureChannelID != "999" {
		t.Fatalf("CreatureChannelID = %q, want 999", cfg.Discord.CreatureChannelID)
	}
	if cfg.Discord.BossChannelID != "222" {
		t.Fatalf("BossChannelID = %q, want file value preserved", cfg.Discord.BossChannelID)
	}
	if cfg.Tibia.World != "Harmonia" {
		t.Fatalf("World = %q, want Harmonia", cfg.Tibia.World)
	}
}

func TestManagerLoadCommitGet(t *testing.T) {
	path := writeTemp(t, "bot.json", `{"discord": {"token": "x", "creature_channel_id": "1", "boss_channel_id": "2"}}`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get should return the committed pointer")
	}
}

func TestManagerSubscribeLatestWins(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	a := &Config{}
	b := &Config{Tibia: TibiaConfig{World: "Antica"}}
	m.publish(a)
	m.publish(b) // buffer full: oldest dropped, newest delivered

	got := <-ch
	if got != b {
		t.Fatalf("expected latest config, got %+v", got)
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra delivery: %+v", extra)
	default:
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("tibia.request_timeout", "", 30_000_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Seconds() != 30 {
		t.Fatalf("default = %v, want 30s", d)
	}

	d, err = ParseDurationOrDefault("tibia.request_timeout", "5s", 30_000_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Seconds() != 5 {
		t.Fatalf("parsed = %v, want 5s", d)
	}

	if _, err := ParseDurationField("tibia.request_timeout", "-5s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
}
