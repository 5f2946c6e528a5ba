package config

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	logx "github.com/SoloWolfStudios/BoostBotTracker/pkg/logx"
)

// renderFields serializes attrs through zerolog so we can inspect what would
// actually be logged.
func renderFields(t *testing.T, attrs []logx.Field) string {
	t.Helper()
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := logger.Info()
	for _, f := range attrs {
		if f != nil {
			f(e)
		}
	}
	e.Msg("summary")
	return buf.String()
}

func TestSummarizeConfigChangeSections(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{
		Discord: DiscordConfig{Token: "secret-old", CreatureChannelID: "1", BossChannelID: "2"},
		Tibia:   TibiaConfig{World: "Antica"},
		Logging: LoggingConfig{Level: "info"},
	}
	newCfg := &Config{
		Discord: DiscordConfig{Token: "secret-new", CreatureChannelID: "1", BossChannelID: "2"},
		Tibia:   TibiaConfig{World: "Secura"},
		Logging: LoggingConfig{Level: "debug"},
	}

	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)

	want := map[string]bool{"logging": true, "tibia": true}
	for _, s := range changed {
		if !want[s] {
			t.Fatalf("unexpected changed section %q (changed=%v)", s, changed)
		}
		delete(want, s)
	}
	if len(want) != 0 {
		t.Fatalf("missing changed sections: %v", want)
	}

	// Token values must never leak into attrs. (Token presence toggled is the
	// same in old and new here, so "discord" itself must not appear either.)
	if out := renderFields(t, attrs); strings.Contains(out, "secret") {
		t.Fatalf("token leaked into log attrs: %s", out)
	}
}

func TestSummarizeConfigChangeTokenPresenceOnly(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Discord: DiscordConfig{Token: ""}}
	newCfg := &Config{Discord: DiscordConfig{Token: "hunter2"}}

	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	found := false
	for _, s := range changed {
		if s == "discord" {
			found = true
		}
	}
	if !found {
		t.Fatalf("token set should mark discord changed: %v", changed)
	}
	out := renderFields(t, attrs)
	if strings.Contains(out, "hunter2") {
		t.Fatalf("token leaked: %s", out)
	}
	if !strings.Contains(out, "token_set") {
		t.Fatalf("expected token_set attr, got: %s", out)
	}
}

func TestSummarizeConfigChangeNoChange(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Discord: DiscordConfig{Token: "x", CreatureChannelID: "1", BossChannelID: "2"},
		Tibia:   TibiaConfig{World: "Antica"},
	}
	changed, _ := SummarizeConfigChange(cfg, cfg)
	if len(changed) != 0 {
		t.Fatalf("expected no changes, got %v", changed)
	}
}

func TestSummarizeConfigChangeNilSafe(t *testing.T) {
	t.Parallel()
	changed, _ := SummarizeConfigChange(nil, &Config{Tibia: TibiaConfig{World: "Antica"}})
	found := false
	for _, s := range changed {
		if s == "tibia" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected tibia change from nil old config, got %v", changed)
	}
}
