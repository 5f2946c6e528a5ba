package config

import (
	"sort"
	"strings"

	logx "github.com/SoloWolfStudios/BoostBotTracker/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections and
// (2) safe structured attrs for logging (never includes secrets like tokens).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	// Discord (never log token)
	if (strings.TrimSpace(oldCfg.Discord.Token) != "") != (strings.TrimSpace(newCfg.Discord.Token) != "") ||
		strings.TrimSpace(oldCfg.Discord.GuildID) != strings.TrimSpace(newCfg.Discord.GuildID) ||
		strings.TrimSpace(oldCfg.Discord.CreatureChannelID) != strings.TrimSpace(newCfg.Discord.CreatureChannelID) ||
		strings.TrimSpace(oldCfg.Discord.BossChannelID) != strings.TrimSpace(newCfg.Discord.BossChannelID) ||
		strings.TrimSpace(oldCfg.Discord.LogChannelID) != strings.TrimSpace(newCfg.Discord.LogChannelID) {
		changed = append(changed, "discord")
		attrs = append(attrs,
			logx.Bool("discord.token_set", strings.TrimSpace(newCfg.Discord.Token) != ""),
			logx.Bool("discord.creature_channel_set", strings.TrimSpace(newCfg.Discord.CreatureChannelID) != ""),
			logx.Bool("discord.boss_channel_set", strings.TrimSpace(newCfg.Discord.BossChannelID) != ""),
			logx.Bool("discord.log_channel_set", strings.TrimSpace(newCfg.Discord.LogChannelID) != ""),
		)
	}

	// Tibia API client
	oRetry, nRetry := derefInt(oldCfg.Tibia.RetryMax, -1), derefInt(newCfg.Tibia.RetryMax, -1)
	if strings.TrimSpace(oldCfg.Tibia.BaseURL) != strings.TrimSpace(newCfg.Tibia.BaseURL) ||
		strings.TrimSpace(oldCfg.Tibia.World) != strings.TrimSpace(newCfg.Tibia.World) ||
		oRetry != nRetry ||
		strings.TrimSpace(oldCfg.Tibia.RequestTimeout) != strings.TrimSpace(newCfg.Tibia.RequestTimeout) ||
		oldCfg.Tibia.RatePerSec != newCfg.Tibia.RatePerSec {
		changed = append(changed, "tibia")
		attrs = append(attrs,
			logx.String("tibia.world", strings.TrimSpace(newCfg.Tibia.World)),
			logx.Int("tibia.retry_max", nRetry),
			logx.String("tibia.request_timeout", strings.TrimSpace(newCfg.Tibia.RequestTimeout)),
			logx.Int("tibia.rate_per_sec", newCfg.Tibia.RatePerSec),
		)
	}

	// Updater (schedule)
	oEnabled, nEnabled := derefBool(oldCfg.Updater.Enabled, true), derefBool(newCfg.Updater.Enabled, true)
	if oEnabled != nEnabled ||
		strings.TrimSpace(oldCfg.Updater.Schedule) != strings.TrimSpace(newCfg.Updater.Schedule) ||
		strings.TrimSpace(oldCfg.Updater.Timezone) != strings.TrimSpace(newCfg.Updater.Timezone) {
		changed = append(changed, "updater")
		attrs = append(attrs,
			logx.Bool("updater.enabled", nEnabled),
			logx.String("updater.schedule", strings.TrimSpace(newCfg.Updater.Schedule)),
			logx.String("updater.timezone", strings.TrimSpace(newCfg.Updater.Timezone)),
		)
	}

	// Logging
	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File.Enabled != newCfg.Logging.File.Enabled ||
		strings.TrimSpace(oldCfg.Logging.File.Path) != strings.TrimSpace(newCfg.Logging.File.Path) ||
		oldCfg.Logging.Discord.Enabled != newCfg.Logging.Discord.Enabled ||
		oldCfg.Logging.Discord.MinLevel != newCfg.Logging.Discord.MinLevel ||
		oldCfg.Logging.Discord.RatePerSec != newCfg.Logging.Discord.RatePerSec {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.discord_enabled", newCfg.Logging.Discord.Enabled),
		)
	}

	// Pprof (never log token)
	if oldCfg.Pprof.Enabled != newCfg.Pprof.Enabled ||
		strings.TrimSpace(oldCfg.Pprof.Addr) != strings.TrimSpace(newCfg.Pprof.Addr) ||
		strings.TrimSpace(oldCfg.Pprof.Prefix) != strings.TrimSpace(newCfg.Pprof.Prefix) ||
		oldCfg.Pprof.AllowInsecure != newCfg.Pprof.AllowInsecure ||
		strings.TrimSpace(oldCfg.Pprof.ReadTimeout) != strings.TrimSpace(newCfg.Pprof.ReadTimeout) ||
		strings.TrimSpace(oldCfg.Pprof.WriteTimeout) != strings.TrimSpace(newCfg.Pprof.WriteTimeout) ||
		strings.TrimSpace(oldCfg.Pprof.IdleTimeout) != strings.TrimSpace(newCfg.Pprof.IdleTimeout) ||
		(strings.TrimSpace(oldCfg.Pprof.Token) != "") != (strings.TrimSpace(newCfg.Pprof.Token) != "") {
		changed = append(changed, "pprof")
		attrs = append(attrs,
			logx.Bool("pprof.enabled", newCfg.Pprof.Enabled),
			logx.String("pprof.addr", strings.TrimSpace(newCfg.Pprof.Addr)),
			logx.Bool("pprof.token_set", strings.TrimSpace(newCfg.Pprof.Token) != ""),
			logx.Bool("pprof.allow_insecure", newCfg.Pprof.AllowInsecure),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func derefInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func derefBool(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
