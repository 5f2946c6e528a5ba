package config

// Config is the whole bot configuration. Files may be JSON or YAML; YAML is
// coerced to JSON before strict decoding, so the json tags below are the
// single source of field names. Secrets (token) are normally supplied via
// environment variables rather than the file; see applyEnv in load.go.
type Config struct {
	Discord DiscordConfig `json:"discord"`
	Tibia   TibiaConfig   `json:"tibia"`
	Updater UpdaterConfig `json:"updater"`
	Logging LoggingConfig `json:"logging"`
	Pprof   PprofConfig   `json:"pprof,omitempty"`
}

// DiscordConfig identifies the bot and the channels it posts to.
//
// Channel IDs may be left empty: the corresponding slot is then skipped at
// publish time with a warning instead of failing startup.
type DiscordConfig struct {
	Token             string `json:"token" env:"DISCORD_TOKEN"`
	GuildID           string `json:"guild_id,omitempty" env:"DISCORD_GUILD_ID"`
	CreatureChannelID string `json:"creature_channel_id" env:"CREATURE_CHANNEL_ID"`
	BossChannelID     string `json:"boss_channel_id" env:"BOSS_CHANNEL_ID"`
	LogChannelID      string `json:"log_channel_id,omitempty" env:"LOG_CHANNEL_ID"`
}

// TibiaConfig tunes the TibiaData API client.
//
// RetryMax is a pointer so an explicit 0 (no retries) can be told apart
// from "omitted" (defaults to 3). Durations are Go duration strings.
type TibiaConfig struct {
	BaseURL        string `json:"base_url,omitempty"`
	World          string `json:"world,omitempty" env:"TIBIA_WORLD"`
	RetryMax       *int   `json:"retry_max,omitempty"`
	RequestTimeout string `json:"request_timeout,omitempty"`
	RatePerSec     int    `json:"rate_per_sec,omitempty"`
}

// UpdaterConfig controls the periodic boosted-update job.
//
// Schedule accepts a cron expression ("*/10 * * * *", "@hourly"), a Go
// duration ("10m"), or HH:MM; empty defaults to "10m". Enabled is a pointer
// so "omitted" defaults to true.
type UpdaterConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`
	Schedule string `json:"schedule,omitempty"`
	Timezone string `json:"timezone,omitempty"` // IANA TZ, e.g. "Europe/Berlin"
}

type LoggingConfig struct {
	Level   string           `json:"level"`
	Console bool             `json:"console"`
	File    FileLogConfig    `json:"file"`
	Discord DiscordLogConfig `json:"discord"`
}

type FileLogConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// DiscordLogConfig mirrors logx's Discord sink: warnings and errors are
// forwarded to the configured log channel, rate limited.
type DiscordLogConfig struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// PprofConfig controls the optional pprof HTTP server.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:6060").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type PprofConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`   // default: "127.0.0.1:6060"
	Prefix        string `json:"prefix,omitempty"` // default: "/debug/pprof"
	Token         string `json:"token,omitempty" env:"PPROF_TOKEN"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	ReadTimeout   string `json:"read_timeout,omitempty"`
	WriteTimeout  string `json:"write_timeout,omitempty"`
	IdleTimeout   string `json:"idle_timeout,omitempty"`
}
