package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SoloWolfStudios/BoostBotTracker/internal/config"
	"github.com/SoloWolfStudios/BoostBotTracker/internal/observability/pprof"
	"github.com/SoloWolfStudios/BoostBotTracker/internal/scheduler"
	"github.com/SoloWolfStudios/BoostBotTracker/internal/tibia"
	logx "github.com/SoloWolfStudios/BoostBotTracker/pkg/logx"
)

// validateConfig gates hot reloads: a config that fails here is rejected
// before commit and the previous one stays live.
func validateConfig(_ context.Context, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is empty")
	}
	if strings.TrimSpace(cfg.Discord.Token) == "" {
		return fmt.Errorf("discord.token is required")
	}
	if err := scheduler.Validate(cfg.Updater.Schedule, cfg.Updater.Timezone); err != nil {
		return err
	}
	if cfg.Tibia.RetryMax != nil && *cfg.Tibia.RetryMax < 0 {
		return fmt.Errorf("tibia.retry_max must be >= 0")
	}
	if cfg.Tibia.RatePerSec < 0 {
		return fmt.Errorf("tibia.rate_per_sec must be >= 0")
	}
	if _, err := config.ParseDurationOrDefault("tibia.request_timeout", cfg.Tibia.RequestTimeout, 10*time.Second); err != nil {
		return err
	}
	if cfg.Logging.Discord.RatePerSec < 0 {
		return fmt.Errorf("logging.discord.rate_per_sec must be >= 0")
	}
	if _, err := mapPprofConfig(cfg); err != nil {
		return err
	}
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts; only the newest config matters.
		drain:
			for {
				select {
				case newer, ok := <-sub:
					if !ok {
						break drain
					}
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			if newCfg == nil {
				continue
			}
			a.applyConfig(ctx, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) > 0 {
		fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
		a.log.Debug("config change summary", fields...)
	}

	// Log target first so Apply doesn't warn when the sink is enabled.
	a.logs.SetDiscordTarget(newCfg.Discord.LogChannelID)
	a.logs.Apply(mapLogxConfig(newCfg))

	a.ctrl.SetChannels(newCfg.Discord.CreatureChannelID, newCfg.Discord.BossChannelID)

	// A changed API setup swaps the fetcher atomically; a pass already in
	// flight finishes on the old client before it is closed.
	if tibiaChanged(oldCfg, newCfg) {
		tcfg, err := mapTibiaConfig(newCfg, a.logs.Logger().With(logx.String("comp", "tibia")))
		if err != nil {
			a.log.Warn("invalid tibia config; keeping previous", logx.Err(err))
		} else {
			fresh := tibia.New(tcfg)
			a.ctrl.SetFetcher(fresh)
			if old := a.swapFetcher(fresh); old != nil {
				old.Close()
			}
		}
	}

	// Schedule edits retire the running scheduler and start a fresh one;
	// the gateway session itself is wired once at startup.
	if updaterChanged(oldCfg, newCfg) {
		a.stopScheduler()
		if updaterEnabled(newCfg) {
			sched, err := scheduler.New(scheduler.Config{
				Schedule: newCfg.Updater.Schedule,
				Timezone: newCfg.Updater.Timezone,
				Logger:   a.logs.Logger().With(logx.String("comp", "scheduler")),
			}, func(c context.Context) {
				a.ctrl.Reconcile(c, false)
			})
			if err != nil {
				// The validator rejects bad schedules before commit, so this
				// only fires if validation and parsing ever disagree.
				a.log.Warn("updater schedule rejected; scheduled updates stopped", logx.Err(err))
			} else {
				a.chat.SetLocation(sched.Location())
				a.runScheduler(sched)
				a.log.Info("updater schedule applied",
					logx.String("schedule", effectiveSchedule(newCfg)),
					logx.String("tz", sched.Location().String()),
				)
			}
		} else {
			a.log.Info("scheduled updates disabled via config")
		}
	}

	if oldCfg != nil && (oldCfg.Discord.Token != newCfg.Discord.Token || oldCfg.Discord.GuildID != newCfg.Discord.GuildID) {
		a.log.Warn("discord token/guild changed; restart required to take effect")
	}

	if ppc, err := mapPprofConfig(newCfg); err != nil {
		a.log.Warn("invalid pprof config; keeping previous", logx.Err(err))
	} else {
		a.debug.Reconfigure(ctx, ppc)
	}

	if len(sections) > 0 {
		fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
		a.log.Info("config reloaded", fields...)
	} else {
		a.log.Info("config reloaded (no effective changes)")
	}
}

func tibiaChanged(oldCfg, newCfg *config.Config) bool {
	if oldCfg == nil || newCfg == nil {
		return true
	}
	x, y := oldCfg.Tibia, newCfg.Tibia
	if x.BaseURL != y.BaseURL || x.World != y.World ||
		x.RequestTimeout != y.RequestTimeout || x.RatePerSec != y.RatePerSec {
		return true
	}
	return derefInt(x.RetryMax, 3) != derefInt(y.RetryMax, 3)
}

func updaterChanged(oldCfg, newCfg *config.Config) bool {
	if oldCfg == nil || newCfg == nil {
		return true
	}
	return oldCfg.Updater.Schedule != newCfg.Updater.Schedule ||
		oldCfg.Updater.Timezone != newCfg.Updater.Timezone ||
		updaterEnabled(oldCfg) != updaterEnabled(newCfg)
}

func derefInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func mapTibiaConfig(cfg *config.Config, log logx.Logger) (tibia.Config, error) {
	timeout, err := config.ParseDurationOrDefault("tibia.request_timeout", cfg.Tibia.RequestTimeout, 30*time.Second)
	if err != nil {
		return tibia.Config{}, err
	}
	return tibia.Config{
		BaseURL:        cfg.Tibia.BaseURL,
		World:          cfg.Tibia.World,
		RetryMax:       cfg.Tibia.RetryMax,
		RequestTimeout: timeout,
		RatePerSec:     cfg.Tibia.RatePerSec,
		Logger:         log,
	}, nil
}

func mapLogxConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Discord: logx.DiscordConfig{
			Enabled:    cfg.Logging.Discord.Enabled,
			MinLevel:   cfg.Logging.Discord.MinLevel,
			RatePerSec: cfg.Logging.Discord.RatePerSec,
		},
	}
}

func mapPprofConfig(cfg *config.Config) (pprof.Config, error) {
	read, err := config.ParseDurationOrDefault("pprof.read_timeout", cfg.Pprof.ReadTimeout, 10*time.Second)
	if err != nil {
		return pprof.Config{}, err
	}
	// CPU profiles stream for ?seconds=N, so the write side defaults to
	// unbounded; a finite value would cut long captures off.
	write, err := config.ParseDurationOrDefault("pprof.write_timeout", cfg.Pprof.WriteTimeout, 0)
	if err != nil {
		return pprof.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("pprof.idle_timeout", cfg.Pprof.IdleTimeout, time.Minute)
	if err != nil {
		return pprof.Config{}, err
	}
	return pprof.Config{
		Enabled:       cfg.Pprof.Enabled,
		Addr:          cfg.Pprof.Addr,
		Prefix:        cfg.Pprof.Prefix,
		Token:         cfg.Pprof.Token,
		AllowInsecure: cfg.Pprof.AllowInsecure,
		ReadTimeout:   read,
		WriteTimeout:  write,
		IdleTimeout:   idle,
	}, nil
}
