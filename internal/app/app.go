// Package app assembles the bot: config, logging, the TibiaData client, the
// update controller, the scheduler, the Discord gateway and the debug
// server, plus the reload loop that keeps them in step with the config file.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/SoloWolfStudios/BoostBotTracker/internal/adapters/discord"
	"github.com/SoloWolfStudios/BoostBotTracker/internal/config"
	"github.com/SoloWolfStudios/BoostBotTracker/internal/observability/pprof"
	rtsup "github.com/SoloWolfStudios/BoostBotTracker/internal/runtime/supervisor"
	"github.com/SoloWolfStudios/BoostBotTracker/internal/scheduler"
	"github.com/SoloWolfStudios/BoostBotTracker/internal/tibia"
	"github.com/SoloWolfStudios/BoostBotTracker/internal/updater"
	logx "github.com/SoloWolfStudios/BoostBotTracker/pkg/logx"
	"github.com/SoloWolfStudios/BoostBotTracker/pkg/systemd"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager
	sup     *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service

	mu    sync.Mutex // guards fetch across hot-reload swaps
	fetch *tibia.Client

	ctrl  *updater.Controller
	chat  *discord.Service
	debug *pprof.Service

	// the scheduler is rebuilt on schedule hot-reload; schedCancel stops
	// the instance currently running under the supervisor
	sched       *scheduler.Service
	schedMu     sync.Mutex
	schedCancel context.CancelFunc
	schedSeq    int

	startedAt time.Time
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Discord.Token) == "" {
		return nil, fmt.Errorf("discord.token is required (set it in the config or via DISCORD_TOKEN)")
	}

	a := &App{cfgPath: cfgPath, cfgm: cfgm}

	// The gateway adapter doubles as the log service's Discord sink, so it
	// is built first, with a console-only bootstrap logger.
	bootLog := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "discord"))
	chat, err := discord.New(discord.Config{
		Token:   cfg.Discord.Token,
		GuildID: cfg.Discord.GuildID,
		Logger:  bootLog,
	})
	if err != nil {
		return nil, err
	}
	a.chat = chat

	// Bootstrap logging with the Discord sink off, point it at its channel,
	// then apply the real config. Ordering avoids a spurious "sink enabled
	// without target" warning on startup.
	baseLogCfg := mapLogxConfig(cfg)
	baseLogCfg.Discord.Enabled = false
	logSvc, log := logx.New(baseLogCfg, chat)
	log = log.With(logx.String("comp", "app"))
	if strings.TrimSpace(cfg.Discord.LogChannelID) != "" {
		logSvc.SetDiscordTarget(cfg.Discord.LogChannelID)
	}
	logSvc.Apply(mapLogxConfig(cfg))
	a.logs = logSvc
	a.log = log
	chat.SetLogger(logSvc.Logger().With(logx.String("comp", "discord")))

	sched, err := scheduler.New(scheduler.Config{
		Schedule: cfg.Updater.Schedule,
		Timezone: cfg.Updater.Timezone,
		Logger:   logSvc.Logger().With(logx.String("comp", "scheduler")),
	}, func(ctx context.Context) {
		a.ctrl.Reconcile(ctx, false)
	})
	if err != nil {
		return nil, err
	}
	a.sched = sched
	chat.SetLocation(sched.Location())

	tcfg, err := mapTibiaConfig(cfg, logSvc.Logger().With(logx.String("comp", "tibia")))
	if err != nil {
		return nil, err
	}
	a.fetch = tibia.New(tcfg)

	a.ctrl = updater.New(a.fetch, chat, updater.Config{
		CreatureChannelID: cfg.Discord.CreatureChannelID,
		BossChannelID:     cfg.Discord.BossChannelID,
		Logger:            logSvc.Logger().With(logx.String("comp", "updater")),
	})
	chat.SetController(a.ctrl)

	ppc, err := mapPprofConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.debug = pprof.New(ppc, logSvc.Logger().With(logx.String("comp", "pprof")))

	return a, nil
}

// Done is closed when the app context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.startedAt = time.Now()
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validateConfig)

	if err := a.chat.Start(a.sup.Context()); err != nil {
		return err
	}

	cfg := a.cfgm.Get()
	a.sup.Go("discord.channelcheck", func(c context.Context) error {
		a.checkChannels(c, cfg)
		return nil
	})

	a.debug.SetStatus(a.statusSnapshot)
	if a.debug.Enabled() {
		a.debug.Start(a.sup.Context())
	}

	if updaterEnabled(cfg) {
		a.runScheduler(a.sched)
	} else {
		a.log.Info("scheduled updates disabled; slash commands remain available")
	}

	a.sup.Go("systemd.watchdog", func(c context.Context) error {
		systemd.RunWatchdog(c)
		return nil
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
		return nil
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	systemd.NotifyReady()
	a.log.Info("bot started",
		logx.String("world", a.currentFetcher().World()),
		logx.String("schedule", effectiveSchedule(cfg)),
	)
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	systemd.NotifyStopping()
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel first so every supervised loop starts unwinding immediately.
	a.sup.Cancel()

	// Run each shutdown phase with an upper bound so one stuck component
	// cannot stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step done", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("pprof", time.Second, func(c context.Context) error {
		a.debug.Stop(c)
		return nil
	})
	// Wait for supervised loops (scheduler pass, reload, watcher) before
	// closing the gateway they may still be sending through.
	step("supervisor", 3*time.Second, a.sup.Wait)
	step("discord", 2*time.Second, func(context.Context) error {
		return a.chat.Close()
	})
	step("tibia", time.Second, func(context.Context) error {
		a.currentFetcher().Close()
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// runScheduler hands a scheduler instance to the supervisor under a cancel
// of its own, so a hot-reloaded schedule can retire it without touching the
// rest of the app.
func (a *App) runScheduler(sched *scheduler.Service) {
	runCtx, cancel := context.WithCancel(a.sup.Context())

	a.schedMu.Lock()
	a.schedCancel = cancel
	seq := a.schedSeq
	a.schedSeq++
	a.schedMu.Unlock()

	name := "scheduler"
	if seq > 0 {
		name = fmt.Sprintf("scheduler.%d", seq)
	}
	a.sup.GoRestart(name, func(context.Context) error {
		return sched.Run(runCtx)
	})
}

func (a *App) stopScheduler() {
	a.schedMu.Lock()
	cancel := a.schedCancel
	a.schedCancel = nil
	a.schedMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (a *App) currentFetcher() *tibia.Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fetch
}

func (a *App) swapFetcher(fresh *tibia.Client) *tibia.Client {
	a.mu.Lock()
	old := a.fetch
	a.fetch = fresh
	a.mu.Unlock()
	return old
}

// checkChannels warns about unusable channel config right after connect,
// instead of letting the first tick discover it.
func (a *App) checkChannels(ctx context.Context, cfg *config.Config) {
	if cfg == nil {
		return
	}
	type slot struct {
		name     string
		id       string
		required bool
	}
	slots := []slot{
		{"creature", cfg.Discord.CreatureChannelID, true},
		{"boss", cfg.Discord.BossChannelID, true},
		{"log", cfg.Discord.LogChannelID, cfg.Logging.Discord.Enabled},
	}
	for _, s := range slots {
		if strings.TrimSpace(s.id) == "" {
			if s.required {
				a.log.Warn("channel not configured; its updates will be skipped",
					logx.String("slot", s.name),
				)
			}
			continue
		}
		if err := a.chat.CheckChannel(ctx, s.id); err != nil {
			a.log.Warn("configured channel is not accessible",
				logx.String("slot", s.name),
				logx.String("channel_id", s.id),
				logx.Err(err),
			)
		}
	}
}

func (a *App) statusSnapshot() any {
	snap := map[string]any{
		"started_at": a.startedAt.UTC().Format(time.RFC3339),
		"uptime":     time.Since(a.startedAt).Round(time.Second).String(),
		"world":      a.currentFetcher().World(),
	}
	if cfg := a.cfgm.Get(); cfg != nil {
		snap["schedule"] = effectiveSchedule(cfg)
		snap["updater_enabled"] = updaterEnabled(cfg)
	}
	if a.sup != nil {
		snap["tasks"] = a.sup.Snapshot()
	}
	return snap
}

func updaterEnabled(cfg *config.Config) bool {
	if cfg == nil {
		return true
	}
	return cfg.Updater.Enabled == nil || *cfg.Updater.Enabled
}

func effectiveSchedule(cfg *config.Config) string {
	if cfg == nil || strings.TrimSpace(cfg.Updater.Schedule) == "" {
		return scheduler.DefaultSchedule
	}
	return strings.TrimSpace(cfg.Updater.Schedule)
}
