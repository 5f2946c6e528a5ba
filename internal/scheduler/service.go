// Package scheduler runs the periodic boosted-update pass. One job, one
// schedule; schedules may be cron expressions, fixed intervals, or a daily
// HH:MM in the configured timezone.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "github.com/SoloWolfStudios/BoostBotTracker/pkg/logx"
)

const (
	DefaultSchedule = "10m"
	DefaultTimezone = "Europe/Berlin" // game-server time; boosts roll over at 10:00 server save

	// A pass is bounded by the fetch retry budget times three queries, so
	// anything still running after this is stuck.
	tickTimeout = 5 * time.Minute
)

// Job is one update pass. The context carries the per-tick timeout.
type Job func(ctx context.Context)

type Config struct {
	Schedule string // empty = DefaultSchedule
	Timezone string // IANA name; empty = DefaultTimezone
	Logger   logx.Logger
}

type Service struct {
	log  logx.Logger
	job  Job
	spec ParsedSpec
	loc  *time.Location

	// ticking guards against tick pile-up when a pass outlives the interval.
	ticking atomic.Bool
}

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func New(cfg Config, job Job) (*Service, error) {
	if job == nil {
		return nil, fmt.Errorf("scheduler: job required")
	}
	spec, loc, err := parseConfig(cfg.Schedule, cfg.Timezone)
	if err != nil {
		return nil, err
	}
	return &Service{log: cfg.Logger, job: job, spec: spec, loc: loc}, nil
}

// Validate checks a schedule/timezone pair without building a service. Used
// by the config reload validator so a bad edit is rejected before commit.
func Validate(schedule, timezone string) error {
	_, _, err := parseConfig(schedule, timezone)
	return err
}

// Location returns the resolved schedule timezone. The status embed renders
// its reset countdown in the same zone the job fires in.
func (s *Service) Location() *time.Location { return s.loc }

func parseConfig(schedule, timezone string) (ParsedSpec, *time.Location, error) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		schedule = DefaultSchedule
	}
	spec, err := ParseSchedule(schedule)
	if err != nil {
		return ParsedSpec{}, nil, err
	}
	if spec.Kind == SpecCron {
		if _, err := cronParser.Parse(spec.Cron); err != nil {
			return ParsedSpec{}, nil, fmt.Errorf("invalid cron schedule %q: %w", spec.Cron, err)
		}
	}

	timezone = strings.TrimSpace(timezone)
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return ParsedSpec{}, nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return spec, loc, nil
}

// cronLog adapts logx to robfig/cron's logger so recovered job panics land
// in the structured log instead of stderr.
type cronLog struct{ log logx.Logger }

func (l cronLog) Info(msg string, kv ...any) {
	if !l.log.IsZero() {
		l.log.Debug(msg, logx.Any("details", kv))
	}
}

func (l cronLog) Error(err error, msg string, kv ...any) {
	if !l.log.IsZero() {
		l.log.Error(msg, logx.Err(err), logx.Any("details", kv))
	}
}

// Run ticks once immediately (a fresh start should post the current boost
// without waiting out the first interval), then on schedule until ctx is
// done. Blocks; meant to run under the supervisor.
func (s *Service) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.Recover(cronLog{s.log})),
	)

	expr := s.spec.Cron
	if s.spec.Kind == SpecInterval {
		expr = fmt.Sprintf("@every %s", s.spec.Every)
	}
	if _, err := c.AddFunc(expr, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	if !s.log.IsZero() {
		s.log.Info("scheduler started",
			logx.String("schedule", expr),
			logx.String("tz", s.loc.String()),
		)
	}
	c.Start()
	s.tick(ctx)

	<-ctx.Done()
	select {
	case <-c.Stop().Done():
	case <-time.After(10 * time.Second):
		if !s.log.IsZero() {
			s.log.Warn("scheduler stop timed out with a pass still running")
		}
	}
	return nil
}

func (s *Service) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !s.ticking.CompareAndSwap(false, true) {
		if !s.log.IsZero() {
			s.log.Warn("previous update pass still running; skipping tick")
		}
		return
	}
	defer s.ticking.Store(false)

	tctx, cancel := context.WithTimeout(ctx, tickTimeout)
	defer cancel()
	s.job(tctx)
}
