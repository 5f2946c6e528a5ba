// Package supervisor ties the bot's long-running goroutines (scheduler loop,
// config watcher, pprof server, watchdog) to one shared context, with panic
// recovery and timeout-aware shutdown.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	logx "github.com/SoloWolfStudios/BoostBotTracker/pkg/logx"
)

type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	log         logx.Logger
	cancelOnErr bool

	errOnce  sync.Once
	firstErr atomic.Value // error

	doneOnce sync.Once
	doneCh   chan struct{}
	wg       sync.WaitGroup

	active  int64
	started uint64

	mu    sync.Mutex
	tasks map[string]*taskStats
}

type Option func(*Supervisor)

func WithLogger(log logx.Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

// WithCancelOnError cancels the supervisor context on the first goroutine
// error or panic, turning any fatal background failure into a shutdown.
func WithCancelOnError(enabled bool) Option {
	return func(s *Supervisor) { s.cancelOnErr = enabled }
}

func New(parent context.Context, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
		tasks:  map[string]*taskStats{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Cancel requests shutdown without waiting for goroutines to exit.
func (s *Supervisor) Cancel() { s.cancel() }

// Err returns the first goroutine error or panic observed, if any.
func (s *Supervisor) Err() error {
	if v := s.firstErr.Load(); v != nil {
		if err, ok := v.(error); ok {
			return err
		}
	}
	return nil
}

// TaskStats is a best-effort per-task view for the debug endpoint. Tasks are
// keyed by name; a restarted task accumulates into the same entry.
type TaskStats struct {
	Name     string        `json:"name"`
	Active   int64         `json:"active"`
	Started  uint64        `json:"started"`
	Restarts uint64        `json:"restarts"`
	Panics   uint64        `json:"panics"`
	LastErr  string        `json:"last_err,omitempty"`
	LastRun  time.Time     `json:"last_run"`
	Runtime  time.Duration `json:"runtime"`
}

// Snapshot reports the supervisor's state for observability. Not a
// synchronization primitive.
type Snapshot struct {
	Active     int64       `json:"active"`
	Started    uint64      `json:"started"`
	FirstError string      `json:"first_error,omitempty"`
	Tasks      []TaskStats `json:"tasks"`
}

func (s *Supervisor) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	snap := Snapshot{
		Active:  atomic.LoadInt64(&s.active),
		Started: atomic.LoadUint64(&s.started),
	}
	if err := s.Err(); err != nil {
		snap.FirstError = err.Error()
	}

	s.mu.Lock()
	for _, t := range s.tasks {
		snap.Tasks = append(snap.Tasks, TaskStats{
			Name:     t.name,
			Active:   t.active,
			Started:  t.started,
			Restarts: t.restarts,
			Panics:   t.panics,
			LastErr:  t.lastErr,
			LastRun:  t.lastRun,
			Runtime:  t.runtime,
		})
	}
	s.mu.Unlock()

	sort.Slice(snap.Tasks, func(i, j int) bool {
		if snap.Tasks[i].Active != snap.Tasks[j].Active {
			return snap.Tasks[i].Active > snap.Tasks[j].Active
		}
		return snap.Tasks[i].Name < snap.Tasks[j].Name
	})
	return snap
}

type taskStats struct {
	name     string
	active   int64
	started  uint64
	restarts uint64
	panics   uint64
	lastErr  string
	lastRun  time.Time
	runtime  time.Duration
}

func (s *Supervisor) task(name string) *taskStats {
	t := s.tasks[name]
	if t == nil {
		t = &taskStats{name: name}
		s.tasks[name] = t
	}
	return t
}

func (s *Supervisor) noteStart(name string, restart bool) time.Time {
	now := time.Now()
	s.mu.Lock()
	t := s.task(name)
	t.started++
	t.active++
	if restart {
		t.restarts++
	}
	t.lastRun = now
	s.mu.Unlock()
	return now
}

func (s *Supervisor) noteStop(name string, startedAt time.Time, err error, panicked bool) {
	s.mu.Lock()
	t := s.task(name)
	if t.active > 0 {
		t.active--
	}
	t.runtime += time.Since(startedAt)
	if err != nil {
		t.lastErr = err.Error()
	}
	if panicked {
		t.panics++
	}
	s.mu.Unlock()
}

// Go starts fn under the supervisor's context. Panics are recovered and
// recorded; fn's error (unless context.Canceled) becomes the supervisor's
// first error and, with cancel-on-error, shuts everything down.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	atomic.AddUint64(&s.started, 1)
	atomic.AddInt64(&s.active, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer atomic.AddInt64(&s.active, -1)

		startedAt := s.noteStart(name, false)
		err, pan, stack := runRecovered(s.ctx, fn)
		if pan != nil {
			err = fmt.Errorf("panic in %s: %v", name, pan)
			if !s.log.IsZero() {
				s.log.Error("goroutine panicked",
					logx.String("name", name),
					logx.Any("panic", pan),
					logx.Stack(stack),
				)
			}
			s.noteStop(name, startedAt, err, true)
			s.fail(err)
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%s: %w", name, err)
			s.noteStop(name, startedAt, err, false)
			s.fail(err)
			return
		}
		s.noteStop(name, startedAt, nil, false)
	}()
}

func runRecovered(ctx context.Context, fn func(ctx context.Context) error) (err error, pan any, stack string) {
	defer func() {
		if r := recover(); r != nil {
			pan = r
			stack = string(debug.Stack())
		}
	}()
	err = fn(ctx)
	return
}

// RestartOption tunes GoRestart.
type RestartOption func(*restartCfg)

type restartCfg struct {
	minBackoff  time.Duration
	maxBackoff  time.Duration
	maxRestarts int // <=0: unlimited
}

// WithRestartBackoff sets the exponential backoff window between restarts.
func WithRestartBackoff(min, max time.Duration) RestartOption {
	return func(c *restartCfg) {
		if min > 0 {
			c.minBackoff = min
		}
		if max > 0 {
			c.maxBackoff = max
		}
	}
}

// WithMaxRestarts caps how many times a failing task is restarted before the
// supervisor records its error as fatal. The initial run is not counted.
func WithMaxRestarts(n int) RestartOption {
	return func(c *restartCfg) { c.maxRestarts = n }
}

// GoRestart runs fn and restarts it after errors or panics with jittered
// exponential backoff, until the context is canceled or fn returns nil.
// Meant for long-lived loops (watchers, pollers) that should self-heal.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	if fn == nil {
		return
	}
	cfg := restartCfg{
		minBackoff: 250 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.maxBackoff < cfg.minBackoff {
		cfg.maxBackoff = cfg.minBackoff
	}

	s.Go(name+".restart", func(ctx context.Context) error {
		backoff := cfg.minBackoff
		restarts := 0
		for {
			if ctx.Err() != nil {
				return nil
			}

			startedAt := s.noteStart(name, restarts > 0)
			err, pan, stack := runRecovered(ctx, fn)
			if pan != nil {
				if !s.log.IsZero() {
					s.log.Error("goroutine panicked; restarting",
						logx.String("name", name),
						logx.Any("panic", pan),
						logx.Stack(stack),
					)
				}
				err = fmt.Errorf("panic: %v", pan)
			}
			s.noteStop(name, startedAt, err, pan != nil)

			// A run that ends during shutdown is a clean stop, whatever it returned.
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || err == nil {
				return nil
			}

			restarts++
			if cfg.maxRestarts > 0 && restarts > cfg.maxRestarts {
				return fmt.Errorf("gave up after %d restarts: %w", restarts-1, err)
			}

			// A run that survived a while earns a fresh backoff window.
			if time.Since(startedAt) >= 30*time.Second {
				backoff = cfg.minBackoff
			}
			wait := backoff + jitter(backoff/5)
			if !s.log.IsZero() {
				s.log.Warn("goroutine restarting",
					logx.String("name", name),
					logx.Duration("backoff", wait),
					logx.Err(err),
				)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			backoff *= 2
			if backoff > cfg.maxBackoff {
				backoff = cfg.maxBackoff
			}
		}
	})
}

func jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(time.Now().UnixNano() % int64(max+1))
}

// Stop cancels the context and waits for everything to exit, bounded by ctx.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	return s.Wait(ctx)
}

// Wait blocks until all goroutines exit or ctx expires. Returns the first
// recorded error, or ctx.Err() on timeout.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.doneOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.doneCh)
		}()
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.doneCh:
		return s.Err()
	}
}

func (s *Supervisor) fail(err error) {
	if err == nil {
		return
	}
	s.errOnce.Do(func() { s.firstErr.Store(err) })
	if s.cancelOnErr {
		s.cancel()
	}
}
