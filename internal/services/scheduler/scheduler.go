// Package scheduler runs a tenant's periodic sync cycle — either a crawl
// refresh or a git sync — behind a small state machine shared by both
// flavors, per spec §4.11.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// Kind distinguishes the two sync flavors a Scheduler can drive.
type Kind string

const (
	KindCrawlRefresh Kind = "crawl_refresh"
	KindGitSync      Kind = "git_sync"
)

// State is the scheduler's lifecycle state, per spec §4.11:
// uninitialized → initialized,stopped → running → stopping → stopped.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateStopped       State = "stopped"
	StateRunning       State = "running"
	StateStopping      State = "stopping"
)

const errorBackoff = 60 * time.Second

// SyncFunc runs one sync cycle. forceCrawler/forceFullSync are passed
// through from TriggerSync; a background-tick invocation always passes
// false for both.
type SyncFunc func(ctx context.Context, forceCrawler, forceFullSync bool) error

// Config configures a Scheduler for one tenant.
type Config struct {
	Kind            Kind
	Enabled         bool
	RefreshSchedule string // 5-field cron; empty means manual-only
	Sync            SyncFunc
	OnSyncComplete  func()
}

// Scheduler drives Config.Sync on a cron tick (or on-demand via
// TriggerSync), never letting a sync error or callback panic kill the
// background loop.
type Scheduler struct {
	config   Config
	schedule cron.Schedule
	logger   arbor.ILogger

	mu            sync.Mutex
	state         State
	isInitialized bool
	running       bool
	errors        int
	lastRun       *time.Time
	lastError     string

	cancel context.CancelFunc
	stopCh chan struct{}
	doneCh chan struct{}
}

// New validates RefreshSchedule (if set) and returns a not-yet-initialized
// Scheduler. An invalid cron expression is rejected at construction time,
// per spec §4.11.
func New(config Config, logger arbor.ILogger) (*Scheduler, error) {
	var schedule cron.Schedule
	if config.RefreshSchedule != "" {
		parsed, err := cron.ParseStandard(config.RefreshSchedule)
		if err != nil {
			return nil, fmt.Errorf("invalid refresh_schedule %q: %w", config.RefreshSchedule, err)
		}
		schedule = parsed
	}
	return &Scheduler{
		config:   config,
		schedule: schedule,
		logger:   logger,
		state:    StateUninitialized,
	}, nil
}

// Initialize returns false without error when the scheduler is disabled or
// has no URLs/repo configured (signaled by the caller supplying a nil Sync
// func). Otherwise it marks the scheduler initialized and returns true,
// starting the background loop only when a refresh schedule is set; without
// one the scheduler is manual-only.
func (s *Scheduler) Initialize(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.config.Enabled || s.config.Sync == nil {
		return false, nil
	}

	s.isInitialized = true
	s.state = StateStopped

	if s.schedule == nil {
		if s.logger != nil {
			s.logger.Debug().Str("kind", string(s.config.Kind)).Msg("scheduler initialized as manual-only (no refresh_schedule)")
		}
		return true, nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.loop(loopCtx)

	if s.logger != nil {
		s.logger.Info().Str("kind", string(s.config.Kind)).Str("schedule", s.config.RefreshSchedule).Msg("scheduler background loop started")
	}
	return true, nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		next := s.schedule.Next(time.Now())
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			if err := s.runCycle(ctx, false, false); err != nil {
				s.mu.Lock()
				s.errors++
				s.mu.Unlock()
				if s.logger != nil {
					s.logger.Warn().Err(err).Str("kind", string(s.config.Kind)).Msg("scheduled sync failed, backing off before next cron check")
				}
				select {
				case <-ctx.Done():
					return
				case <-s.stopCh:
					return
				case <-time.After(errorBackoff):
				}
			}
		}
	}
}

// runCycle executes exactly one sync cycle, guarding against concurrent
// execution and recovering from a panicking Sync func or OnSyncComplete
// callback so neither can kill the background loop.
func (s *Scheduler) runCycle(ctx context.Context, forceCrawler, forceFullSync bool) (err error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sync already running")
	}
	s.running = true
	s.state = StateRunning
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during sync: %v", r)
		}
		now := time.Now()
		s.mu.Lock()
		s.running = false
		s.state = StateStopped
		s.lastRun = &now
		if err != nil {
			s.lastError = err.Error()
		} else {
			s.lastError = ""
		}
		s.mu.Unlock()
	}()

	err = s.config.Sync(ctx, forceCrawler, forceFullSync)
	if err == nil && s.config.OnSyncComplete != nil {
		s.invokeOnSyncComplete()
	}
	return err
}

func (s *Scheduler) invokeOnSyncComplete() {
	defer func() {
		if r := recover(); r != nil && s.logger != nil {
			s.logger.Error().Str("panic", fmt.Sprintf("%v", r)).Msg("on_sync_complete callback panicked, ignoring")
		}
	}()
	s.config.OnSyncComplete()
}

// TriggerSync runs one cycle now, rejecting the request if a cycle is
// already in progress. The caller receives an immediate acceptance or
// rejection; the cycle itself runs as a background task.
func (s *Scheduler) TriggerSync(forceCrawler, forceFullSync bool) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sync already running for %s scheduler", s.config.Kind)
	}
	s.mu.Unlock()

	go func() {
		if err := s.runCycle(context.Background(), forceCrawler, forceFullSync); err != nil && s.logger != nil {
			s.logger.Warn().Err(err).Str("kind", string(s.config.Kind)).Msg("triggered sync failed")
		}
	}()
	return nil
}

// Stop cancels the background loop and waits (up to 30s) for an in-flight
// cycle to finish, then releases resources.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.state == StateUninitialized || s.state == StateStopped && s.cancel == nil {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	cancel := s.cancel
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.mu.Unlock()

	if stopCh != nil {
		select {
		case <-stopCh:
		default:
			close(stopCh)
		}
	}
	if cancel != nil {
		cancel()
	}
	if doneCh != nil {
		select {
		case <-doneCh:
		case <-time.After(30 * time.Second):
			if s.logger != nil {
				s.logger.Warn().Str("kind", string(s.config.Kind)).Msg("scheduler background loop did not stop within timeout")
			}
		}
	}

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	return nil
}

// Stats reports the independent is_initialized/running flags plus error
// and last-run bookkeeping, per spec §4.11.
type Stats struct {
	IsInitialized bool
	Running       bool
	State         State
	Errors        int
	LastRun       *time.Time
	LastError     string
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		IsInitialized: s.isInitialized,
		Running:       s.running,
		State:         s.state,
		Errors:        s.errors,
		LastRun:       s.lastRun,
		LastError:     s.lastError,
	}
}
