package crawler

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ternarybob/arbor"
)

// AdaptiveRateLimiter imposes exponential backoff between requests to a
// host after consecutive 429s, decaying back toward normal pacing on
// success, per spec §4.7.
type AdaptiveRateLimiter struct {
	mu        sync.Mutex
	hosts     map[string]*hostLimiter
	baseLimit rate.Limit
	logger    arbor.ILogger
}

type hostLimiter struct {
	limiter        *rate.Limiter
	consecutive429 int
}

// NewAdaptiveRateLimiter creates a limiter pacing requests to baseRPS
// requests/second per host under normal conditions.
func NewAdaptiveRateLimiter(baseRPS float64, logger arbor.ILogger) *AdaptiveRateLimiter {
	if baseRPS <= 0 {
		baseRPS = 2
	}
	return &AdaptiveRateLimiter{
		hosts:     make(map[string]*hostLimiter),
		baseLimit: rate.Limit(baseRPS),
		logger:    logger,
	}
}

func (a *AdaptiveRateLimiter) hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func (a *AdaptiveRateLimiter) limiterFor(host string) *hostLimiter {
	a.mu.Lock()
	defer a.mu.Unlock()
	hl, ok := a.hosts[host]
	if !ok {
		hl = &hostLimiter{limiter: rate.NewLimiter(a.baseLimit, 1)}
		a.hosts[host] = hl
	}
	return hl
}

// Wait blocks until the host's current pacing allows another request.
func (a *AdaptiveRateLimiter) Wait(ctx context.Context, rawURL string) error {
	host := a.hostOf(rawURL)
	if host == "" {
		return nil
	}
	return a.limiterFor(host).limiter.Wait(ctx)
}

// OnRateLimited halves the host's current limit (exponential backoff) and
// increments its consecutive-429 counter; called on an HTTP 429 response.
func (a *AdaptiveRateLimiter) OnRateLimited(rawURL string) {
	host := a.hostOf(rawURL)
	if host == "" {
		return
	}
	hl := a.limiterFor(host)
	a.mu.Lock()
	defer a.mu.Unlock()
	hl.consecutive429++
	newLimit := hl.limiter.Limit() / 2
	if newLimit < rate.Limit(0.05) {
		newLimit = rate.Limit(0.05)
	}
	hl.limiter.SetLimit(newLimit)
	if a.logger != nil {
		a.logger.Warn().Str("host", host).Float64("new_limit_rps", float64(newLimit)).Msg("rate limited, backing off")
	}
}

// OnSuccess decays the host's consecutive-429 counter and restores pacing
// toward baseLimit.
func (a *AdaptiveRateLimiter) OnSuccess(rawURL string) {
	host := a.hostOf(rawURL)
	if host == "" {
		return
	}
	hl := a.limiterFor(host)
	a.mu.Lock()
	defer a.mu.Unlock()
	if hl.consecutive429 > 0 {
		hl.consecutive429--
	}
	if hl.consecutive429 == 0 && hl.limiter.Limit() < a.baseLimit {
		hl.limiter.SetLimit(a.baseLimit)
	}
}

// AdaptiveConcurrencyLimiterSnapshot reports observability stats.
type AdaptiveConcurrencyLimiterSnapshot struct {
	CurrentLimit  int
	PeakLimit     int
	ActiveWorkers int
	PeakActive    int
}

// AdaptiveConcurrencyLimiter is a resizable semaphore that grows on a
// sustained success streak and halves on a rate-limit signal, per §4.7.
type AdaptiveConcurrencyLimiter struct {
	mu                 sync.Mutex
	cond               *sync.Cond
	current            int
	minLimit           int
	maxLimit           int
	peakLimit          int
	active             int
	peakActive         int
	successStreak      int
	lastRateLimitEvent time.Time
}

// NewAdaptiveConcurrencyLimiter starts at minLimit, capped at maxLimit.
func NewAdaptiveConcurrencyLimiter(minLimit, maxLimit int) *AdaptiveConcurrencyLimiter {
	if minLimit <= 0 {
		minLimit = 5
	}
	if maxLimit < minLimit {
		maxLimit = minLimit
	}
	l := &AdaptiveConcurrencyLimiter{
		minLimit:  minLimit,
		maxLimit:  maxLimit,
		current:   minLimit,
		peakLimit: minLimit,
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Acquire blocks until the number of active workers is below the current
// limit.
func (l *AdaptiveConcurrencyLimiter) Acquire(ctx context.Context) error {
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.cond.Broadcast()
			l.mu.Unlock()
		case <-stopWatch:
		}
	}()

	l.mu.Lock()
	defer l.mu.Unlock()

	for l.active >= l.current {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.cond.Wait()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	l.active++
	if l.active > l.peakActive {
		l.peakActive = l.active
	}
	return nil
}

// Release frees one active slot.
func (l *AdaptiveConcurrencyLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active--
	l.cond.Broadcast()
}

// OnSuccess increments the success streak; once it crosses 25 with at
// least 60s since the last rate-limit event, the limit grows by 1.
func (l *AdaptiveConcurrencyLimiter) OnSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.successStreak++
	if l.successStreak >= 25 && time.Since(l.lastRateLimitEvent) >= 60*time.Second && l.current < l.maxLimit {
		l.current++
		if l.current > l.peakLimit {
			l.peakLimit = l.current
		}
		l.successStreak = 0
		l.cond.Broadcast()
	}
}

// OnRateLimited halves the current limit (never below minLimit) and
// resets the success streak.
func (l *AdaptiveConcurrencyLimiter) OnRateLimited() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastRateLimitEvent = time.Now()
	l.successStreak = 0

	newLimit := l.current / 2
	if newLimit < l.minLimit {
		newLimit = l.minLimit
	}
	l.current = newLimit
}

// Snapshot reports the current observability state.
func (l *AdaptiveConcurrencyLimiter) Snapshot() AdaptiveConcurrencyLimiterSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return AdaptiveConcurrencyLimiterSnapshot{
		CurrentLimit:  l.current,
		PeakLimit:     l.peakLimit,
		ActiveWorkers: l.active,
		PeakActive:    l.peakActive,
	}
}
