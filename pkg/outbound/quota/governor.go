// Package quota implements the monthly/daily call budget governor for
// budget-constrained providers.
//
// Counters reset lazily: the current UTC day and month are compared on
// every counter-reading or counter-writing operation, so a boundary
// crossing is detected on the next call rather than by a timer. The
// monthly counter is persisted to the external cache on every recorded
// call (fire-and-forget) so a restart does not silently reset the budget.
//
// Quota reporting is best-effort, not exactly-once: a restart between a
// counter increment and its persisted write can under-report that period.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"skylight-hq/comet/pkg/cache"
)

// persistTTL covers slightly more than one month so a restored value is
// still present late in the month.
const persistTTL = 35 * 24 * time.Hour

// persistTimeout bounds the background cache write.
const persistTimeout = 5 * time.Second

// Config configures a quota governor.
type Config struct {
	// Provider is the name of the budget-constrained provider.
	Provider string

	// MonthlyBudget is the hard monthly call budget.
	MonthlyBudget int64

	// WarnPercent is the budget percentage that emits a warning log
	// (once per month). Default: 80.
	WarnPercent int

	// LimitPercent is the budget percentage at which calls are
	// rejected. Default: 95.
	LimitPercent int

	// Cache persists the monthly counter across restarts. Optional;
	// persistence is skipped when nil.
	Cache cache.Cache

	// Logger receives threshold and persistence logs.
	Logger *slog.Logger

	// Clock overrides the time source for tests.
	Clock func() time.Time
}

// Governor tracks daily/monthly call counts against a configured budget.
// One instance is shared by all callers against the provider.
type Governor struct {
	provider     string
	budget       int64
	warnPercent  int
	limitPercent int

	requestsToday     int64
	requestsThisMonth int64
	requestsTotal     int64
	perEndpoint       map[string]int64
	lastResetDay      int
	lastResetMonth    time.Month
	lastResetYear     int
	warnEmitted       bool
	limitEmitted      bool

	cache  cache.Cache
	logger *slog.Logger

	mu  sync.Mutex
	now func() time.Time
}

// New creates a quota governor.
func New(cfg Config) *Governor {
	if cfg.WarnPercent <= 0 {
		cfg.WarnPercent = 80
	}
	if cfg.LimitPercent <= 0 {
		cfg.LimitPercent = 95
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := clock().UTC()
	return &Governor{
		provider:       cfg.Provider,
		budget:         cfg.MonthlyBudget,
		warnPercent:    cfg.WarnPercent,
		limitPercent:   cfg.LimitPercent,
		perEndpoint:    make(map[string]int64),
		lastResetDay:   now.Day(),
		lastResetMonth: now.Month(),
		lastResetYear:  now.Year(),
		cache:          cfg.Cache,
		logger:         logger.With("component", "quota", "provider", cfg.Provider),
		now:            clock,
	}
}

// Restore loads the persisted monthly counter from the cache at startup.
//
// The persisted value is applied only if strictly greater than the
// current in-memory value, guarding against a stale smaller snapshot
// clobbering a higher count in the window right after process start.
// Best-effort: any cache failure leaves the counters untouched.
func (g *Governor) Restore(ctx context.Context) {
	if g.cache == nil {
		return
	}

	value, found, err := g.cache.Get(ctx, g.persistKey(g.now().UTC()))
	if err != nil || !found {
		return
	}

	persisted, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil {
		g.logger.Warn("ignoring malformed persisted quota counter", "value", string(value))
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if persisted > g.requestsThisMonth {
		g.requestsThisMonth = persisted
		g.logger.Info("restored monthly quota counter from cache",
			"requests_this_month", persisted,
		)
	}
}

// IsExceeded reports whether the monthly counter has reached the limit
// threshold. Checked before any network attempt; a rejected call never
// increments any counter.
func (g *Governor) IsExceeded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.checkResetsLocked(g.now().UTC())
	return g.requestsThisMonth >= g.limitThreshold()
}

// Used returns the monthly counter and the configured budget.
func (g *Governor) Used() (used, budget int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.checkResetsLocked(g.now().UTC())
	return g.requestsThisMonth, g.budget
}

// RecordCall increments all counters for an attempted network call,
// successful or not, then persists the monthly counter to the cache in
// the background. Persistence never blocks the caller and never fails
// the request.
func (g *Governor) RecordCall(endpoint string) {
	g.mu.Lock()

	now := g.now().UTC()
	g.checkResetsLocked(now)

	g.requestsToday++
	g.requestsThisMonth++
	g.requestsTotal++
	g.perEndpoint[endpoint]++

	if !g.warnEmitted && g.requestsThisMonth >= g.warnThreshold() {
		g.warnEmitted = true
		g.logger.Warn("monthly quota warning threshold reached",
			"requests_this_month", g.requestsThisMonth,
			"budget", g.budget,
			"warn_percent", g.warnPercent,
		)
	}
	if !g.limitEmitted && g.requestsThisMonth >= g.limitThreshold() {
		g.limitEmitted = true
		g.logger.Error("monthly quota limit threshold reached, rejecting further calls",
			"requests_this_month", g.requestsThisMonth,
			"budget", g.budget,
			"limit_percent", g.limitPercent,
		)
	}

	monthly := g.requestsThisMonth
	g.mu.Unlock()

	if g.cache != nil {
		go g.persist(now, monthly)
	}
}

// Persist writes the current monthly counter to the cache synchronously.
// Used by the scheduled sweep; RecordCall persists asynchronously.
func (g *Governor) Persist(ctx context.Context) {
	if g.cache == nil {
		return
	}

	g.mu.Lock()
	now := g.now().UTC()
	g.checkResetsLocked(now)
	monthly := g.requestsThisMonth
	g.mu.Unlock()

	key := g.persistKey(now)
	if err := g.cache.Set(ctx, key, []byte(strconv.FormatInt(monthly, 10)), persistTTL); err != nil {
		g.logger.Warn("quota persistence failed", "key", key, "error", err)
	}
}

// Stats is a point-in-time snapshot of quota usage for the observability
// surface.
type Stats struct {
	// RequestsToday is the counter for the current UTC day.
	RequestsToday int64

	// RequestsThisMonth is the counter for the current UTC month.
	RequestsThisMonth int64

	// RequestsTotal is the all-time counter.
	RequestsTotal int64

	// Budget is the configured monthly budget.
	Budget int64

	// PercentUsed is the monthly counter as a percentage of the budget.
	PercentUsed float64

	// PerEndpoint breaks the monthly counter down by endpoint.
	PerEndpoint map[string]int64

	// Exceeded reports whether the limit threshold has been reached.
	Exceeded bool
}

// Stats returns a snapshot of quota usage.
func (g *Governor) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.checkResetsLocked(g.now().UTC())

	perEndpoint := make(map[string]int64, len(g.perEndpoint))
	for endpoint, count := range g.perEndpoint {
		perEndpoint[endpoint] = count
	}

	s := Stats{
		RequestsToday:     g.requestsToday,
		RequestsThisMonth: g.requestsThisMonth,
		RequestsTotal:     g.requestsTotal,
		Budget:            g.budget,
		PerEndpoint:       perEndpoint,
		Exceeded:          g.requestsThisMonth >= g.limitThreshold(),
	}
	if g.budget > 0 {
		s.PercentUsed = float64(g.requestsThisMonth) / float64(g.budget) * 100
	}
	return s
}

// checkResetsLocked applies lazy UTC day/month rollovers. A day change
// zeroes the daily counter; a month change additionally zeroes the
// monthly counter, the per-endpoint map, and both emitted flags.
// Caller must hold the lock.
func (g *Governor) checkResetsLocked(now time.Time) {
	monthChanged := now.Month() != g.lastResetMonth || now.Year() != g.lastResetYear

	if now.Day() != g.lastResetDay || monthChanged {
		g.requestsToday = 0
		g.lastResetDay = now.Day()
	}

	if monthChanged {
		g.requestsThisMonth = 0
		g.perEndpoint = make(map[string]int64)
		g.warnEmitted = false
		g.limitEmitted = false
		g.lastResetMonth = now.Month()
		g.lastResetYear = now.Year()

		g.logger.Info("monthly quota counters reset")
	}
}

func (g *Governor) warnThreshold() int64 {
	return g.budget * int64(g.warnPercent) / 100
}

func (g *Governor) limitThreshold() int64 {
	return g.budget * int64(g.limitPercent) / 100
}

func (g *Governor) persistKey(now time.Time) string {
	return fmt.Sprintf("quota:%s:usage:%s", g.provider, now.Format("2006-01"))
}

func (g *Governor) persist(now time.Time, monthly int64) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	key := g.persistKey(now)
	if err := g.cache.Set(ctx, key, []byte(strconv.FormatInt(monthly, 10)), persistTTL); err != nil {
		g.logger.Warn("quota persistence failed", "key", key, "error", err)
	}
}
