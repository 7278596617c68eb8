package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gorhill/cronexpr"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/loksabha/internal/cache"
	"github.com/mohammad-safakhou/loksabha/internal/store"
	"github.com/mohammad-safakhou/loksabha/internal/valueindex"
)

// hintFields are the columns whose values are offered to the model as spelling hints.
var hintFields = []string{"State_Name", "Party", "Constituency_Name"}

// Refresher rebuilds the value index and re-warms the filter cache on a cron schedule.
type Refresher struct {
	Store  *store.Store
	Cache  cache.Cache
	Index  *valueindex.Index
	Logger *zap.Logger
	// Tick is how often the schedule is evaluated. Defaults to one minute.
	Tick time.Duration

	expr *cronexpr.Expression
	last time.Time
}

// NewRefresher parses schedule (standard cron or @hourly style).
func NewRefresher(schedule string, st *store.Store, c cache.Cache, idx *valueindex.Index, logger *zap.Logger) (*Refresher, error) {
	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = cache.Noop{}
	}
	return &Refresher{Store: st, Cache: c, Index: idx, Logger: logger, expr: expr}, nil
}

// Refresh reloads filter values once. The first call should happen before serving.
func (r *Refresher) Refresh(ctx context.Context) error {
	start := time.Now()
	opts, err := WarmFilters(ctx, r.Store, r.Cache, r.Logger)
	if err != nil {
		return fmt.Errorf("load filter values: %w", err)
	}
	if r.Index != nil {
		if err := r.Index.Rebuild(indexValues(opts)); err != nil {
			return fmt.Errorf("rebuild value index: %w", err)
		}
	}
	r.last = start
	r.Logger.Info("refreshed filter values",
		zap.Int("indexed", r.indexLen()),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func (r *Refresher) indexLen() int {
	if r.Index == nil {
		return 0
	}
	return r.Index.Len()
}

// Start runs the schedule loop until ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	tick := r.Tick
	if tick <= 0 {
		tick = time.Minute
	}
	ticker := time.NewTicker(tick)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if !r.due(now) {
					continue
				}
				if err := r.Refresh(ctx); err != nil {
					r.Logger.Warn("refresh failed", zap.Error(err))
				}
			}
		}
	}()
}

// due reports whether the schedule fired between the last refresh and now.
func (r *Refresher) due(now time.Time) bool {
	if r.last.IsZero() {
		return true
	}
	next := r.expr.Next(r.last)
	return !next.IsZero() && !next.After(now)
}

func indexValues(opts map[string][]any) map[string][]string {
	out := make(map[string][]string, len(hintFields))
	for _, f := range hintFields {
		for _, v := range opts[f] {
			s, ok := v.(string)
			if !ok || s == "" {
				continue
			}
			out[f] = append(out[f], s)
		}
	}
	return out
}
