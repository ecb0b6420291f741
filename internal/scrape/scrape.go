// Package scrape runs one end-to-end collection cycle: enumerate
// accounts, fan source collectors out across them on a bounded pool, and
// merge the results into an immutable snapshot.
package scrape

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"cpanel_exporter/internal/collectors"
	"cpanel_exporter/internal/config"
	"cpanel_exporter/internal/cpanel"
	"cpanel_exporter/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Enumerator lists the hosted accounts; *cpanel.Client satisfies it.
type Enumerator interface {
	ListAccounts(ctx context.Context) ([]cpanel.Account, error)
}

// Service owns the scrape lifecycle and the single piece of process-wide
// state: the last successfully published snapshot.
type Service struct {
	cfg     *config.Config
	logger  *zap.Logger
	enum    Enumerator
	sources []collectors.Source

	flight singleflight.Group
	last   atomic.Pointer[metrics.Snapshot]

	now func() time.Time
}

func New(cfg *config.Config, logger *zap.Logger, enum Enumerator, sources []collectors.Source) *Service {
	return &Service{
		cfg:     cfg,
		logger:  logger,
		enum:    enum,
		sources: sources,
		now:     time.Now,
	}
}

// Snapshot returns a snapshot for one inbound scrape request. Snapshots
// younger than the freshness window are served from the last-good cell
// without touching the panel; otherwise concurrent requests collapse into
// a single in-flight collection. A new snapshot is published atomically
// and only on success.
//
// The shared collection runs under the initiating request's context, so
// cancellation by that caller fails its piggybacked waiters too. They
// retry on their next scrape interval, which is cheaper than keeping
// panel commands alive past the request that asked for them.
func (s *Service) Snapshot(ctx context.Context) (*metrics.Snapshot, error) {
	if snap := s.fresh(); snap != nil {
		return snap, nil
	}

	v, err, _ := s.flight.Do("scrape", func() (interface{}, error) {
		// A concurrent caller may have published while we waited.
		if snap := s.fresh(); snap != nil {
			return snap, nil
		}
		snap, err := s.collect(ctx)
		if err != nil {
			return nil, err
		}
		s.last.Store(snap)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*metrics.Snapshot), nil
}

// Last returns the last published snapshot, or nil before the first
// successful scrape.
func (s *Service) Last() *metrics.Snapshot {
	return s.last.Load()
}

func (s *Service) fresh() *metrics.Snapshot {
	if s.cfg.Scrape.Freshness <= 0 {
		return nil
	}
	snap := s.last.Load()
	if snap == nil || s.now().Sub(snap.Start) >= s.cfg.Scrape.Freshness {
		return nil
	}
	return snap
}

func (s *Service) collect(ctx context.Context) (*metrics.Snapshot, error) {
	start := s.now()

	accounts, err := s.enum.ListAccounts(ctx)
	if err != nil {
		// Enumeration is the precondition for everything downstream;
		// this is the one failure that aborts the scrape.
		return nil, err
	}

	var (
		mu      sync.Mutex
		results = make([]metrics.SourceResult, 0, len(accounts)*len(s.sources))
	)

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Scrape.MaxInFlight)

	for _, account := range accounts {
		for _, source := range s.sources {
			account, source := account, source
			g.Go(func() error {
				res := source.Collect(ctx, account)
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
				return nil
			})
		}
	}
	// Workers never return errors; failures travel inside their results.
	_ = g.Wait()

	// A cancelled scrape leaves partial results behind: every in-flight
	// command was killed and reported as a failure. Those must never be
	// published as a snapshot.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Merge in a fixed order so that duplicate-series drops are
	// reproducible across runs.
	sort.Slice(results, func(i, j int) bool {
		if results[i].User != results[j].User {
			return results[i].User < results[j].User
		}
		return results[i].Source < results[j].Source
	})

	builder := metrics.NewBuilder(start)
	builder.SetAccounts(len(accounts))
	for _, res := range results {
		if res.Kind == metrics.ResultFailed {
			s.logger.Warn("source collection failed",
				zap.String("source", res.Source),
				zap.String("user", res.User),
				zap.Error(res.Err),
			)
		}
		builder.Add(res)
	}

	snap := builder.Build(s.now())
	s.logger.Debug("scrape complete",
		zap.Int("accounts", snap.Accounts),
		zap.Int("series", len(snap.Measurements)),
		zap.Int("source_errors", snap.SourceErrors),
		zap.Duration("duration", snap.Duration),
	)
	return snap, nil
}
