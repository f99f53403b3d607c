package calculation

import (
	"context"
	"fmt"
	"time"

	"github.com/rpgo/finplan/internal/cache"
	"github.com/rpgo/finplan/internal/domain"
)

// ProjectionCacheName labels the projection cache in metrics.
const ProjectionCacheName = "projections"

// Recorder receives cache and timing observations. *observability.Metrics implements it.
type Recorder interface {
	IncrCacheHit(cache string)
	IncrCacheMiss(cache string)
	RecordRequestDuration(operation string, d time.Duration)
	IncrProjection(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) IncrCacheHit(string)                         {}
func (nopRecorder) IncrCacheMiss(string)                        {}
func (nopRecorder) RecordRequestDuration(string, time.Duration) {}
func (nopRecorder) IncrProjection(string)                       {}

// CachedEngine memoizes projection results by input fingerprint. Results are
// returned as shallow copies; callers must treat points and maps as read-only.
type CachedEngine struct {
	engine   *ProjectionEngine
	cache    *cache.InMemory[*domain.ProjectionResult]
	recorder Recorder
}

// NewCachedEngine wraps engine with a TTL cache. A nil recorder discards observations.
func NewCachedEngine(engine *ProjectionEngine, ttl time.Duration, recorder Recorder) *CachedEngine {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &CachedEngine{
		engine:   engine,
		cache:    cache.New[*domain.ProjectionResult](ttl),
		recorder: recorder,
	}
}

// Close stops the cache janitor.
func (ce *CachedEngine) Close() {
	ce.cache.Close()
}

// RunProjection returns the memoized result for in, computing it on a miss.
func (ce *CachedEngine) RunProjection(ctx context.Context, in *ProjectionInput) (*domain.ProjectionResult, error) {
	key, err := Fingerprint(in)
	if err != nil {
		ce.recorder.IncrProjection("error")
		return nil, err
	}

	if res, ok := ce.cache.Get(key); ok {
		ce.recorder.IncrCacheHit(ProjectionCacheName)
		ce.engine.Logger.Debugf("projection cache hit %s", key)
		cp := *res
		return &cp, nil
	}
	ce.recorder.IncrCacheMiss(ProjectionCacheName)

	start := time.Now()
	res, err := ce.engine.RunProjection(ctx, in)
	ce.recorder.RecordRequestDuration("projection", time.Since(start))
	if err != nil {
		ce.recorder.IncrProjection("error")
		return nil, err
	}
	if res.Succeeded() {
		ce.recorder.IncrProjection("funded")
	} else {
		ce.recorder.IncrProjection("shortfall")
	}

	ce.cache.Set(key, res)
	cp := *res
	return &cp, nil
}

// RunComparison runs both scenarios through the cache and pairs them.
func (ce *CachedEngine) RunComparison(ctx context.Context, current, proposed *ProjectionInput) (*domain.ScenarioComparison, error) {
	cur, prop, err := alignInputs(current, proposed)
	if err != nil {
		return nil, err
	}
	a, err := ce.RunProjection(ctx, cur)
	if err != nil {
		return nil, fmt.Errorf("current scenario: %w", err)
	}
	b, err := ce.RunProjection(ctx, prop)
	if err != nil {
		return nil, fmt.Errorf("proposed scenario: %w", err)
	}
	return Compare(a, b), nil
}

// RunScenarios projects every scenario of the plan through the cache.
func (ce *CachedEngine) RunScenarios(ctx context.Context, plan domain.Plan, asOf time.Time) (*domain.ScenarioComparison, error) {
	return runScenarios(ctx, ce, plan, asOf)
}
