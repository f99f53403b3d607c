// Package service wires plan loading and the projection engine together for
// the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rpgo/finplan/internal/calculation"
	"github.com/rpgo/finplan/internal/domain"
	"github.com/rpgo/finplan/internal/observability"
	"github.com/rpgo/finplan/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/planner")

// ErrNoPlanSource is returned for stored-plan requests when no store is configured.
var ErrNoPlanSource = errors.New("no plan source configured")

// PlanStoreService labels plan store failures in metrics.
const PlanStoreService = "plan_store"

// Planner runs projections for inline inputs and for stored plans.
type Planner struct {
	source  store.PlanSource
	engine  *calculation.CachedEngine
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewPlanner creates the planner. source may be nil.
func NewPlanner(source store.PlanSource, engine *calculation.CachedEngine, metrics *observability.Metrics, logger *zap.Logger) *Planner {
	return &Planner{
		source:  source,
		engine:  engine,
		metrics: metrics,
		logger:  logger,
	}
}

// Project runs a single projection and stamps it with a run id.
func (p *Planner) Project(ctx context.Context, in *calculation.ProjectionInput) (*domain.ProjectionResult, error) {
	ctx, span := tracer.Start(ctx, "Planner.Project")
	defer span.End()

	res, err := p.engine.RunProjection(ctx, in)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	res.ID = uuid.NewString()
	span.SetAttributes(
		attribute.String("projection.id", res.ID),
		attribute.String("projection.fingerprint", res.Fingerprint),
	)
	return res, nil
}

// Compare runs current and proposed over a shared horizon.
func (p *Planner) Compare(ctx context.Context, current, proposed *calculation.ProjectionInput) (*domain.ScenarioComparison, error) {
	ctx, span := tracer.Start(ctx, "Planner.Compare")
	defer span.End()

	cmp, err := p.engine.RunComparison(ctx, current, proposed)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	stamp(cmp)
	return cmp, nil
}

// ProjectPlan runs every scenario of an inline plan.
func (p *Planner) ProjectPlan(ctx context.Context, plan domain.Plan, asOf time.Time) (*domain.ScenarioComparison, error) {
	ctx, span := tracer.Start(ctx, "Planner.ProjectPlan")
	defer span.End()

	cmp, err := p.engine.RunScenarios(ctx, plan, asOf)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	stamp(cmp)
	return cmp, nil
}

// ProjectUser loads the user's stored plan and projects it.
func (p *Planner) ProjectUser(ctx context.Context, userID string, asOf time.Time) (*domain.ScenarioComparison, error) {
	ctx, span := tracer.Start(ctx, "Planner.ProjectUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if p.source == nil {
		return nil, ErrNoPlanSource
	}

	start := time.Now()
	plan, err := p.source.LoadPlan(ctx, userID)
	p.metrics.RecordRequestDuration("plan_load", time.Since(start))
	if err != nil {
		var ext *domain.ErrExternalService
		var open *domain.ErrCircuitOpen
		if errors.As(err, &ext) || errors.As(err, &open) {
			p.metrics.IncrExternalError(PlanStoreService)
		}
		p.logger.Error("failed to load plan",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		span.RecordError(err)
		return nil, fmt.Errorf("load plan: %w", err)
	}

	p.logger.Debug("plan loaded",
		zap.String("user_id", userID),
		zap.Int("accounts", len(plan.Accounts)),
		zap.Int("goals", len(plan.Goals)),
	)
	return p.ProjectPlan(ctx, *plan, asOf)
}

func stamp(cmp *domain.ScenarioComparison) {
	for i := range cmp.Scenarios {
		cmp.Scenarios[i].ID = uuid.NewString()
	}
}
