package api

import (
	"net/http"

	"github.com/rpgo/finplan/internal/calculation"
	"github.com/rpgo/finplan/internal/config"
	"github.com/rpgo/finplan/internal/domain"
	"github.com/rpgo/finplan/internal/observability"
	"github.com/rpgo/finplan/internal/output"
	"github.com/rpgo/finplan/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// projectionHandler runs a single input. A missing as_of in the body falls
// back to the query parameter, then to today.
func projectionHandler(planner *service.Planner, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "handler.Projection")
		defer span.End()

		var in calculation.ProjectionInput
		if err := decodeJSON(w, r, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if in.AsOf.IsZero() {
			asOf, err := parseAsOf(r)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			in.AsOf = asOf
		}

		res, err := planner.Project(ctx, &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("projection.id", res.ID))
		writeJSON(w, http.StatusOK, res)
	}
}

type comparisonRequest struct {
	Current  *calculation.ProjectionInput `json:"current"`
	Proposed *calculation.ProjectionInput `json:"proposed"`
}

func comparisonHandler(planner *service.Planner, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "handler.Comparison")
		defer span.End()

		var req comparisonRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if req.Current == nil || req.Proposed == nil {
			writeError(w, http.StatusBadRequest, "current and proposed are required")
			return
		}
		asOf, err := parseAsOf(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		for _, in := range []*calculation.ProjectionInput{req.Current, req.Proposed} {
			if in.AsOf.IsZero() {
				in.AsOf = asOf
			}
		}

		cmp, err := planner.Compare(ctx, req.Current, req.Proposed)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		cmp.Assumptions = output.GenerateAssumptions(req.Current)
		writeComparison(w, r, cmp, logger)
	}
}

// planProjectionHandler validates an inline plan the same way plan files are
// validated, then runs its scenarios.
func planProjectionHandler(planner *service.Planner, logger *zap.Logger) http.HandlerFunc {
	parser := config.NewInputParser()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "handler.PlanProjection")
		defer span.End()

		var plan domain.Plan
		if err := decodeJSON(w, r, &plan); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if err := parser.ValidateConfiguration(&plan); err != nil {
			handleServiceError(w, &domain.ErrValidation{Field: "plan", Message: err.Error()}, logger)
			return
		}
		asOf, err := parseAsOf(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		cmp, err := planner.ProjectPlan(ctx, plan, asOf)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		cmp.Assumptions = output.GenerateAssumptions(calculation.ScenarioInputs(plan, asOf)[0])
		writeComparison(w, r, cmp, logger)
	}
}

func userProjectionHandler(planner *service.Planner, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "handler.UserProjection")
		defer span.End()

		userID := chi.URLParam(r, "userID")
		span.SetAttributes(attribute.String("user.id", userID))

		asOf, err := parseAsOf(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		cmp, err := planner.ProjectUser(ctx, userID, asOf)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeComparison(w, r, cmp, logger)
	}
}

func statsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot(calculation.ProjectionCacheName, service.PlanStoreService))
	}
}
