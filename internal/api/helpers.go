package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rpgo/finplan/internal/calculation"
	"github.com/rpgo/finplan/internal/domain"
	"github.com/rpgo/finplan/internal/output"
	"github.com/rpgo/finplan/internal/service"

	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies; plans are small documents.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads a bounded JSON body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &domain.ErrValidation{Field: "body", Message: err.Error()}
	}
	return nil
}

// parseAsOf reads the as_of query parameter (YYYY-MM-DD or RFC3339).
// An absent parameter yields today.
func parseAsOf(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("as_of")
	if v == "" {
		return calculation.DefaultAsOf(), nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &domain.ErrValidation{Field: "as_of", Message: fmt.Sprintf("invalid date %q", v)}
}

// writeComparison renders a comparison as JSON, or through the formatter
// named by the format query parameter.
func writeComparison(w http.ResponseWriter, r *http.Request, cmp *domain.ScenarioComparison, logger *zap.Logger) {
	format := r.URL.Query().Get("format")
	if format == "" || output.NormalizeFormatName(format) == "json" {
		writeJSON(w, http.StatusOK, cmp)
		return
	}
	f, err := output.Lookup(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	body, err := f.Format(cmp)
	if err != nil {
		handleServiceError(w, err, logger)
		return
	}
	w.Header().Set("Content-Type", output.ContentType(f))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var validation *domain.ErrValidation
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, calculation.ErrInvalidInput):
		logger.Debug("invalid projection input", zap.String("error", err.Error()))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrNoPlanSource):
		logger.Warn("stored plans requested without a plan source")
		writeError(w, http.StatusNotImplemented, err.Error())
	case errors.As(err, &external):
		logger.Error("plan store failure", zap.Error(err))
		writeError(w, http.StatusBadGateway, "plan store unavailable")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
