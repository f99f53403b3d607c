// Package supabase reads plan tables through the Supabase PostgREST API.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rpgo/finplan/internal/domain"
	"github.com/rpgo/finplan/internal/resilience"
	"github.com/rpgo/finplan/internal/store"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

var _ store.Tables = (*Client)(nil)

// doRequest executes an authenticated GET against PostgREST. Client errors
// (4xx) are wrapped in resilience.Permanent so they are not retried.
func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	u := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, &resilience.Permanent{Err: err}
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil // no data
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		err := fmt.Errorf("supabase returned status %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, &resilience.Permanent{Err: err}
		}
		return nil, err
	}

	c.logger.Debug("supabase: request OK",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return body, nil
}

// listRows fetches every row of table belonging to userID, behind the circuit
// breaker and with retries.
func listRows[T any](ctx context.Context, c *Client, table, userID, query string) ([]T, error) {
	ctx, span := tracer.Start(ctx, "Supabase.List."+table, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var rows []T
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("%s?user_id=eq.%s", table, url.QueryEscape(userID))
			if query != "" {
				path += "&" + query
			}
			body, err := c.doRequest(ctx, path)
			if err != nil {
				return err
			}

			rows = nil
			if body == nil || string(body) == "[]" {
				return nil
			}
			if err := json.Unmarshal(body, &rows); err != nil {
				return &resilience.Permanent{Err: fmt.Errorf("failed to decode %s: %w", table, err)}
			}
			return nil
		})
	})

	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.ErrCircuitOpen{Service: "supabase"}
		}
		return nil, &domain.ErrExternalService{Service: "supabase/" + table, Err: err}
	}
	return rows, nil
}

// GetProfile fetches the user's profile row.
func (c *Client) GetProfile(ctx context.Context, userID string) (*store.ProfileRow, error) {
	rows, err := listRows[store.ProfileRow](ctx, c, "profiles", userID, "limit=1")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: userID}
	}
	return &rows[0], nil
}

// ListAssets fetches the user's accounts.
func (c *Client) ListAssets(ctx context.Context, userID string) ([]store.AssetRow, error) {
	return listRows[store.AssetRow](ctx, c, "assets", userID, "order=id.asc")
}

// ListSavings fetches the user's contributions.
func (c *Client) ListSavings(ctx context.Context, userID string) ([]store.SavingRow, error) {
	return listRows[store.SavingRow](ctx, c, "savings", userID, "order=id.asc")
}

// ListExpenses fetches the user's expenses.
func (c *Client) ListExpenses(ctx context.Context, userID string) ([]store.ExpenseRow, error) {
	return listRows[store.ExpenseRow](ctx, c, "expenses", userID, "order=id.asc")
}

// ListIncomes fetches the user's incomes.
func (c *Client) ListIncomes(ctx context.Context, userID string) ([]store.IncomeRow, error) {
	return listRows[store.IncomeRow](ctx, c, "incomes", userID, "order=id.asc")
}

// ListGoals fetches the user's goals.
func (c *Client) ListGoals(ctx context.Context, userID string) ([]store.GoalRow, error) {
	return listRows[store.GoalRow](ctx, c, "goals", userID, "order=id.asc")
}
