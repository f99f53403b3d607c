package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()

	m.IncrCacheHit("projections")
	m.IncrCacheHit("projections")
	m.IncrCacheMiss("projections")
	m.IncrCacheHit("other")
	m.IncrProjection("funded")
	m.IncrProjection("funded")
	m.IncrProjection("shortfall")
	m.IncrProjection("error")
	m.IncrExternalError("supabase")
	m.RecordRequestDuration("projection", 20*time.Millisecond)

	s := m.Snapshot("projections", "supabase", "postgres")
	assert.Equal(t, 2.0, s.CacheHits)
	assert.Equal(t, 1.0, s.CacheMisses)
	assert.InDelta(t, 2.0/3.0, s.CacheHitRate, 1e-9)
	assert.Equal(t, 4.0, s.Projections)
	assert.InDelta(t, 1.0/3.0, s.ShortfallRate, 1e-9)
	assert.Equal(t, 1.0, s.ExternalErrors)

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["finplan_operation_duration_seconds"])
	assert.True(t, names["finplan_projections_total"])
}

func TestNewMetricsTwice(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics()
		NewMetrics()
	})
}

func TestNewLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", ""} {
		l := NewLogger(level)
		require.NotNil(t, l)
		_ = l.Sync()
	}
}
