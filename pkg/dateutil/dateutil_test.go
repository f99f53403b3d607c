package dateutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestAgeCalculation tests the age calculation function with various scenarios
func TestAgeCalculation(t *testing.T) {
	tests := []struct {
		name        string
		birthDate   time.Time
		atDate      time.Time
		expectedAge int
	}{
		{
			name:        "Same month and day",
			birthDate:   time.Date(1965, 2, 25, 0, 0, 0, 0, time.UTC),
			atDate:      time.Date(2025, 2, 25, 0, 0, 0, 0, time.UTC),
			expectedAge: 60,
		},
		{
			name:        "Day before birthday",
			birthDate:   time.Date(1965, 2, 25, 0, 0, 0, 0, time.UTC),
			atDate:      time.Date(2025, 2, 24, 0, 0, 0, 0, time.UTC),
			expectedAge: 59,
		},
		{
			name:        "Month after birthday",
			birthDate:   time.Date(1965, 2, 25, 0, 0, 0, 0, time.UTC),
			atDate:      time.Date(2025, 3, 25, 0, 0, 0, 0, time.UTC),
			expectedAge: 60,
		},
		{
			name:        "Leap year birth, non-leap year check",
			birthDate:   time.Date(1964, 2, 29, 0, 0, 0, 0, time.UTC),
			atDate:      time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
			expectedAge: 60,
		},
		{
			name:        "Leap year birth, leap year check",
			birthDate:   time.Date(1964, 2, 29, 0, 0, 0, 0, time.UTC),
			atDate:      time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			expectedAge: 60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedAge, Age(tt.birthDate, tt.atDate))
		})
	}
}

func TestStartOfDay(t *testing.T) {
	base := time.Date(2025, 6, 15, 22, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), StartOfDay(base))

	est := time.FixedZone("EST", -5*3600)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), StartOfDay(time.Date(2025, 6, 15, 23, 0, 0, 0, est)))
}

func TestSameDay(t *testing.T) {
	a := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.True(t, SameDay(a, a.Add(23*time.Hour)))
	assert.False(t, SameDay(a, a.Add(24*time.Hour)))
	assert.False(t, SameDay(a, a.AddDate(1, 0, 0)))
}
