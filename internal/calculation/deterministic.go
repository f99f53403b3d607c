package calculation

import (
	"time"

	"github.com/rpgo/finplan/pkg/dateutil"
)

// nowFunc returns the current time (override in tests for determinism).
var nowFunc = time.Now

// SetNowFunc overrides the time provider (use only in tests).
func SetNowFunc(f func() time.Time) { nowFunc = f }

// DefaultAsOf returns today's date at midnight UTC. Hosts that do not pin an
// as-of date use it; the engine itself never reads the clock.
func DefaultAsOf() time.Time {
	return dateutil.StartOfDay(nowFunc().UTC())
}
