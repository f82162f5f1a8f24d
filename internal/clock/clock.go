// Package clock provides an injectable time source.
package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock returns the current time. Services take a Clock rather than calling
// time.Now so tests can pin the period math.
type Clock interface {
	Now() time.Time
}

var Module = fx.Provide(NewSystemClock)

type systemClock struct{}

// NewSystemClock returns a Clock backed by the wall clock, in UTC.
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
