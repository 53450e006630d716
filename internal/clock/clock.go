package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock is the time source used by every admission step.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// New returns a Clock backed by UTC wall time.
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

var Module = fx.Module("clock",
	fx.Provide(New),
)
