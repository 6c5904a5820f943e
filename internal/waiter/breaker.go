package waiter

import (
	"errors"
	log "log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

var ErrTooManyErrors = errors.New("too many consecutive errors")

// errorBreaker trips after max consecutive failed turns. Only successes and
// failures are recorded; misses leave the streak untouched.
type errorBreaker struct {
	cb *gobreaker.CircuitBreaker[Outcome]
}

func newErrorBreaker(max int, logger *log.Logger) *errorBreaker {
	cb := gobreaker.NewCircuitBreaker[Outcome](gobreaker.Settings{
		Name:    "turns",
		Timeout: 24 * time.Hour,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(max)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return &errorBreaker{cb: cb}
}

// record passes a finished turn through the breaker and reports whether it is open.
func (b *errorBreaker) record(outcome Outcome, err error) bool {
	if err == nil && outcome != Success {
		return b.open()
	}
	_, _ = b.cb.Execute(func() (Outcome, error) { return outcome, err })
	return b.open()
}

func (b *errorBreaker) open() bool {
	return b.cb.State() == gobreaker.StateOpen
}

func (b *errorBreaker) consecutive() int {
	return int(b.cb.Counts().ConsecutiveFailures)
}
