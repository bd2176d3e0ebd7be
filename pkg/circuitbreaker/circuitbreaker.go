package circuitbreaker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

type Config struct {
	Name string
	// MaxFailures consecutive failures trip the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before a half-open probe.
	OpenTimeout time.Duration
	// Ignored errors count as successes, e.g. not-found results.
	Ignored []error
}

type Breaker struct {
	cb *gobreaker.CircuitBreaker[any]
}

func New(cfg Config, log *slog.Logger) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			for _, ignored := range cfg.Ignored {
				if errors.Is(err, ignored) {
					return true
				}
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[any](st)}
}

func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Execute runs fn through the breaker. Rejections while open or half-open
// are reported as ErrOpen.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	v, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, ErrOpen
	}
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}
