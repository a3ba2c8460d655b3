package orderapi

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"julianmorley.ca/con-plar/petstore/pkg/metrics"
)

// CircuitBreaker wraps gobreaker with metrics
type CircuitBreaker struct {
	*gobreaker.CircuitBreaker
	name    string
	service string
}

// NewCircuitBreaker trips once at least 3 requests in a 15s window have a
// failure ratio of 60% or more, and lets trial requests through after 30s.
func NewCircuitBreaker(name, service string) *CircuitBreaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(cbName string, from gobreaker.State, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(service, cbName).Set(stateValue(to))

			log.WithFields(log.Fields{
				"circuit": cbName,
				"from":    from.String(),
				"to":      to.String(),
			}).Info("Circuit breaker state changed")
		},
	})

	metrics.CircuitBreakerState.WithLabelValues(service, name).Set(0)

	return &CircuitBreaker{
		CircuitBreaker: cb,
		name:           name,
		service:        service,
	}
}

// Execute runs fn through the breaker. Only errors returned by fn count as
// failures.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cb.CircuitBreaker.Execute(fn)
	if err != nil {
		metrics.CircuitBreakerFailures.WithLabelValues(cb.service, cb.name).Inc()
	}
	return result, err
}

func (cb *CircuitBreaker) GetState() string {
	return cb.State().String()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// formatError names the circuit when the breaker itself refused the call.
func formatError(circuitName string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) {
		return fmt.Errorf("circuit breaker %s is open (service unavailable): %w", circuitName, err)
	}
	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("circuit breaker %s: too many requests in half-open state: %w", circuitName, err)
	}
	return err
}
