package payment

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrGatewayUnavailable is returned without attempting a call while the
// breaker is open after repeated gateway failures.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type BreakerConfig struct {
	Name        string
	MaxFailures int
	Cooldown    time.Duration
}

// Breaker is a minimal circuit breaker for outbound gateway calls. After
// MaxFailures consecutive failures it rejects calls for Cooldown, then
// lets a single probe through. It never retries a call on its own: payment
// operations carry no idempotency keys, so retrying risks double effects.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration

	mutex        sync.Mutex
	state        breakerState
	failures     int
	lastFailTime time.Time

	logger *logrus.Logger
}

func NewBreaker(config BreakerConfig, logger *logrus.Logger) *Breaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name:        config.Name,
		maxFailures: config.MaxFailures,
		cooldown:    config.Cooldown,
		state:       breakerClosed,
		logger:      logger,
	}
}

func (b *Breaker) Execute(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) allow() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.state == breakerOpen {
		if time.Since(b.lastFailTime) < b.cooldown {
			return ErrGatewayUnavailable
		}
		b.setState(breakerHalfOpen)
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if err == nil {
		if b.state == breakerHalfOpen {
			b.setState(breakerClosed)
		}
		b.failures = 0
		return
	}

	b.failures++
	b.lastFailTime = time.Now()

	if b.state == breakerHalfOpen || b.failures >= b.maxFailures {
		b.setState(breakerOpen)
	}
}

func (b *Breaker) setState(next breakerState) {
	if b.state == next {
		return
	}
	b.logger.WithFields(logrus.Fields{
		"breaker": b.name,
		"from":    b.state.String(),
		"to":      next.String(),
	}).Warn("Circuit breaker state change")
	b.state = next
}

func (b *Breaker) State() string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state.String()
}
