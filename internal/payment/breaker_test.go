package payment

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewBreaker(BreakerConfig{
		Name:        "test",
		MaxFailures: maxFailures,
		Cooldown:    cooldown,
	}, logger)
}

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	b := newTestBreaker(3, time.Minute)
	failing := func() error { return errors.New("gateway down") }

	for i := 0; i < 3; i++ {
		if err := b.Execute(failing); errors.Is(err, ErrGatewayUnavailable) {
			t.Fatalf("call %d rejected before threshold", i+1)
		}
	}

	if err := b.Execute(failing); !errors.Is(err, ErrGatewayUnavailable) {
		t.Errorf("expected ErrGatewayUnavailable after %d failures, got %v", 3, err)
	}
	if got := b.State(); got != "open" {
		t.Errorf("expected open state, got %s", got)
	}
}

func TestBreakerHalfOpenProbeRecovers(t *testing.T) {
	b := newTestBreaker(1, 10*time.Millisecond)

	if err := b.Execute(func() error { return errors.New("boom") }); err == nil {
		t.Fatal("expected failure to propagate")
	}
	if got := b.State(); got != "open" {
		t.Fatalf("expected open state, got %s", got)
	}

	time.Sleep(20 * time.Millisecond)

	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected probe to be allowed after cooldown, got %v", err)
	}
	if got := b.State(); got != "closed" {
		t.Errorf("expected closed state after successful probe, got %s", got)
	}
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	b := newTestBreaker(1, 10*time.Millisecond)

	b.Execute(func() error { return errors.New("boom") })
	time.Sleep(20 * time.Millisecond)

	if err := b.Execute(func() error { return errors.New("still down") }); err == nil {
		t.Fatal("expected probe failure to propagate")
	}
	if got := b.State(); got != "open" {
		t.Errorf("expected open state after failed probe, got %s", got)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := newTestBreaker(2, time.Minute)

	b.Execute(func() error { return errors.New("boom") })
	b.Execute(func() error { return nil })
	b.Execute(func() error { return errors.New("boom") })

	if got := b.State(); got != "closed" {
		t.Errorf("expected closed state, non-consecutive failures should not trip, got %s", got)
	}
}
