package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestRegistry() *Registry {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	return NewRegistry(logger)
}

func TestRegisterMultipleConnections(t *testing.T) {
	r := newTestRegistry()

	r.Register(1, "conn-a")
	r.Register(1, "conn-b")
	r.Register(2, "conn-c")

	if got := len(r.Connections(1)); got != 2 {
		t.Errorf("expected 2 connections for user 1, got %d", got)
	}
	if got := len(r.Connections(2)); got != 1 {
		t.Errorf("expected 1 connection for user 2, got %d", got)
	}
	if got := len(r.Connections(3)); got != 0 {
		t.Errorf("expected no connections for unknown user, got %d", got)
	}
}

func TestUnregisterPrunesEmptyUsers(t *testing.T) {
	r := newTestRegistry()

	r.Register(1, "conn-a")
	r.Register(1, "conn-b")
	r.Unregister("conn-a")

	if got := len(r.Connections(1)); got != 1 {
		t.Fatalf("expected 1 connection after unregister, got %d", got)
	}

	r.Unregister("conn-b")

	if got := r.UserCount(); got != 0 {
		t.Errorf("expected user pruned once its set is empty, have %d users", got)
	}
}

func TestUnregisterUnknownConnectionIsNoop(t *testing.T) {
	r := newTestRegistry()
	r.Register(1, "conn-a")
	r.Unregister("never-registered")

	if got := len(r.Connections(1)); got != 1 {
		t.Errorf("expected existing registration untouched, got %d connections", got)
	}
}

func TestConcurrentRegisterUnregister(t *testing.T) {
	r := newTestRegistry()

	const numGoroutines = 50
	const numIterations = 20

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < numIterations; j++ {
				connID := fmt.Sprintf("conn-%d-%d", worker, j)
				r.Register(int64(worker%5), connID)
				r.Connections(int64(worker % 5))
				r.Unregister(connID)
			}
		}(i)
	}
	wg.Wait()

	if got := r.UserCount(); got != 0 {
		t.Errorf("expected empty registry after balanced register/unregister, have %d users", got)
	}
}
