package backend

import (
	"context"
	"errors"
	"testing"

	"pkgd/pkg/enum"
)

// mockBackend for testing
type mockBackend struct {
	Unsupported
	name      string
	available bool
	parallel  bool
}

func (m *mockBackend) Name() string                  { return m.name }
func (m *mockBackend) Description() string           { return "Mock " + m.name }
func (m *mockBackend) IsAvailable() bool             { return m.available }
func (m *mockBackend) Roles() enum.Roles             { return enum.NewRoles(enum.RoleResolve) }
func (m *mockBackend) Filters() enum.Filter          { return enum.FilterInstalled }
func (m *mockBackend) SupportsParallelization() bool { return m.parallel }

func TestPoolRegister(t *testing.T) {
	pool := NewPool()

	mock := &mockBackend{name: "mock", available: true}
	pool.Register(mock)

	b, ok := pool.Get("mock")
	if !ok {
		t.Error("Get() should find registered backend")
	}
	if b != mock {
		t.Error("Get() returned wrong backend")
	}

	if _, ok := pool.Get("nonexistent"); ok {
		t.Error("Get() should return false for non-existent backend")
	}
}

func TestPoolAvailable(t *testing.T) {
	pool := NewPool()
	pool.Register(&mockBackend{name: "available", available: true})
	pool.Register(&mockBackend{name: "unavailable", available: false})

	available := pool.Available()
	if len(available) != 1 || available[0].Name() != "available" {
		t.Errorf("Available() = %v, want only the available backend", available)
	}

	if all := pool.All(); len(all) != 2 {
		t.Errorf("All() should return 2 backends, got %d", len(all))
	}
}

func TestPoolSelect(t *testing.T) {
	pool := NewPool()
	pool.Register(&mockBackend{name: "mock", available: true, parallel: true})
	pool.Register(&mockBackend{name: "broken", available: false})

	if pool.Active() != nil {
		t.Error("Active() should be nil before Select()")
	}
	if pool.SupportsParallelization() {
		t.Error("SupportsParallelization() should be false without a backend")
	}

	if err := pool.Select("mock"); err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if pool.Active() == nil || pool.Active().Name() != "mock" {
		t.Error("Select() did not activate the backend")
	}
	if !pool.SupportsParallelization() {
		t.Error("SupportsParallelization() should follow the active backend")
	}

	if err := pool.Select("broken"); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Select(broken) error = %v, want ErrBackendUnavailable", err)
	}
	if err := pool.Select("missing"); !errors.Is(err, ErrBackendNotFound) {
		t.Errorf("Select(missing) error = %v, want ErrBackendNotFound", err)
	}
}

func TestUnsupportedFinishes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	var events []Event
	job := NewJob(ctx, JobOptions{Role: enum.RoleGetCategories}, func(ev Event) {
		events = append(events, ev)
	})

	(&mockBackend{}).GetCategories(job)

	if len(events) != 2 {
		t.Fatalf("got %d events, want error + finished", len(events))
	}
	if e, ok := events[0].(ErrorEvent); !ok || e.Code != enum.ErrorNotSupported {
		t.Errorf("first event = %#v, want not-supported error", events[0])
	}
	if f, ok := events[1].(FinishedEvent); !ok || f.Exit != enum.ExitFailed {
		t.Errorf("second event = %#v, want finished(failed)", events[1])
	}
}
