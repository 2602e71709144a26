package backend

import (
	"context"
	"testing"

	"pkgd/pkg/enum"
)

func collect(role enum.Role) (*Job, *[]Event) {
	var events []Event
	job := NewJob(context.Background(), JobOptions{Role: role}, func(ev Event) {
		events = append(events, ev)
	})
	return job, &events
}

func TestJobFinishedSuccess(t *testing.T) {
	job, events := collect(enum.RoleResolve)

	job.Package(enum.InfoInstalled, "bash;5.2;x86_64;installed", "The shell")
	job.Finished()

	if len(*events) != 2 {
		t.Fatalf("got %d events, want 2", len(*events))
	}
	f, ok := (*events)[1].(FinishedEvent)
	if !ok || f.Exit != enum.ExitSuccess {
		t.Errorf("last event = %#v, want finished(success)", (*events)[1])
	}
}

func TestJobErrorSetsFailed(t *testing.T) {
	job, events := collect(enum.RoleInstallPackages)

	job.ErrorCode(enum.ErrorPackageNotFound, "package %s not found", "foo")
	job.Finished()

	e := (*events)[0].(ErrorEvent)
	if e.Details != "package foo not found" {
		t.Errorf("Details = %q", e.Details)
	}
	if job.Exit() != enum.ExitFailed {
		t.Errorf("Exit() = %s, want failed", job.Exit())
	}
}

func TestJobCancel(t *testing.T) {
	job, events := collect(enum.RoleRefreshCache)

	job.Cancel(enum.ExitCancelledPriority)
	if !job.IsCancelled() {
		t.Fatal("IsCancelled() should be true after Cancel()")
	}

	job.ErrorCode(enum.ErrorTransactionCancelled, "stopped")
	job.Finished()

	f := (*events)[len(*events)-1].(FinishedEvent)
	if f.Exit != enum.ExitCancelledPriority {
		t.Errorf("exit = %s, want cancelled-priority", f.Exit)
	}
}

func TestJobDetach(t *testing.T) {
	job, events := collect(enum.RoleSearchName)

	job.Detach()
	job.Status(enum.StatusQuery)
	job.Finished()

	if len(*events) != 0 {
		t.Errorf("got %d events after Detach(), want 0", len(*events))
	}
	if !job.IsCancelled() {
		t.Error("Detach() should release the job context")
	}
}

func TestJobAllowCancelAndLocked(t *testing.T) {
	job, events := collect(enum.RoleInstallPackages)

	if !job.AllowCancel() {
		t.Error("jobs should start cancellable")
	}
	job.SetAllowCancel(true)
	job.SetAllowCancel(false)
	job.SetLocked(true)
	job.SetLocked(true)

	if len(*events) != 2 {
		t.Errorf("got %d events, want only the changes", len(*events))
	}
	if job.AllowCancel() || !job.Locked() {
		t.Error("AllowCancel()/Locked() do not reflect the last change")
	}
}

func TestJobPercentageRange(t *testing.T) {
	job, events := collect(enum.RoleRefreshCache)

	job.Percentage(50)
	job.Percentage(PercentageUnknown)
	job.Percentage(200)

	if len(*events) != 2 {
		t.Errorf("got %d events, want 2", len(*events))
	}
}

func TestProxyEnviron(t *testing.T) {
	env := Proxy{HTTP: "http://proxy:3128", NoProxy: "localhost"}.Environ()
	if len(env) != 2 || env[0] != "http_proxy=http://proxy:3128" || env[1] != "no_proxy=localhost" {
		t.Errorf("Environ() = %v", env)
	}
}
