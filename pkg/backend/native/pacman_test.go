package native

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"pkgd/pkg/backend"
	"pkgd/pkg/enum"
)

// recorder collects the events a job emits.
type recorder struct {
	mu     sync.Mutex
	events []backend.Event
}

func (r *recorder) handle(ev backend.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) packages() []backend.PackageEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pkgs []backend.PackageEvent
	for _, ev := range r.events {
		if p, ok := ev.(backend.PackageEvent); ok {
			pkgs = append(pkgs, p)
		}
	}
	return pkgs
}

func (r *recorder) finished(t *testing.T) backend.FinishedEvent {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []backend.FinishedEvent
	for _, ev := range r.events {
		if f, ok := ev.(backend.FinishedEvent); ok {
			found = append(found, f)
		}
	}
	if len(found) != 1 {
		t.Fatalf("expected exactly one finished event, got %d", len(found))
	}
	return found[0]
}

func (r *recorder) errorCode() enum.ErrorCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if e, ok := ev.(backend.ErrorEvent); ok {
			return e.Code
		}
	}
	return enum.ErrorUnknown
}

// fakePacman writes a shell script standing in for pacman.
func fakePacman(t *testing.T, script string) *Pacman {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pacman")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("failed to write fake pacman: %v", err)
	}
	p := NewPacman(nil)
	p.SetBinary(path)
	p.arch = "x86_64"
	return p
}

func newJob(role enum.Role, rec *recorder) *backend.Job {
	return backend.NewJob(context.Background(), backend.JobOptions{Role: role}, rec.handle)
}

func TestPacmanMetadata(t *testing.T) {
	p := NewPacman(nil)

	if p.Name() != "pacman" {
		t.Errorf("expected name 'pacman', got '%s'", p.Name())
	}
	if p.SupportsParallelization() {
		t.Error("pacman should not run jobs in parallel")
	}
	if !p.Roles().Has(enum.RoleInstallPackages) {
		t.Error("pacman should support install-packages")
	}
	if p.Roles().Has(enum.RoleAcceptEula) {
		t.Error("pacman should not support accept-eula")
	}
}

func TestPacmanSearchNames(t *testing.T) {
	p := fakePacman(t, `case "$1" in
-Qs) printf 'local/vim 9.1.0-1\n    Vi Improved\n' ;;
-Ss) printf 'extra/vim 9.1.0-1 [installed]\n    Vi Improved\nextra/gvim 9.1.0-1\n    Vi Improved GUI\nextra/neovim 0.10-1\n    Fork of vim\n' ;;
esac
`)

	rec := &recorder{}
	p.SearchNames(newJob(enum.RoleSearchName, rec), enum.FilterNone, []string{"vim"})

	if exit := rec.finished(t).Exit; exit != enum.ExitSuccess {
		t.Fatalf("exit = %s, want success", exit)
	}

	pkgs := rec.packages()
	want := []string{
		"vim;9.1.0-1;x86_64;installed",
		"gvim;9.1.0-1;x86_64;extra",
		"neovim;0.10-1;x86_64;extra",
	}
	if len(pkgs) != len(want) {
		t.Fatalf("got %d packages, want %d: %+v", len(pkgs), len(want), pkgs)
	}
	for i, id := range want {
		if pkgs[i].PackageID != id {
			t.Errorf("package %d = %s, want %s", i, pkgs[i].PackageID, id)
		}
	}
	if pkgs[0].Info != enum.InfoInstalled || pkgs[1].Info != enum.InfoAvailable {
		t.Errorf("unexpected info values: %s, %s", pkgs[0].Info, pkgs[1].Info)
	}
}

func TestPacmanSearchNoMatch(t *testing.T) {
	p := fakePacman(t, "exit 1\n")

	rec := &recorder{}
	p.SearchDetails(newJob(enum.RoleSearchDetails, rec), enum.FilterNone, []string{"nothing"})

	if exit := rec.finished(t).Exit; exit != enum.ExitSuccess {
		t.Errorf("exit = %s, want success for empty results", exit)
	}
	if len(rec.packages()) != 0 {
		t.Error("expected no packages")
	}
}

func TestPacmanGetDetailsNotFound(t *testing.T) {
	p := fakePacman(t, "echo \"error: package 'ghost' was not found\" >&2\nexit 1\n")

	rec := &recorder{}
	p.GetDetails(newJob(enum.RoleGetDetails, rec), []string{"ghost;1.0;x86_64;installed"})

	if exit := rec.finished(t).Exit; exit != enum.ExitFailed {
		t.Errorf("exit = %s, want failed", exit)
	}
	if code := rec.errorCode(); code != enum.ErrorPackageNotInstalled {
		t.Errorf("error code = %s, want %s", code, enum.ErrorPackageNotInstalled)
	}
}

func TestPacmanGetDetailsInvalidID(t *testing.T) {
	p := fakePacman(t, "exit 0\n")

	rec := &recorder{}
	p.GetDetails(newJob(enum.RoleGetDetails, rec), []string{"not-an-id"})

	if code := rec.errorCode(); code != enum.ErrorPackageIDInvalid {
		t.Errorf("error code = %s, want %s", code, enum.ErrorPackageIDInvalid)
	}
	rec.finished(t)
}

func TestPacmanUnsupportedVerb(t *testing.T) {
	p := NewPacman(nil)

	rec := &recorder{}
	p.AcceptEula(newJob(enum.RoleAcceptEula, rec), "eula")

	if code := rec.errorCode(); code != enum.ErrorNotSupported {
		t.Errorf("error code = %s, want %s", code, enum.ErrorNotSupported)
	}
	if exit := rec.finished(t).Exit; exit != enum.ExitFailed {
		t.Errorf("exit = %s, want failed", exit)
	}
}

func TestRepoTargets(t *testing.T) {
	got := repoTargets([]string{"vim;9.1;x86_64;extra", "bash;5.2;x86_64;installed", "plain"})
	want := []string{"extra/vim", "bash", "plain"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("repoTargets()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
