package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"pkgd/pkg/backend"
	"pkgd/pkg/enum"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n    uint64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.n); got != tt.want {
			t.Errorf("FormatSize(%d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestProgress(t *testing.T) {
	if got := Progress(enum.StatusRefreshCache, 40); got != "refresh cache (40%)" {
		t.Errorf("Progress() = %q", got)
	}
	if got := Progress(enum.StatusQuery, backend.PercentageUnknown); got != "query" {
		t.Errorf("Progress() with unknown percentage = %q", got)
	}
}

func TestSpinnerText(t *testing.T) {
	Init(false, false)

	sp := NewSpinner("Installing")
	if got := sp.Text(); got != "Installing: wait" {
		t.Errorf("Text() = %q", got)
	}

	sp.SetStatus(enum.StatusDownload)
	sp.SetPercentage(25)
	if got := sp.Text(); got != "Installing: download (25%)" {
		t.Errorf("Text() = %q", got)
	}

	sp.Note("cancelling")
	if got := sp.Text(); got != "Installing: cancelling" {
		t.Errorf("Text() after Note = %q", got)
	}
	sp.SetStatus(enum.StatusCancel)
	if got := sp.Text(); got != "Installing: cancel (25%)" {
		t.Errorf("Text() after status change = %q", got)
	}
}

func TestMessagesUseAsciiMarks(t *testing.T) {
	Init(false, false)
	var buf bytes.Buffer
	prev := Out
	Out = &buf
	defer func() { Out = prev }()

	SuccessMsg("installed %s", "powertop")
	ExitMsg(enum.ExitCancelled, 1500)

	want := "[OK] installed powertop\n[WARN] Cancelled after 1.5s\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestFprintPackages(t *testing.T) {
	Init(false, false)

	var buf bytes.Buffer
	FprintPackages(&buf, []backend.PackageEvent{
		{Info: enum.InfoInstalled, PackageID: "vim;9.1-1;x86_64;installed", Summary: "Vi Improved"},
		{Info: enum.InfoAvailable, PackageID: "not-an-id", Summary: "skipped"},
	})

	out := buf.String()
	if !strings.Contains(out, "vim") || !strings.Contains(out, "9.1-1") {
		t.Errorf("output missing package columns:\n%s", out)
	}
	if strings.Contains(out, "skipped") {
		t.Error("invalid package ids should be skipped")
	}
}

func TestSelectPackageWithoutPrompt(t *testing.T) {
	if _, err := SelectPackage([]backend.PackageEvent{{PackageID: "bad"}}, "pick"); !errors.Is(err, ErrNoChoices) {
		t.Errorf("SelectPackage() with no valid ids = %v, want ErrNoChoices", err)
	}

	id, err := SelectPackage([]backend.PackageEvent{
		{PackageID: "bad"},
		{PackageID: "vim;9.1-1;x86_64;extra"},
	}, "pick")
	if err != nil || id != "vim;9.1-1;x86_64;extra" {
		t.Errorf("SelectPackage() = %q, %v", id, err)
	}
}
