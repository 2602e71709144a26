package history

import (
	"strings"
	"testing"

	"pkgd/pkg/enum"
)

func TestNewEntry(t *testing.T) {
	entry := NewEntry("/7_qwertyui", enum.RoleRemovePackages, 1000, "pkgd remove vim")

	if entry.TID != "/7_qwertyui" {
		t.Errorf("TID = %s", entry.TID)
	}
	if entry.Role != "remove-packages" {
		t.Errorf("expected role remove-packages, got %s", entry.Role)
	}
	if entry.Succeeded {
		t.Error("new entry should not be marked succeeded")
	}
	if entry.Timestamp.IsZero() {
		t.Error("entry timestamp should be set")
	}
}

func TestPackageListRoundTrip(t *testing.T) {
	lines := []PackageLine{
		{Info: enum.InfoInstalling, PackageID: "vim;9.1;x86_64;extra", Summary: "Vi Improved"},
		{Info: enum.InfoRemoving, PackageID: "nano;8.0;x86_64;installed", Summary: ""},
	}

	e := &Entry{Data: FormatPackageList(lines)}
	got := e.Packages()

	if len(got) != 2 {
		t.Fatalf("Packages() returned %d lines, want 2", len(got))
	}
	for i := range lines {
		if got[i] != lines[i] {
			t.Errorf("line %d = %+v, want %+v", i, got[i], lines[i])
		}
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  []string
	}{
		{
			name:  "no packages",
			entry: Entry{Role: "refresh-cache", Succeeded: true},
			want:  []string{"refresh-cache", "(success)"},
		},
		{
			name: "several packages",
			entry: Entry{Role: "install-packages", Data: FormatPackageList([]PackageLine{
				{Info: enum.InfoInstalling, PackageID: "a;1;x86_64;extra"},
				{Info: enum.InfoInstalling, PackageID: "b;1;x86_64;extra"},
			})},
			want: []string{"a;1;x86_64;extra +1", "(failed)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.entry.Summary()
			for _, w := range tt.want {
				if !strings.Contains(s, w) {
					t.Errorf("Summary() = %q, missing %q", s, w)
				}
			}
		})
	}
}
