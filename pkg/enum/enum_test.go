package enum

import "testing"

func TestRoleExclusive(t *testing.T) {
	tests := []struct {
		role      Role
		exclusive bool
	}{
		{RoleInstallPackages, true},
		{RoleInstallFiles, true},
		{RoleRemovePackages, true},
		{RoleUpdatePackages, true},
		{RoleUpgradeSystem, true},
		{RoleRepairSystem, true},
		{RoleSearchName, false},
		{RoleRefreshCache, false},
		{RoleGetUpdates, false},
	}

	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			if got := tt.role.Exclusive(); got != tt.exclusive {
				t.Errorf("%s.Exclusive() = %v, want %v", tt.role, got, tt.exclusive)
			}
		})
	}
}

func TestParseRoleUnknown(t *testing.T) {
	if got := ParseRole("make-coffee"); got != RoleUnknown {
		t.Errorf("ParseRole() = %v, want unknown", got)
	}
	if got := ParseRole("search-name"); got != RoleSearchName {
		t.Errorf("ParseRole(search-name) = %v", got)
	}
}

func TestRolesSet(t *testing.T) {
	set := NewRoles(RoleResolve, RoleInstallPackages)

	if !set.Has(RoleResolve) || !set.Has(RoleInstallPackages) {
		t.Error("expected both roles in set")
	}
	if set.Has(RoleRemovePackages) {
		t.Error("remove-packages should not be in set")
	}
	if set.Has(RoleUnknown) {
		t.Error("unknown role must never be a member")
	}
	if got := set.String(); got != "install-packages;resolve" {
		t.Errorf("String() = %q", got)
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		input   string
		want    Filter
		wantErr bool
	}{
		{"none", FilterNone, false},
		{"installed", FilterInstalled, false},
		{"~installed;devel", FilterNotInstalled | FilterDevelopment, false},
		{"", 0, true},
		{"installed;", 0, true},
		{"installed;;gui", 0, true},
		{"shiny", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFilter(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFilter(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFilter(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFilterString(t *testing.T) {
	f := FilterNotInstalled | FilterNewest
	if got := f.String(); got != "~installed;newest" {
		t.Errorf("String() = %q", got)
	}
	if got := Filter(0).String(); got != "none" {
		t.Errorf("empty String() = %q", got)
	}
	if !f.Has(FilterNewest) || f.Has(FilterInstalled) {
		t.Error("Has() mismatch")
	}
}

func TestParseTransactionFlags(t *testing.T) {
	f, err := ParseTransactionFlags("only-trusted;simulate")
	if err != nil {
		t.Fatalf("ParseTransactionFlags() error: %v", err)
	}
	if !f.Has(FlagOnlyTrusted) || !f.Has(FlagSimulate) || f.Has(FlagOnlyDownload) {
		t.Errorf("unexpected flags: %s", f)
	}

	if f, _ := ParseTransactionFlags("none"); f != FlagNone {
		t.Errorf("none should parse to FlagNone, got %s", f)
	}
	if _, err := ParseTransactionFlags("only-trusted;bogus"); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestExitCancelled(t *testing.T) {
	if !ExitCancelled.Cancelled() || !ExitCancelledPriority.Cancelled() {
		t.Error("cancellation exits should report Cancelled()")
	}
	if ExitFailed.Cancelled() {
		t.Error("failed is not a cancellation")
	}
	if ExitKeyRequired.String() != "key-required" {
		t.Errorf("unexpected text %q", ExitKeyRequired.String())
	}
}
