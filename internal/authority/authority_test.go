package authority

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgd/internal/config"
	"pkgd/pkg/enum"
)

func TestActions(t *testing.T) {
	tests := []struct {
		name  string
		role  enum.Role
		flags enum.TransactionFlag
		want  []string
	}{
		{"search needs nothing", enum.RoleSearchName, enum.FlagNone, nil},
		{"trusted install", enum.RoleInstallPackages, enum.FlagOnlyTrusted, []string{ActionPackageInstall}},
		{"untrusted install", enum.RoleInstallPackages, enum.FlagNone, []string{ActionPackageInstallUntrusted}},
		{"reinstall and downgrade", enum.RoleInstallFiles, enum.FlagOnlyTrusted | enum.FlagAllowReinstall | enum.FlagAllowDowngrade,
			[]string{ActionPackageInstall, ActionPackageReinstall, ActionPackageDowngrade}},
		{"simulate", enum.RoleInstallPackages, enum.FlagOnlyTrusted | enum.FlagSimulate, nil},
		{"only download", enum.RoleUpdatePackages, enum.FlagOnlyTrusted | enum.FlagOnlyDownload, nil},
		{"update", enum.RoleUpdatePackages, enum.FlagOnlyTrusted, []string{ActionSystemUpdate}},
		{"remove", enum.RoleRemovePackages, enum.FlagNone, []string{ActionPackageRemove}},
		{"refresh", enum.RoleRefreshCache, enum.FlagNone, []string{ActionSystemSourcesRefresh}},
		{"repo", enum.RoleRepoEnable, enum.FlagNone, []string{ActionSystemSourcesConfigure}},
		{"repair", enum.RoleRepairSystem, enum.FlagOnlyTrusted, []string{ActionRepairSystem}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Actions(tt.role, tt.flags)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Actions(%s, %s) = %v, want %v", tt.role, tt.flags, got, tt.want)
			}
		})
	}
}

func TestPolicyGate(t *testing.T) {
	cfg := config.AuthorizationConfig{
		Default: "challenge",
		Actions: map[string]string{
			ActionSystemSourcesRefresh: "allow",
			ActionPackageRemove:        "deny",
		},
	}
	gate := NewPolicyGate(cfg, nil, nil)
	user := Subject{UID: 1000}
	ctx := context.Background()

	tests := []struct {
		action  string
		subject Subject
		want    Result
	}{
		{ActionSystemSourcesRefresh, user, Allowed},
		{ActionPackageRemove, user, Denied},
		{ActionPackageInstall, user, Challenge},
		{ActionPackageRemove, Subject{UID: 0}, Allowed},
	}

	for _, tt := range tests {
		got, err := gate.CheckAuthorization(ctx, tt.action, tt.subject, nil)
		if err != nil {
			t.Fatalf("CheckAuthorization(%s) error: %v", tt.action, err)
		}
		if got != tt.want {
			t.Errorf("CheckAuthorization(%s, uid %d) = %s, want %s", tt.action, tt.subject.UID, got, tt.want)
		}
	}
}

func TestPolicyGateAgent(t *testing.T) {
	gate := NewPolicyGate(config.AuthorizationConfig{Default: "challenge"}, nil, nil)

	gate.SetAgent(AutoAgent(true))
	got, err := gate.CheckAuthorization(context.Background(), ActionPackageInstall, Subject{UID: 1000}, nil)
	require.NoError(t, err)
	assert.Equal(t, Allowed, got)

	gate.SetAgent(AutoAgent(false))
	got, err = gate.CheckAuthorization(context.Background(), ActionPackageInstall, Subject{UID: 1000}, nil)
	require.NoError(t, err)
	assert.Equal(t, Denied, got)
}

func TestTTYAgent(t *testing.T) {
	var asked string
	agent := &TTYAgent{Confirm: func(prompt string, defaultYes bool) (bool, error) {
		asked = prompt
		return true, nil
	}}

	ok, err := agent.Authenticate(context.Background(), ActionPackageRemove, Subject{UID: 1000},
		map[string]string{"packages": "vim"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Remove package [packages: vim]", asked)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = agent.Authenticate(ctx, ActionPackageRemove, Subject{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueueAgent(t *testing.T) {
	agent := NewQueueAgent(1)

	go func() {
		req := <-agent.Requests()
		req.Answer(req.Action == ActionPackageInstall)
	}()

	ok, err := agent.Authenticate(context.Background(), ActionPackageInstall, Subject{UID: 1000}, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQueueAgentCancelled(t *testing.T) {
	agent := NewQueueAgent(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := agent.Authenticate(ctx, ActionPackageInstall, Subject{UID: 1000}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Authenticate() error = %v, want deadline exceeded", err)
	}
}
