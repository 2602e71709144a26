package authority

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"pkgd/internal/config"
	"pkgd/internal/metrics"
)

// PolicyGate answers checks from the [authorization] configuration. Root is
// always allowed. A "challenge" policy is resolved through the agent when one
// is set.
type PolicyGate struct {
	cfg     config.AuthorizationConfig
	agent   Agent
	log     *logrus.Entry
	metrics *metrics.Collector
	mu      sync.RWMutex
}

// NewPolicyGate creates a gate for the given policy.
func NewPolicyGate(cfg config.AuthorizationConfig, log *logrus.Entry, m *metrics.Collector) *PolicyGate {
	if log == nil {
		log = logrus.WithField("component", "authority")
	}
	return &PolicyGate{cfg: cfg, log: log, metrics: m}
}

// SetAgent installs the agent that answers challenges. Nil removes it.
func (g *PolicyGate) SetAgent(agent Agent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.agent = agent
}

func (g *PolicyGate) policy(action string) string {
	if r, ok := g.cfg.Actions[action]; ok {
		return r
	}
	if g.cfg.Default == "" {
		return "challenge"
	}
	return g.cfg.Default
}

// CheckAuthorization implements Gate.
func (g *PolicyGate) CheckAuthorization(ctx context.Context, action string, subject Subject, details map[string]string) (Result, error) {
	result, err := g.check(ctx, action, subject, details)
	if err == nil {
		g.metrics.RecordAuthorization(action, result.String())
	}
	g.log.WithFields(logrus.Fields{
		"action": action,
		"uid":    subject.UID,
		"result": result,
	}).Debug("authorization checked")
	return result, err
}

func (g *PolicyGate) check(ctx context.Context, action string, subject Subject, details map[string]string) (Result, error) {
	if subject.UID == 0 {
		return Allowed, nil
	}

	switch p := g.policy(action); p {
	case "allow":
		return Allowed, nil
	case "deny":
		return Denied, nil
	case "challenge":
	default:
		return Denied, fmt.Errorf("unknown policy %q for %s", p, action)
	}

	g.mu.RLock()
	agent := g.agent
	g.mu.RUnlock()
	if agent == nil {
		return Challenge, nil
	}

	ok, err := agent.Authenticate(ctx, action, subject, details)
	if err != nil {
		return Denied, fmt.Errorf("failed to authenticate %s: %w", action, err)
	}
	if ok {
		return Allowed, nil
	}
	return Denied, nil
}
