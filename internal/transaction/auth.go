package transaction

import (
	"context"
	"fmt"
	"strings"

	"pkgd/internal/authority"
	"pkgd/pkg/backend"
	"pkgd/pkg/enum"
	"pkgd/pkg/packageid"
)

// authorize checks the actions role needs. Without any the transaction is
// Ready straight away; otherwise it waits while the chain runs.
func (t *Transaction) authorize(role enum.Role, flags enum.TransactionFlag) error {
	actions := authority.Actions(role, flags)
	if t.deps.SelfTest || len(actions) == 0 {
		if !t.move(StateReady) {
			return fmt.Errorf("%w: cannot become ready", ErrInvalidState)
		}
		return nil
	}

	ctx, cancel := context.WithCancel(t.ctx)
	t.mu.Lock()
	t.authCancel = cancel
	t.mu.Unlock()

	if !t.move(StateWaitingForAuth) {
		cancel()
		return fmt.Errorf("%w: cannot wait for authorization", ErrInvalidState)
	}
	go t.authorizeChain(ctx, cancel, actions)
	return nil
}

// authorizeChain asks for each action in turn. A later action is only
// requested once the previous one was granted.
func (t *Transaction) authorizeChain(ctx context.Context, cancel context.CancelFunc, actions []string) {
	defer cancel()

	for _, action := range actions {
		if err := t.authorizeOne(ctx, action, t.subject); err != nil {
			t.authFailed(err)
			return
		}
	}

	abandoned := false
	t.moveIf(StateReady, func() bool {
		t.authCancel = nil
		abandoned = t.authAbandoned || ctx.Err() != nil
		return !abandoned
	})
	if abandoned {
		t.authFailed(fmt.Errorf("%w: authorization was cancelled", ErrNotAuthorized))
	}
}

func (t *Transaction) authorizeOne(ctx context.Context, action string, subject authority.Subject) error {
	if t.deps.Gate == nil {
		return fmt.Errorf("%w: no authority for %s", ErrNotAuthorized, action)
	}
	res, err := t.deps.Gate.CheckAuthorization(ctx, action, subject, t.authDetails())
	if err != nil {
		return fmt.Errorf("%w: failed to obtain authentication for %s: %v", ErrNotAuthorized, action, err)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: authorization for %s was cancelled", ErrNotAuthorized, action)
	}
	if res != authority.Allowed {
		return fmt.Errorf("%w: %s was %s", ErrNotAuthorized, action, res)
	}
	return nil
}

// authDetails describes the request for an interactive agent.
func (t *Transaction) authDetails() map[string]string {
	t.mu.Lock()
	req := t.request
	t.mu.Unlock()

	details := map[string]string{"tid": t.tid}
	if req == nil {
		return details
	}
	details["role"] = req.Role().String()
	if targets := targetsOf(req); len(targets) > 0 {
		names := make([]string, 0, len(targets))
		for _, s := range targets {
			if id, err := packageid.Parse(s); err == nil {
				names = append(names, id.Printable())
				continue
			}
			names = append(names, s)
		}
		details["packages"] = strings.Join(names, ", ")
	}
	return details
}

// authFailed reports the failure to the caller and ends the transaction.
func (t *Transaction) authFailed(err error) {
	t.log.WithError(err).Warn("authorization failed")

	ev := backend.ErrorEvent{Code: enum.ErrorNotAuthorized, Details: err.Error()}
	t.mu.Lock()
	if t.finished || t.state.Terminal() {
		t.mu.Unlock()
		return
	}
	t.authCancel = nil
	t.finished = true
	t.exit = enum.ExitFailed
	t.results.add(ev)
	t.mu.Unlock()

	t.publish(ev)
	t.publish(FinishedEvent{Exit: enum.ExitFailed})
	t.move(StateError)
}
