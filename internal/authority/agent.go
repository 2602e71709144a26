package authority

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"pkgd/internal/ui"
)

// Agent asks a user to confirm an action.
type Agent interface {
	Authenticate(ctx context.Context, action string, subject Subject, details map[string]string) (bool, error)
}

// AutoAgent answers every challenge the same way, for --yes and scripts.
type AutoAgent bool

// Authenticate implements Agent.
func (a AutoAgent) Authenticate(context.Context, string, Subject, map[string]string) (bool, error) {
	return bool(a), nil
}

// TTYAgent prompts on the controlling terminal. Prompts are serialized.
type TTYAgent struct {
	// Confirm defaults to ui.Confirm.
	Confirm func(prompt string, defaultYes bool) (bool, error)

	mu sync.Mutex
}

// Authenticate implements Agent.
func (a *TTYAgent) Authenticate(ctx context.Context, action string, subject Subject, details map[string]string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	confirm := a.Confirm
	if confirm == nil {
		confirm = ui.Confirm
	}
	return confirm(Prompt(action, details), false)
}

// Prompt renders the question shown to the user for an action.
func Prompt(action string, details map[string]string) string {
	var b strings.Builder
	b.WriteString(Description(action))

	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " [%s: %s]", k, details[k])
	}
	return b.String()
}

// Request is a pending challenge delivered by a QueueAgent.
type Request struct {
	Action  string
	Subject Subject
	Details map[string]string

	reply chan bool
}

// Answer resolves the request. Only the first answer counts.
func (r *Request) Answer(ok bool) {
	select {
	case r.reply <- ok:
	default:
	}
}

// QueueAgent hands challenges to another goroutine, such as a console UI.
type QueueAgent struct {
	requests chan *Request
}

// NewQueueAgent creates an agent with room for size pending requests.
func NewQueueAgent(size int) *QueueAgent {
	return &QueueAgent{requests: make(chan *Request, size)}
}

// Requests returns the channel of pending challenges.
func (q *QueueAgent) Requests() <-chan *Request {
	return q.requests
}

// Authenticate implements Agent. It blocks until the request is answered or
// ctx is done.
func (q *QueueAgent) Authenticate(ctx context.Context, action string, subject Subject, details map[string]string) (bool, error) {
	req := &Request{Action: action, Subject: subject, Details: details, reply: make(chan bool, 1)}

	select {
	case q.requests <- req:
	case <-ctx.Done():
		return false, ctx.Err()
	}

	select {
	case ok := <-req.reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
