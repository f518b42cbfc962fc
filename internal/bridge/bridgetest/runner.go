// Package bridgetest provides a scripted bridge.Runner for tests.
package bridgetest

import (
	"context"
	"sync"

	"github.com/gurisko/sentryctl/internal/bridge"
)

// Response is one scripted process result.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error // returned as a start failure
	// Truncated marks stdout as cut at the capture limit.
	Truncated bool
}

// Call records one invocation seen by the Runner.
type Call struct {
	Command string
	Args    []string
}

// Runner answers invocations from per-command scripts. Responses for a command
// are consumed in order and the last one repeats. Unknown commands succeed
// with empty output.
type Runner struct {
	// Skip is the number of fixed leading arguments before the command token.
	Skip int

	mu      sync.Mutex
	scripts map[string][]Response
	calls   []Call
}

func New() *Runner {
	return &Runner{scripts: make(map[string][]Response)}
}

// On appends responses for command.
func (r *Runner) On(command string, responses ...Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts[command] = append(r.scripts[command], responses...)
	return r
}

// JSON is shorthand for a successful response printing body.
func JSON(body string) Response {
	return Response{Stdout: body}
}

// Fail is shorthand for a failing response with stderr text.
func Fail(stderr string) Response {
	return Response{Stderr: stderr, ExitCode: 1}
}

func (r *Runner) Run(ctx context.Context, inv bridge.Invocation) (bridge.Output, error) {
	if err := ctx.Err(); err != nil {
		return bridge.Output{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var call Call
	if len(inv.Args) > r.Skip {
		call.Command = inv.Args[r.Skip]
		call.Args = append([]string(nil), inv.Args[r.Skip+1:]...)
	}
	r.calls = append(r.calls, call)

	script := r.scripts[call.Command]
	if len(script) == 0 {
		return bridge.Output{}, nil
	}
	resp := script[0]
	if len(script) > 1 {
		r.scripts[call.Command] = script[1:]
	}
	if resp.Err != nil {
		return bridge.Output{}, resp.Err
	}
	return bridge.Output{
		Stdout:    []byte(resp.Stdout),
		Stderr:    []byte(resp.Stderr),
		ExitCode:  resp.ExitCode,
		Truncated: resp.Truncated,
	}, nil
}

// Calls returns every recorded invocation in order.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsTo returns the invocations of one command.
func (r *Runner) CallsTo(command string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if c.Command == command {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many times command was invoked.
func (r *Runner) Count(command string) int {
	return len(r.CallsTo(command))
}

// Reset forgets recorded calls but keeps scripts.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
