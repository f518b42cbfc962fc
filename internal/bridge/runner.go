package bridge

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"github.com/gurisko/sentryctl/internal/limits"
)

// Invocation is one fully assembled backend process call.
type Invocation struct {
	Program string
	Args    []string
	Dir     string
}

// Output is what a finished process left behind.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	// Truncated is set when stdout went past limits.Stdout and was cut.
	Truncated bool
}

// Runner abstracts process execution for testability.
// Run returns an error only when the process could not be run at all;
// a non-zero exit is reported through Output.ExitCode.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Output, error)
}

// ExecRunner implements Runner using os/exec.
type ExecRunner struct{}

// Run executes the invocation and captures stdout and stderr separately.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (Output, error) {
	cmd := exec.CommandContext(ctx, inv.Program, inv.Args...) //nolint:gosec // G204: program identity comes from config, not user input
	cmd.Dir = inv.Dir

	stdout := &cappedBuffer{limit: limits.Stdout}
	stderr := &cappedBuffer{limit: limits.Stderr}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Truncated: stdout.truncated}
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}
	return out, err
}

// cappedBuffer keeps the first limit bytes and swallows the rest, noting
// that it did so.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	room := c.limit - c.buf.Len()
	if len(p) > room {
		c.truncated = true
		if room > 0 {
			c.buf.Write(p[:room])
		}
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}

func (c *cappedBuffer) Bytes() []byte { return c.buf.Bytes() }
