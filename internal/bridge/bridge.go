// Package bridge turns backend process invocations into decoded results.
//
// Every call spawns one process: the configured interpreter, its fixed
// leading arguments, the command token and the sanitized arguments. Output is
// decoded by the configured protocol and failures are classified into a single
// *BackendError type.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gurisko/sentryctl/internal/limits"
	"github.com/gurisko/sentryctl/internal/logging"
)

// Config describes how to reach the backend.
type Config struct {
	Interpreter string
	Args        []string // fixed leading arguments, e.g. the backend module
	WorkDir     string
	Protocol    Protocol
	Timeout     time.Duration // zero means no timeout
}

// Record describes one finished invocation.
type Record struct {
	ID        string
	Command   string
	Args      []string
	ExitCode  int
	Duration  time.Duration
	Outcome   string // "ok" or the failure kind
	Message   string
	StartedAt time.Time
}

// Observer is told about every invocation, successful or not.
type Observer interface {
	Observe(Record)
}

// Bridge executes backend commands.
type Bridge struct {
	cfg      Config
	runner   Runner
	decoder  Decoder
	observer Observer
	log      *logging.Logger
	now      func() time.Time
}

type Option func(*Bridge)

func WithObserver(o Observer) Option {
	return func(b *Bridge) { b.observer = o }
}

func WithLogger(l *logging.Logger) Option {
	return func(b *Bridge) { b.log = l }
}

// New creates a Bridge. A nil runner selects ExecRunner.
func New(cfg Config, runner Runner, opts ...Option) *Bridge {
	if runner == nil {
		runner = &ExecRunner{}
	}
	b := &Bridge{
		cfg:     cfg,
		runner:  runner,
		decoder: NewDecoder(cfg.Protocol),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SanitizeArg rewrites backslashes to forward slashes.
func SanitizeArg(arg string) string {
	return strings.ReplaceAll(arg, `\`, "/")
}

// Execute runs one backend command and decodes its output. It never retries.
func (b *Bridge) Execute(ctx context.Context, command string, args ...string) (Result, error) {
	sanitized := make([]string, len(args))
	for i, a := range args {
		sanitized[i] = SanitizeArg(a)
	}

	argv := make([]string, 0, len(b.cfg.Args)+1+len(sanitized))
	argv = append(argv, b.cfg.Args...)
	argv = append(argv, command)
	argv = append(argv, sanitized...)

	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	id := uuid.NewString()
	started := b.now()
	b.log.Debugf("bridge %s: %s %s", id[:8], command, strings.Join(sanitized, " "))

	out, runErr := b.runner.Run(ctx, Invocation{
		Program: b.cfg.Interpreter,
		Args:    argv,
		Dir:     b.cfg.WorkDir,
	})

	var (
		res Result
		err error
	)
	if runErr != nil {
		err = &BackendError{
			Kind:    KindSystem,
			Command: command,
			Message: runErr.Error(),
			Stderr:  strings.TrimSpace(string(out.Stderr)),
			Err:     runErr,
		}
	} else if out.Truncated {
		b.log.Warnf("bridge %s: %s output exceeded %d bytes", id[:8], command, limits.Stdout)
		err = &BackendError{
			Kind:     KindDecode,
			Command:  command,
			Message:  fmt.Sprintf("backend output exceeded %d bytes", limits.Stdout),
			Stderr:   strings.TrimSpace(string(out.Stderr)),
			ExitCode: out.ExitCode,
		}
	} else {
		res, err = b.decoder.Decode(command, out)
	}

	rec := Record{
		ID:        id,
		Command:   command,
		Args:      sanitized,
		ExitCode:  out.ExitCode,
		Duration:  b.now().Sub(started),
		Outcome:   "ok",
		StartedAt: started,
	}
	if err != nil {
		rec.Outcome = "error"
		rec.Message = err.Error()
		var be *BackendError
		if errors.As(err, &be) {
			rec.Outcome = be.Kind.String()
			rec.Message = be.Message
		}
		b.log.Debugf("bridge %s: %s failed after %s: %v", id[:8], command, rec.Duration, err)
	} else {
		b.log.Debugf("bridge %s: %s ok in %s (exit %d)", id[:8], command, rec.Duration, out.ExitCode)
	}
	if b.observer != nil {
		b.observer.Observe(rec)
	}

	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// String renders the invocation prefix for diagnostics.
func (c Config) String() string {
	parts := append([]string{c.Interpreter}, c.Args...)
	return fmt.Sprintf("%s (in %s, protocol %s)", strings.Join(parts, " "), c.WorkDir, c.protocolName())
}

func (c Config) protocolName() string {
	if c.Protocol == "" {
		return string(ProtocolLegacy)
	}
	return string(c.Protocol)
}
