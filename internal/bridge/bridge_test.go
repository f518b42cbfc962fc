package bridge_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gurisko/sentryctl/internal/bridge"
	"github.com/gurisko/sentryctl/internal/bridge/bridgetest"
)

type recordingObserver struct {
	records []bridge.Record
}

func (o *recordingObserver) Observe(r bridge.Record) { o.records = append(o.records, r) }

func newBridge(r *bridgetest.Runner, opts ...bridge.Option) *bridge.Bridge {
	return bridge.New(bridge.Config{Interpreter: "python", WorkDir: "/srv"}, r, opts...)
}

func TestSanitizeArg(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`C:\Users\me\proj`, "C:/Users/me/proj"},
		{"/already/fine", "/already/fine"},
		{`mixed\path/parts`, "mixed/path/parts"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := bridge.SanitizeArg(tt.in); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestExecute_AssemblesArgv(t *testing.T) {
	var got bridge.Invocation
	runner := runnerFunc(func(_ context.Context, inv bridge.Invocation) (bridge.Output, error) {
		got = inv
		return bridge.Output{Stdout: []byte("[]")}, nil
	})
	b := bridge.New(bridge.Config{
		Interpreter: "python",
		Args:        []string{"-m", "src.backend.adapter_cli"},
		WorkDir:     "/srv/sentry",
	}, runner)

	if _, err := b.Execute(context.Background(), "add_project", "demo", `C:\work\demo`); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if got.Program != "python" {
		t.Errorf("Expected program python, got %q", got.Program)
	}
	if got.Dir != "/srv/sentry" {
		t.Errorf("Expected workdir /srv/sentry, got %q", got.Dir)
	}
	want := []string{"-m", "src.backend.adapter_cli", "add_project", "demo", "C:/work/demo"}
	if strings.Join(got.Args, "|") != strings.Join(want, "|") {
		t.Errorf("Expected argv %v, got %v", want, got.Args)
	}
}

func TestExecute_NoArgumentContainsBackslash(t *testing.T) {
	r := bridgetest.New()
	b := newBridge(r)
	args := []string{`a\b`, `\\server\share`, `plain`, `trailing\`}
	if _, err := b.Execute(context.Background(), "update_ignore_patterns", args...); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	for _, a := range r.Calls()[0].Args {
		if strings.Contains(a, `\`) {
			t.Errorf("Expected no backslash in transmitted arg, got %q", a)
		}
	}
}

func TestExecute_DecodeOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		resp     bridgetest.Response
		wantList int // -1 means not a list
		wantBare bool
		wantKind bridge.Kind
	}{
		{
			name:     "clean array",
			resp:     bridgetest.JSON(`[{"uuid":"a1"},{"uuid":"b2"}]`),
			wantList: 2,
		},
		{
			name:     "array after log noise",
			resp:     bridgetest.JSON("INFO loading\n[{\"uuid\":\"a1\"}]\nbye"),
			wantList: 1,
		},
		{
			name:     "object after log noise",
			resp:     bridgetest.JSON("starting...\n{\"uuid\":\"a1\",\"name\":\"x\"}\n"),
			wantList: -1,
		},
		{
			name:     "empty output",
			resp:     bridgetest.JSON("   \n"),
			wantList: 0,
		},
		{
			name:     "plain text success",
			resp:     bridgetest.JSON("Project started."),
			wantList: -1,
			wantBare: true,
		},
		{
			name:     "failure with stderr",
			resp:     bridgetest.Response{Stdout: "", Stderr: "boom", ExitCode: 2},
			wantKind: bridge.KindProcess,
		},
		{
			name:     "failure with undecodable stdout",
			resp:     bridgetest.Response{Stdout: "Traceback (most recent call last)", ExitCode: 1},
			wantKind: bridge.KindDecode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bridgetest.New().On("cmd", tt.resp)
			res, err := newBridge(r).Execute(context.Background(), "cmd")

			if tt.wantKind != 0 {
				be, ok := bridge.AsBackendError(err)
				if !ok {
					t.Fatalf("Expected BackendError, got %v", err)
				}
				if be.Kind != tt.wantKind {
					t.Errorf("Expected kind %v, got %v", tt.wantKind, be.Kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected success, got %v", err)
			}
			if res.IsBare() != tt.wantBare {
				t.Errorf("Expected bare=%v, got %v", tt.wantBare, res.IsBare())
			}
			if tt.wantList >= 0 {
				if !res.IsList() {
					t.Fatalf("Expected list result, got %s", res.Raw())
				}
				if n := len(res.List()); n != tt.wantList {
					t.Errorf("Expected %d elements, got %d", tt.wantList, n)
				}
			}
		})
	}
}

func TestExecute_ProcessErrorKeepsBackendMessage(t *testing.T) {
	r := bridgetest.New().On("add_project", bridgetest.Fail("專案名稱 'X' 已被佔用\n"))
	_, err := newBridge(r).Execute(context.Background(), "add_project", "X", "/p", "/p/out.md")

	be, ok := bridge.AsBackendError(err)
	if !ok {
		t.Fatalf("Expected BackendError, got %v", err)
	}
	if be.Message != "專案名稱 'X' 已被佔用" {
		t.Errorf("Expected raw stderr message, got %q", be.Message)
	}
	if !strings.Contains(err.Error(), "已被佔用") {
		t.Errorf("Expected error text to keep backend phrase, got %q", err.Error())
	}
}

func TestExecute_ProcessErrorWithoutStderr(t *testing.T) {
	r := bridgetest.New().On("stop_sentry", bridgetest.Response{ExitCode: 1})
	_, err := newBridge(r).Execute(context.Background(), "stop_sentry", "a1")

	be, ok := bridge.AsBackendError(err)
	if !ok {
		t.Fatalf("Expected BackendError, got %v", err)
	}
	if be.Kind != bridge.KindProcess || be.Message != "unknown error" {
		t.Errorf("Expected process error with 'unknown error', got %v %q", be.Kind, be.Message)
	}
}

func TestExecute_StartFailureIsSystemError(t *testing.T) {
	startErr := errors.New(`exec: "python": executable file not found in $PATH`)
	r := bridgetest.New().On("list_projects", bridgetest.Response{Err: startErr})
	_, err := newBridge(r).Execute(context.Background(), "list_projects")

	be, ok := bridge.AsBackendError(err)
	if !ok {
		t.Fatalf("Expected BackendError, got %v", err)
	}
	if be.Kind != bridge.KindSystem {
		t.Errorf("Expected system error, got %v", be.Kind)
	}
	if !errors.Is(err, startErr) {
		t.Errorf("Expected underlying error to be wrapped")
	}
}

func TestExecute_TruncatedOutputIsDecodeError(t *testing.T) {
	r := bridgetest.New().On("list_projects", bridgetest.Response{
		Stdout:    `[{"uuid":"a1","name":"Proj","status":"runn`,
		Truncated: true,
	})
	_, err := newBridge(r).Execute(context.Background(), "list_projects")

	be, ok := bridge.AsBackendError(err)
	if !ok {
		t.Fatalf("Expected BackendError, got %v", err)
	}
	if be.Kind != bridge.KindDecode {
		t.Errorf("Expected decode error, got %v", be.Kind)
	}
	if !strings.Contains(be.Message, "exceeded") {
		t.Errorf("Expected size message, got %q", be.Message)
	}
}

func TestExecute_NoRetries(t *testing.T) {
	r := bridgetest.New().On("manual_update", bridgetest.Fail("busy"))
	_, _ = newBridge(r).Execute(context.Background(), "manual_update", "a1")
	if n := r.Count("manual_update"); n != 1 {
		t.Errorf("Expected exactly 1 invocation, got %d", n)
	}
}

func TestExecute_ReportsToObserver(t *testing.T) {
	obs := &recordingObserver{}
	r := bridgetest.New().
		On("list_projects", bridgetest.JSON("[]")).
		On("start_sentry", bridgetest.Fail("nope"))
	b := newBridge(r, bridge.WithObserver(obs))

	_, _ = b.Execute(context.Background(), "list_projects")
	_, _ = b.Execute(context.Background(), "start_sentry", `a\1`)

	if len(obs.records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(obs.records))
	}
	first, second := obs.records[0], obs.records[1]
	if first.Outcome != "ok" || first.Command != "list_projects" {
		t.Errorf("Unexpected first record: %+v", first)
	}
	if second.Outcome != "process" || second.Message != "nope" || second.ExitCode != 1 {
		t.Errorf("Unexpected second record: %+v", second)
	}
	if len(second.Args) != 1 || second.Args[0] != "a/1" {
		t.Errorf("Expected sanitized args in record, got %v", second.Args)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Errorf("Expected distinct invocation ids, got %q and %q", first.ID, second.ID)
	}
}

func TestExecute_EnvelopeProtocol(t *testing.T) {
	tests := []struct {
		name     string
		resp     bridgetest.Response
		wantErr  bool
		wantBare bool
		wantRaw  string
	}{
		{
			name:    "data payload",
			resp:    bridgetest.JSON("noise\n{\"ok\":true,\"data\":[1,2]}\n"),
			wantRaw: "[1,2]",
		},
		{
			name:     "no data",
			resp:     bridgetest.JSON(`{"ok":true}`),
			wantBare: true,
		},
		{
			name:    "explicit failure",
			resp:    bridgetest.JSON(`{"ok":false,"error":"name already taken"}`),
			wantErr: true,
		},
		{
			name:    "legacy fallback",
			resp:    bridgetest.JSON(`[{"uuid":"a1"}]`),
			wantRaw: `[{"uuid":"a1"}]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bridgetest.New().On("cmd", tt.resp)
			b := bridge.New(bridge.Config{Interpreter: "python", Protocol: bridge.ProtocolEnvelope}, r)
			res, err := b.Execute(context.Background(), "cmd")
			if tt.wantErr {
				be, ok := bridge.AsBackendError(err)
				if !ok || be.Message != "name already taken" {
					t.Fatalf("Expected process error with envelope message, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected success, got %v", err)
			}
			if res.IsBare() != tt.wantBare {
				t.Errorf("Expected bare=%v, got %v", tt.wantBare, res.IsBare())
			}
			if tt.wantRaw != "" && string(res.Raw()) != tt.wantRaw {
				t.Errorf("Expected %s, got %s", tt.wantRaw, res.Raw())
			}
		})
	}
}

func TestParseProtocol(t *testing.T) {
	if p, err := bridge.ParseProtocol(""); err != nil || p != bridge.ProtocolLegacy {
		t.Errorf("Expected legacy default, got %q %v", p, err)
	}
	if p, err := bridge.ParseProtocol("Envelope"); err != nil || p != bridge.ProtocolEnvelope {
		t.Errorf("Expected envelope, got %q %v", p, err)
	}
	if _, err := bridge.ParseProtocol("grpc"); err == nil {
		t.Error("Expected error for unknown protocol")
	}
}

type runnerFunc func(context.Context, bridge.Invocation) (bridge.Output, error)

func (f runnerFunc) Run(ctx context.Context, inv bridge.Invocation) (bridge.Output, error) {
	return f(ctx, inv)
}
