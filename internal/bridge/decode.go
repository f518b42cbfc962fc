package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Protocol selects how backend output is interpreted.
type Protocol string

const (
	// ProtocolLegacy extracts JSON from free-form stdout and falls back to the exit code.
	ProtocolLegacy Protocol = "legacy"
	// ProtocolEnvelope expects the last stdout line to be {"ok":..,"data":..,"error":..}.
	ProtocolEnvelope Protocol = "envelope"
)

func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(strings.ToLower(strings.TrimSpace(s))) {
	case "", ProtocolLegacy:
		return ProtocolLegacy, nil
	case ProtocolEnvelope:
		return ProtocolEnvelope, nil
	default:
		return "", fmt.Errorf("unknown backend protocol %q (want %q or %q)", s, ProtocolLegacy, ProtocolEnvelope)
	}
}

// Decoder turns a finished invocation into a Result or a *BackendError.
type Decoder interface {
	Decode(command string, out Output) (Result, error)
}

func NewDecoder(p Protocol) Decoder {
	if p == ProtocolEnvelope {
		return EnvelopeDecoder{}
	}
	return LegacyDecoder{}
}

// LegacyDecoder understands the existing backend, which prints JSON mixed with
// log noise and signals bare success only through its exit code.
type LegacyDecoder struct{}

func (LegacyDecoder) Decode(command string, out Output) (Result, error) {
	text := strings.TrimSpace(string(out.Stdout))
	if text != "" {
		if res, ok := extractJSON(text); ok {
			return res, nil
		}
	}

	if out.ExitCode == 0 {
		if text == "" {
			return EmptyList(), nil
		}
		return BareSuccess(), nil
	}

	stderr := strings.TrimSpace(string(out.Stderr))
	if stderr == "" && text != "" {
		return Result{}, &BackendError{
			Kind:     KindDecode,
			Command:  command,
			Message:  "cannot decode backend output: " + text,
			Stdout:   text,
			ExitCode: out.ExitCode,
		}
	}
	return Result{}, processError(command, stderr, text, out.ExitCode)
}

func processError(command, stderr, stdout string, exitCode int) *BackendError {
	msg := stderr
	if msg == "" {
		msg = "unknown error"
	}
	return &BackendError{
		Kind:     KindProcess,
		Command:  command,
		Message:  msg,
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: exitCode,
	}
}

// extractJSON tries, in order: the whole text, the outermost [...] span and
// the outermost {...} span.
func extractJSON(text string) (Result, bool) {
	if json.Valid([]byte(text)) {
		return JSONResult([]byte(text)), true
	}
	if sub, ok := span(text, '[', ']'); ok {
		return JSONResult([]byte(sub)), true
	}
	if sub, ok := span(text, '{', '}'); ok {
		return JSONResult([]byte(sub)), true
	}
	return Result{}, false
}

func span(text string, open, close byte) (string, bool) {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end <= start {
		return "", false
	}
	sub := text[start : end+1]
	if !json.Valid([]byte(sub)) {
		return "", false
	}
	return sub, true
}

// EnvelopeDecoder reads an explicit success/failure envelope from the last
// non-empty stdout line. Output without an envelope is handed to LegacyDecoder
// so an older backend keeps working.
type EnvelopeDecoder struct{}

type envelope struct {
	OK    *bool           `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func (EnvelopeDecoder) Decode(command string, out Output) (Result, error) {
	line := lastLine(string(out.Stdout))
	var env envelope
	if line == "" || json.Unmarshal([]byte(line), &env) != nil || env.OK == nil {
		return LegacyDecoder{}.Decode(command, out)
	}

	if !*env.OK {
		msg := env.Error
		if msg == "" {
			msg = strings.TrimSpace(string(out.Stderr))
		}
		return Result{}, processError(command, msg, line, out.ExitCode)
	}

	data := strings.TrimSpace(string(env.Data))
	if data == "" || data == "null" {
		return BareSuccess(), nil
	}
	return JSONResult([]byte(data)), nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
