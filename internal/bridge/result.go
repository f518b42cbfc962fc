package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ErrBareResult is returned by Result.Decode when the backend signaled success
// without a structured payload.
var ErrBareResult = errors.New("backend returned no structured payload")

// Result is a decoded backend response: a JSON value, or a bare success.
type Result struct {
	raw  json.RawMessage
	bare bool
}

// JSONResult wraps an already-validated JSON document.
func JSONResult(raw []byte) Result {
	return Result{raw: append(json.RawMessage(nil), raw...)}
}

// EmptyList is the "no results" result produced for empty successful output.
func EmptyList() Result {
	return Result{raw: json.RawMessage("[]")}
}

// BareSuccess is the sentinel for a successful exit with unparseable output.
func BareSuccess() Result {
	return Result{bare: true}
}

func (r Result) IsBare() bool { return r.bare }

// Raw returns the JSON text of the result, nil for a bare success.
func (r Result) Raw() json.RawMessage { return r.raw }

func (r Result) IsList() bool   { return r.firstByte() == '[' }
func (r Result) IsObject() bool { return r.firstByte() == '{' }

func (r Result) firstByte() byte {
	b := bytes.TrimSpace(r.raw)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

// Decode unmarshals the payload into v.
func (r Result) Decode(v any) error {
	if r.bare || len(r.raw) == 0 {
		return ErrBareResult
	}
	return json.Unmarshal(r.raw, v)
}

// List returns the elements of a list result. Anything that is not a list
// yields an empty, non-nil slice.
func (r Result) List() []json.RawMessage {
	if !r.IsList() {
		return []json.RawMessage{}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(r.raw, &items); err != nil || items == nil {
		return []json.RawMessage{}
	}
	return items
}

// Strings returns a list result as strings. String elements are unquoted,
// other elements keep their compact JSON text and nulls are skipped.
func (r Result) Strings() []string {
	items := r.List()
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := Stringify(item); ok {
			out = append(out, s)
		}
	}
	return out
}

// Stringify renders one JSON value as text. It reports false for null or empty input.
func Stringify(raw json.RawMessage) (string, bool) {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 || string(b) == "null" {
		return "", false
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			return s, true
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, b); err != nil {
		return strings.TrimSpace(string(b)), true
	}
	return compact.String(), true
}
