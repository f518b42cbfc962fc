package bridge

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestResult_Strings(t *testing.T) {
	res := JSONResult([]byte(`["a.md", 7, null, {"k": 1}, true]`))
	got := res.Strings()
	want := []string{"a.md", "7", `{"k":1}`, "true"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d strings, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Element %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestResult_ListOfNonList(t *testing.T) {
	for _, r := range []Result{JSONResult([]byte(`{"a":1}`)), BareSuccess(), JSONResult([]byte(`"x"`))} {
		items := r.List()
		if items == nil || len(items) != 0 {
			t.Errorf("Expected empty non-nil list, got %v", items)
		}
	}
}

func TestResult_DecodeBare(t *testing.T) {
	var v map[string]any
	if err := BareSuccess().Decode(&v); !errors.Is(err, ErrBareResult) {
		t.Errorf("Expected ErrBareResult, got %v", err)
	}
	if err := JSONResult([]byte(`{"a":1}`)).Decode(&v); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if v["a"] != float64(1) {
		t.Errorf("Expected a=1, got %v", v["a"])
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{`"hello"`, "hello", true},
		{`null`, "", false},
		{``, "", false},
		{`12.5`, "12.5", true},
		{`[ 1, 2 ]`, "[1,2]", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Stringify(json.RawMessage(tt.raw))
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Stringify(%s) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	if v, err := Require("name", "  demo "); err != nil || v != "demo" {
		t.Errorf("Expected trimmed value, got %q %v", v, err)
	}
	_, err := Require("path", " \t")
	if !IsValidation(err) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if err.Error() != "path must not be empty" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}
