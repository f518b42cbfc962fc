//go:build unix

package bridge

import (
	"context"
	"testing"
)

func TestExecRunner_CapturesStreamsSeparately(t *testing.T) {
	out, err := (&ExecRunner{}).Run(context.Background(), Invocation{
		Program: "sh",
		Args:    []string{"-c", "echo out; echo err 1>&2; exit 3"},
		Dir:     t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if string(out.Stdout) != "out\n" {
		t.Errorf("Expected stdout %q, got %q", "out\n", out.Stdout)
	}
	if string(out.Stderr) != "err\n" {
		t.Errorf("Expected stderr %q, got %q", "err\n", out.Stderr)
	}
	if out.ExitCode != 3 {
		t.Errorf("Expected exit code 3, got %d", out.ExitCode)
	}
}

func TestExecRunner_MissingProgram(t *testing.T) {
	_, err := (&ExecRunner{}).Run(context.Background(), Invocation{Program: "sentryctl-no-such-binary"})
	if err == nil {
		t.Fatal("Expected start failure for missing program")
	}
}

func TestCappedBuffer(t *testing.T) {
	c := &cappedBuffer{limit: 4}
	n, err := c.Write([]byte("abcdef"))
	if err != nil || n != 6 {
		t.Fatalf("Expected full write report, got %d %v", n, err)
	}
	_, _ = c.Write([]byte("gh"))
	if string(c.Bytes()) != "abcd" {
		t.Errorf("Expected %q, got %q", "abcd", c.Bytes())
	}
	if !c.truncated {
		t.Error("Expected truncation to be recorded")
	}

	exact := &cappedBuffer{limit: 4}
	_, _ = exact.Write([]byte("ab"))
	_, _ = exact.Write([]byte("cd"))
	if exact.truncated {
		t.Error("Expected no truncation at exactly the limit")
	}
}
