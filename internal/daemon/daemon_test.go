//go:build unix

package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gurisko/sentryctl/internal/bridge/bridgetest"
	"github.com/gurisko/sentryctl/internal/inbox"
	"github.com/gurisko/sentryctl/internal/registry"
)

func TestShutdownStopsInboxConsumer(t *testing.T) {
	y := filepath.Join(t.TempDir(), "y")
	if err := os.Mkdir(y, 0o755); err != nil {
		t.Fatal(err)
	}
	d := newTestDaemon(t, bridgetest.New().On(registry.CmdListProjects, bridgetest.JSON(`[]`)))
	d.cfg.InboxDir = t.TempDir()
	d.cfg.Debounce = 10 * time.Millisecond
	if err := d.startInbox(); err != nil {
		t.Fatalf("startInbox: %v", err)
	}

	if _, err := inbox.Submit(d.cfg.InboxDir, []string{y}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	staged := func() string {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.pending().Staged
	}
	deadline := time.Now().Add(5 * time.Second)
	for staged() != y {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for the inbox drop to stage %s", y)
		}
		time.Sleep(10 * time.Millisecond)
	}

	d.shutdown()
	select {
	case <-d.inboxDone:
	default:
		t.Error("Expected the inbox consumer to have returned after shutdown")
	}
}
