//go:build unix
// +build unix

// Package daemon hosts a long-lived sentryctl session behind an HTTP API on a
// unix socket. The session keeps one project cache and one drop state machine
// for every client, and serializes all calls into them.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gurisko/sentryctl/internal/app"
	"github.com/gurisko/sentryctl/internal/drop"
	"github.com/gurisko/sentryctl/internal/inbox"
	"github.com/gurisko/sentryctl/internal/limits"
	"github.com/gurisko/sentryctl/internal/logging"
	"github.com/gurisko/sentryctl/internal/paths"
)

// ensureParentDir ensures the parent directory of the given path exists with secure permissions
func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	// Create directory with 0700 permissions (owner only)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	// Ensure directory has correct permissions (best effort)
	_ = os.Chmod(dir, 0o700)
	return nil
}

// removeSocketIfExists removes the socket file if it exists and is actually a socket
func removeSocketIfExists(path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if fi.Mode()&os.ModeSocket != 0 {
		return os.Remove(path)
	}
	return fmt.Errorf("refusing to remove non-socket path: %s", path)
}

type Config struct {
	SocketPath  string
	PIDFile     string
	InboxDir    string        // empty disables the inbox
	Debounce    time.Duration // inbox settle time per entry
	JournalKeep int           // journal rows kept at startup, 0 keeps all
}

func DefaultConfig() *Config {
	return &Config{
		SocketPath: paths.DefaultSocketPath(),
		PIDFile:    paths.DefaultPIDPath(),
		InboxDir:   paths.DefaultInboxDir(),
		Debounce:   300 * time.Millisecond,
	}
}

type Daemon struct {
	cfg        Config
	listener   net.Listener
	server     *http.Server
	httpClient *http.Client
	log        *logging.Logger

	// mu serializes every call into app; the core is single-threaded.
	mu  sync.Mutex
	app *app.App

	inbox     *inbox.Watcher
	inboxDone chan struct{} // closed when the inbox consumer has returned
	startTime time.Time
}

// New prepares a daemon. a may be nil for Stop and GetStatus, which only talk
// to an already running daemon.
func New(cfg *Config, a *app.App, log *logging.Logger) *Daemon {
	// Apply defaults for any empty fields
	defaults := DefaultConfig()
	c := *cfg
	if c.SocketPath == "" {
		c.SocketPath = defaults.SocketPath
	}
	if c.PIDFile == "" {
		c.PIDFile = defaults.PIDFile
	}
	if c.Debounce <= 0 {
		c.Debounce = defaults.Debounce
	}

	// Create HTTP client for Unix socket communication
	tr := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var nd net.Dialer
			return nd.DialContext(ctx, "unix", c.SocketPath)
		},
	}

	return &Daemon{
		cfg:        c,
		app:        a,
		log:        log,
		httpClient: &http.Client{Transport: tr, Timeout: 2 * time.Second},
		startTime:  time.Now().UTC(),
	}
}

// Start runs the daemon in the foreground until SIGINT or SIGTERM.
func (d *Daemon) Start() error {
	if d.app == nil {
		return errors.New("daemon started without a session")
	}
	// Check if already running
	if d.IsRunning() {
		pid, _ := d.readPIDFile()
		return fmt.Errorf("daemon already running (PID: %d)", pid)
	}
	return d.startForeground()
}

func (d *Daemon) startForeground() error {
	// Ensure parent directory exists with secure permissions
	if err := ensureParentDir(d.cfg.SocketPath); err != nil {
		return fmt.Errorf("failed to prepare socket directory: %w", err)
	}

	// Remove any existing socket (but only if it's actually a socket)
	if err := removeSocketIfExists(d.cfg.SocketPath); err != nil {
		return err
	}

	// Create Unix socket listener
	listener, err := net.Listen("unix", d.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket: %w", err)
	}
	d.listener = listener

	// Set socket permissions (owner only)
	if err := os.Chmod(d.cfg.SocketPath, 0o600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	// Write PID file
	if err := d.writePIDFile(); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	d.warmUp()

	if d.cfg.InboxDir != "" {
		if err := d.startInbox(); err != nil {
			d.log.Warnf("inbox disabled: %v", err)
		}
	}

	// Setup HTTP server
	d.server = &http.Server{
		Handler:      d.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute, // toggles wait for the backend to settle
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return context.Background() },
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		fmt.Printf("sentryctl session started (PID: %d)\n", os.Getpid())
		fmt.Printf("Socket: %s\n", d.cfg.SocketPath)
		if d.inbox != nil {
			fmt.Printf("Inbox: %s\n", d.cfg.InboxDir)
		}
		serverErr <- d.server.Serve(listener)
	}()

	// Wait for signal or error
	select {
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %v, shutting down...\n", sig)
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("Server error: %v\n", err)
		}
	}

	// Graceful shutdown
	d.shutdown()
	return nil
}

// warmUp loads the project cache and trims the journal. Failures are logged;
// the backend may come up later.
func (d *Daemon) warmUp() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx := context.Background()
	if projects, err := d.app.RefreshProjects(ctx); err != nil {
		d.log.Warnf("initial project refresh failed: %v", err)
	} else {
		d.log.Infof("loaded %d project(s)", len(projects))
	}
	if d.app.Journal != nil && d.cfg.JournalKeep > 0 {
		if n, err := d.app.Journal.Prune(ctx, d.cfg.JournalKeep); err != nil {
			d.log.Warnf("journal prune failed: %v", err)
		} else if n > 0 {
			d.log.Debugf("pruned %d journal entries", n)
		}
	}
}

func (d *Daemon) startInbox() error {
	w, err := inbox.New(d.cfg.InboxDir, d.cfg.Debounce, d.log)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		w.Stop()
		return err
	}
	d.inbox = w
	d.inboxDone = make(chan struct{})
	go d.consumeInbox(w, d.inboxDone)
	return nil
}

// consumeInbox resolves batches until the watcher closes its channel. Batches
// queued before Stop are still resolved.
func (d *Daemon) consumeInbox(w *inbox.Watcher, done chan<- struct{}) {
	defer close(done)
	for b := range w.Batches() {
		out, err := d.resolveInboxBatch(b)
		if err != nil {
			d.log.Errorf("inbox %s: %v", b.Source, err)
			continue
		}
		d.log.Infof("inbox %s: %s", b.Source, out.Description)
		if out.Kind == drop.RegistrationPrompted {
			d.log.Infof("registration %s waiting; run `sentryctl drop confirm --name <name>`", out.Registration.ID)
		}
	}
}

func (d *Daemon) resolveInboxBatch(b inbox.Batch) (drop.Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.app.ResolveDrop(context.Background(), b.Paths)
}

func (d *Daemon) Stop() error {
	pid, err := d.readPIDFile()
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("daemon not running")
		}
		return fmt.Errorf("failed reading pidfile: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("process not found: %w", err)
	}
	// Send SIGTERM
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	// Wait for shutdown (max 5 seconds)
	for i := 0; i < 50; i++ {
		if !d.IsRunning() {
			fmt.Println("sentryctl session stopped")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not stop gracefully")
}

type StatusInfo struct {
	Running      bool
	PID          int
	SocketPath   string
	Uptime       time.Duration
	Projects     int
	Pending      string
	ErrorMessage string // For when process exists but not responding
}

func (d *Daemon) GetStatus() (*StatusInfo, error) {
	info := &StatusInfo{SocketPath: d.cfg.SocketPath}

	pid, err := d.readPIDFile()
	if err != nil {
		// No PID file
		return info, nil
	}
	info.PID = pid

	// Check if process is alive
	if !isProcessAlive(pid) {
		// Stale PID file
		return info, nil
	}

	// Try to get health from daemon to verify identity
	health, err := d.getHealth()
	if err != nil {
		// Process alive but not responding on socket
		info.ErrorMessage = err.Error()
		return info, nil
	}

	// Daemon is healthy and responding

	info.Running = true
	info.Uptime = time.Duration(health.Uptime * float64(time.Second))
	info.Projects = health.Projects
	info.Pending = health.DropState
	return info, nil
}

// IsRunning checks the pidfile and confirms the daemon answers on its socket,
// which guards against PID reuse.
func (d *Daemon) IsRunning() bool {
	pid, err := d.readPIDFile()
	if err != nil {
		return false
	}
	// Check if process is alive
	if !isProcessAlive(pid) {
		return false
	}

	// Verify daemon identity by checking if it responds on socket
	if _, err := d.getHealth(); err != nil {
		return false
	}
	return true
}

func (d *Daemon) shutdown() {
	// Stop the inbox and wait for queued batches
	if d.inbox != nil {
		d.inbox.Stop()
		<-d.inboxDone
	}

	// Shutdown server
	if d.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.server.Shutdown(ctx); err != nil {
			fmt.Printf("Warning: server shutdown error: %v\n", err)
		}
	}

	// Close HTTP client connections
	if d.httpClient != nil {
		d.httpClient.CloseIdleConnections()
	}

	// Close listener
	if d.listener != nil {
		_ = d.listener.Close()
	}

	// Nothing calls into the session any more
	d.mu.Lock()
	if err := d.app.Close(); err != nil {
		d.log.Warnf("closing session: %v", err)
	}
	d.mu.Unlock()

	// Clean up
	_ = removeSocketIfExists(d.cfg.SocketPath)
	_ = os.Remove(d.cfg.PIDFile)
}

func (d *Daemon) writePIDFile() error {
	pid := os.Getpid()

	// Ensure parent directory exists
	if err := ensureParentDir(d.cfg.PIDFile); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}

	// Try to create PID file atomically with O_EXCL
	for {
		f, err := os.OpenFile(d.cfg.PIDFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			defer f.Close()
			_, err = f.WriteString(strconv.Itoa(pid))
			return err
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create PID file: %w", err)
		}
		// File exists, check if process is still alive
		if oldPID, err2 := d.readPIDFile(); err2 == nil && isProcessAlive(oldPID) {
			return fmt.Errorf("daemon already running (PID: %d)", oldPID)
		}
		// Stale PID file; remove and retry
		if err := os.Remove(d.cfg.PIDFile); err != nil {
			return fmt.Errorf("stale pidfile exists and cannot remove: %w", err)
		}
	}
}

// isProcessAlive checks if a process with the given PID is alive
func isProcessAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Send signal 0 to check if process is alive
	return process.Signal(syscall.Signal(0)) == nil
}

func (d *Daemon) readPIDFile() (int, error) {
	data, err := os.ReadFile(d.cfg.PIDFile)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

type HealthResponse struct {
	Status    string  `json:"status"`
	Uptime    float64 `json:"uptime"`
	Projects  int     `json:"projects"`
	DropState string  `json:"drop_state"`
}

func (d *Daemon) getHealth() (*HealthResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health returned HTTP %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, limits.JSON)).Decode(&health); err != nil {
		return nil, err
	}
	return &health, nil
}
