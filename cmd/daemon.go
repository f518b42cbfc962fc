//go:build unix

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gurisko/sentryctl/internal/app"
	"github.com/gurisko/sentryctl/internal/daemon"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the sentryctl session daemon",
	Long: `Control the session daemon that keeps one project cache and one drop state
for every client.

The daemon provides:
- HTTP API over a Unix socket, used by the other commands when it is running
- an inbox directory; symlinks and .drop files placed there are resolved as drops
- serialized access to the backend`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the session daemon",
	Long: `Start the session daemon in foreground mode.

For background operation, use:
  nohup sentryctl daemon start > /tmp/sentryctl-session.log 2>&1 &`,
	RunE: startDaemon,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the session daemon",
	Long:  "Stop the running session daemon gracefully.",
	RunE:  stopDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check daemon status",
	Long:  "Check if the session daemon is running and display its status.",
	RunE:  statusDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
}

func daemonConfig() *daemon.Config {
	return &daemon.Config{
		SocketPath:  cfg.Session.Socket,
		PIDFile:     cfg.Session.PIDFile,
		InboxDir:    cfg.Session.Inbox,
		Debounce:    cfg.Session.Debounce,
		JournalKeep: cfg.Journal.Keep,
	}
}

func startDaemon(cmd *cobra.Command, args []string) error {
	a, err := app.New(cfg, logger, app.WithPendingStore())
	if err != nil {
		return fmt.Errorf("failed to initialize session: %w", err)
	}
	return daemon.New(daemonConfig(), a, logger).Start()
}

func stopDaemon(cmd *cobra.Command, args []string) error {
	return daemon.New(daemonConfig(), nil, logger).Stop()
}

func statusDaemon(cmd *cobra.Command, args []string) error {
	status, err := daemon.New(daemonConfig(), nil, logger).GetStatus()
	if err != nil {
		return err
	}

	// Format for display
	if !status.Running {
		if status.PID > 0 {
			if status.ErrorMessage != "" {
				fmt.Printf("sentryctl session process exists (PID: %d) but not responding\n", status.PID)
				fmt.Printf("  Socket: %s\n", status.SocketPath)
				fmt.Printf("  Error: %v\n", status.ErrorMessage)
			} else {
				fmt.Printf("sentryctl session is not running (stale pidfile)\n")
				fmt.Printf("  Socket: %s\n", status.SocketPath)
			}
		} else {
			fmt.Printf("sentryctl session is not running\n")
			fmt.Printf("  Socket: %s\n", status.SocketPath)
		}
	} else {
		fmt.Printf("sentryctl session running (PID: %d)\n", status.PID)
		fmt.Printf("  Socket: %s\n", status.SocketPath)
		fmt.Printf("  Uptime: %s\n", status.Uptime.Round(time.Second))
		if status.Pending != "" {
			fmt.Printf("  Projects: %d\n", status.Projects)
			fmt.Printf("  Drop state: %s\n", status.Pending)
		} else {
			fmt.Printf("  Busy with a backend call\n")
		}
	}

	return nil
}
