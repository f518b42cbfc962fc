package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gurisko/sentryctl/internal/journal"
)

var (
	historyLimit   int
	historyCommand string
	historyJSON    bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent backend invocations",
	Long: `History lists the backend commands sentryctl ran, newest first, from the
invocation journal in the state directory.`,
	Example: `  sentryctl history
  sentryctl history --command add_project --limit 5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Journal.Enabled {
			return errors.New("the journal is disabled (journal.enabled: false)")
		}
		j, err := journal.Open(cfg.JournalPath(), logger)
		if err != nil {
			return err
		}
		defer j.Close()

		entries, err := j.Recent(cmd.Context(), historyLimit, historyCommand)
		if err != nil {
			return err
		}
		if historyJSON {
			if entries == nil {
				entries = []journal.Entry{}
			}
			return printJSON(entries)
		}
		if len(entries) == 0 {
			fmt.Println("No invocations recorded")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tCOMMAND\tEXIT\tDURATION\tOUTCOME")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				e.StartedAt.Local().Format(time.DateTime), e.Command, e.ExitCode, e.Duration.Round(time.Millisecond), outcomeLabel(e))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of entries")
	historyCmd.Flags().StringVar(&historyCommand, "command", "", "only this backend command")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print JSON")
}

func outcomeLabel(e journal.Entry) string {
	if e.Outcome == "ok" {
		return styleSuccess.Render(e.Outcome)
	}
	if e.Message != "" {
		return styleError.Render(e.Outcome) + " " + e.Message
	}
	return styleError.Render(e.Outcome)
}
