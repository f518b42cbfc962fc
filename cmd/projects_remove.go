//go:build unix

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var rmJSON bool
var rmYes bool

var projectsRemoveCmd = &cobra.Command{
	Use:   "remove <project>...",
	Short: "Delete projects by uuid or name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := make([]string, 0, len(args))
		for _, a := range args {
			if k := strings.TrimSpace(a); k != "" {
				keys = append(keys, k)
			}
		}

		// refuse to prompt on non-tty unless -y
		if !rmYes && !rmJSON {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return errors.New("refusing to prompt on non-interactive stdin; use -y to confirm")
			}
			fmt.Printf("Remove %d project(s) %s? [y/N]: ", len(keys), strings.Join(keys, ", "))
			reader := bufio.NewReader(os.Stdin)
			ans, _ := reader.ReadString('\n')
			ans = strings.ToLower(strings.TrimSpace(ans))
			if ans != "y" && ans != "yes" {
				fmt.Println("aborted")
				return nil
			}
		}

		return withSession(cmd, func(s session) error {
			var removed []string
			var errs []error
			for _, k := range keys {
				if err := s.DeleteProject(cmd.Context(), k); err != nil {
					errs = append(errs, fmt.Errorf("delete %s: %w", k, err))
					continue
				}
				removed = append(removed, k)
			}
			if rmJSON {
				if err := printJSON(map[string]any{"removed": removed}); err != nil {
					return err
				}
				return errors.Join(errs...)
			}
			for _, k := range removed {
				fmt.Println("Removed", k)
			}
			return errors.Join(errs...)
		})
	},
}

func init() {
	projectsCmd.AddCommand(projectsRemoveCmd)
	projectsRemoveCmd.Flags().BoolVarP(&rmYes, "yes", "y", false, "assume yes")
	projectsRemoveCmd.Flags().BoolVar(&rmJSON, "json", false, "print JSON")
}
