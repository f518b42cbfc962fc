//go:build unix

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gurisko/sentryctl/internal/registry"
)

var projectsToggleCmd = &cobra.Command{
	Use:   "toggle <project>",
	Short: "Start a stopped project or stop a monitoring one",
	Long: `Toggle sends start_sentry or stop_sentry, then re-reads the project list
until the backend reports the new status or the settle attempts run out.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s session) error {
			p, err := s.ToggleProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s is now %s\n", styleName.Render(p.Name), statusBadge(p))
			if p.Mode == registry.ModeSilent {
				fmt.Println(styleHint.Render("notifications are muted for this project"))
			}
			return nil
		})
	},
}

var projectsUpdateCmd = &cobra.Command{
	Use:   "update <project>",
	Short: "Trigger a manual update of a project's output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s session) error {
			if err := s.UpdateProject(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println(styleSuccess.Render("Update triggered for " + args[0]))
			return nil
		})
	},
}

func init() {
	projectsCmd.AddCommand(projectsToggleCmd)
	projectsCmd.AddCommand(projectsUpdateCmd)
}
