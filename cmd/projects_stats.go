//go:build unix

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsJSON bool

var projectsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count monitoring and silent projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s session) error {
			st, err := s.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if statsJSON {
				return printJSON(st)
			}
			fmt.Printf("%s %d  %s %d\n",
				styleLabel.Render("monitoring:"), st.Monitoring,
				styleLabel.Render("silent:"), st.Silent)
			return nil
		})
	},
}

func init() {
	projectsCmd.AddCommand(projectsStatsCmd)
	projectsStatsCmd.Flags().BoolVar(&statsJSON, "json", false, "print JSON")
}
