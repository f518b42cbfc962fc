//go:build unix

package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gurisko/sentryctl/internal/registry"
)

var listJSON bool

var projectsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s session) error {
			projects, err := s.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			if listJSON {
				if projects == nil {
					projects = []registry.Project{}
				}
				return printJSON(map[string]any{"projects": projects})
			}
			if len(projects) == 0 {
				fmt.Println("No projects registered")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "UUID\tNAME\tPATH\tOUTPUT\tSTATUS")
			for _, p := range projects {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.UUID, p.Name, p.Path, strings.Join(p.OutputTargets, ", "), statusBadge(p))
			}
			return w.Flush()
		})
	},
}

func init() {
	projectsCmd.AddCommand(projectsListCmd)
	projectsListCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON")
}

// statusBadge renders status and mode as one cell. It goes in the last column
// since tabwriter counts escape sequences as width.
func statusBadge(p registry.Project) string {
	label := string(p.Status)
	style := badgeStopped
	if p.Status == registry.StatusMonitoring {
		style = badgeMonitoring
	}
	if p.Mode == registry.ModeSilent {
		label += " (silent)"
		style = badgeSilent
	}
	return style.Render(label)
}
