//go:build unix

package cmd

import "github.com/spf13/cobra"

var projectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"p"},
	Short:   "Manage sentry projects",
	Long: `Manage the projects known to the monitoring backend.

A project is addressed by its uuid or by its name.`,
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}

// withSession opens a session for one command and closes it afterwards.
func withSession(cmd *cobra.Command, fn func(s session) error) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			logger.Warnf("closing session: %v", cerr)
		}
	}()
	return fn(s)
}
