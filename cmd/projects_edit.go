//go:build unix

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gurisko/sentryctl/internal/registry"
)

var editField, editValue string

var projectsEditCmd = &cobra.Command{
	Use:   "edit <project>",
	Short: "Change a project's name, path or output file",
	Example: `  sentryctl projects edit site --field name --value website
  sentryctl projects edit 3f2c --field output_file --value /srv/site/INDEX.md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value := editValue
		if editField == registry.FieldPath || editField == registry.FieldOutputFile {
			value = absPath(value)
		}
		return withSession(cmd, func(s session) error {
			if err := s.EditProject(cmd.Context(), args[0], editField, value); err != nil {
				return err
			}
			fmt.Printf("Set %s of %s to %s\n", editField, args[0], styleName.Render(value))
			return nil
		})
	},
}

var projectsTargetCmd = &cobra.Command{
	Use:   "target",
	Short: "Manage extra output targets of a project",
}

var projectsTargetAddCmd = &cobra.Command{
	Use:   "add <project> <file>",
	Short: "Add an output target file to a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := absPath(args[1])
		return withSession(cmd, func(s session) error {
			if err := s.AddTarget(cmd.Context(), args[0], file); err != nil {
				return err
			}
			fmt.Printf("Added target %s to %s\n", file, args[0])
			return nil
		})
	},
}

var projectsTargetRemoveCmd = &cobra.Command{
	Use:     "remove <project> <file>",
	Aliases: []string{"rm"},
	Short:   "Stop watching an output target file of a project",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := absPath(args[1])
		return withSession(cmd, func(s session) error {
			if err := s.RemoveTarget(cmd.Context(), args[0], file); err != nil {
				return err
			}
			fmt.Printf("Removed target %s from %s\n", file, args[0])
			return nil
		})
	},
}

func init() {
	projectsCmd.AddCommand(projectsEditCmd)
	projectsEditCmd.Flags().StringVar(&editField, "field", "", "name, path or output_file (required)")
	projectsEditCmd.Flags().StringVar(&editValue, "value", "", "new value (required)")
	_ = projectsEditCmd.MarkFlagRequired("field")
	_ = projectsEditCmd.MarkFlagRequired("value")

	projectsCmd.AddCommand(projectsTargetCmd)
	projectsTargetCmd.AddCommand(projectsTargetAddCmd)
	projectsTargetCmd.AddCommand(projectsTargetRemoveCmd)
}
