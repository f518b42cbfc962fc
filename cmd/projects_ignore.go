//go:build unix

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	ignoreSet   []string
	ignoreClear bool
	ignoreJSON  bool
)

var projectsIgnoreCmd = &cobra.Command{
	Use:   "ignore <project>",
	Short: "Show or replace a project's ignore patterns",
	Long: `Without flags, ignore prints the current patterns and the candidates the
backend suggests. --set replaces the patterns; --clear removes them all.`,
	Example: `  sentryctl projects ignore site
  sentryctl projects ignore site --set node_modules,dist
  sentryctl projects ignore site --clear`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		return withSession(cmd, func(s session) error {
			if ignoreClear || len(ignoreSet) > 0 {
				patterns := []string{}
				if !ignoreClear {
					patterns = trimAll(ignoreSet)
				}
				if err := s.SetIgnorePatterns(cmd.Context(), key, patterns); err != nil {
					return err
				}
				fmt.Printf("Ignore patterns of %s set to [%s]\n", key, strings.Join(patterns, ", "))
				return nil
			}

			candidates, patterns, err := s.IgnoreInfo(cmd.Context(), key)
			if err != nil {
				return err
			}
			if ignoreJSON {
				return printJSON(map[string]any{"candidates": nonNilStrings(candidates), "patterns": nonNilStrings(patterns)})
			}
			fmt.Println(styleLabel.Render("Patterns:"))
			printList(patterns)
			fmt.Println(styleLabel.Render("Candidates:"))
			printList(candidates)
			return nil
		})
	},
}

func init() {
	projectsCmd.AddCommand(projectsIgnoreCmd)
	projectsIgnoreCmd.Flags().StringSliceVar(&ignoreSet, "set", nil, "replace patterns (comma-separated)")
	projectsIgnoreCmd.Flags().BoolVar(&ignoreClear, "clear", false, "remove all patterns")
	projectsIgnoreCmd.Flags().BoolVar(&ignoreJSON, "json", false, "print JSON")
	projectsIgnoreCmd.MarkFlagsMutuallyExclusive("set", "clear")
}

func printList(items []string) {
	if len(items) == 0 {
		fmt.Println(styleHint.Render("  (none)"))
		return
	}
	for _, it := range items {
		fmt.Println("  " + it)
	}
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
