//go:build unix

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gurisko/sentryctl/internal/drop"
	"github.com/gurisko/sentryctl/internal/prompt"
	"github.com/gurisko/sentryctl/internal/registry"
)

var addName, addPath, addOutput string
var addJSON, addYes bool

var projectsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a project folder with the backend",
	Example: `  sentryctl projects add --name site --path ~/www/site --output ~/www/site/README.md
  sentryctl projects add -n docs -p . -o index.md`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addName = strings.TrimSpace(addName)
		if addName == "" {
			return errors.New("--name is required")
		}
		dir := absPath(addPath)
		output := strings.TrimSpace(addOutput)
		if output != "" && !filepath.IsAbs(expandHome(output)) {
			output = filepath.Join(dir, output)
		}
		output = absPath(output)

		return withSession(cmd, func(s session) error {
			p, name, err := addProject(cmd, s, addName, dir, output, addYes)
			if err != nil {
				return err
			}
			if addJSON {
				return printJSON(map[string]any{"registered": true, "name": name, "project": p})
			}
			if p == nil {
				fmt.Printf("Registered %s\n", styleName.Render(name))
				return nil
			}
			fmt.Printf("Registered %s at %s (uuid=%s)\n", styleName.Render(p.Name), p.Path, p.UUID)
			return nil
		})
	},
}

func init() {
	projectsCmd.AddCommand(projectsAddCmd)
	projectsAddCmd.Flags().StringVarP(&addName, "name", "n", "", "project name (required)")
	projectsAddCmd.Flags().StringVarP(&addPath, "path", "p", "", "project folder (required)")
	projectsAddCmd.Flags().StringVarP(&addOutput, "output", "o", "", "output file, relative to the folder or absolute (required)")
	projectsAddCmd.Flags().BoolVar(&addJSON, "json", false, "print JSON")
	projectsAddCmd.Flags().BoolVarP(&addYes, "yes", "y", false, "accept the suggested name when the name is taken")
	_ = projectsAddCmd.MarkFlagRequired("name")
	_ = projectsAddCmd.MarkFlagRequired("path")
	_ = projectsAddCmd.MarkFlagRequired("output")
}

// projectAdder lets the registration name prompt drive `projects add`. It has
// no pending state, so Cancel does nothing.
type projectAdder struct {
	s            session
	path, output string

	name    string
	project *registry.Project
}

func (a *projectAdder) Confirm(ctx context.Context, _ string, name string) (drop.Outcome, error) {
	p, err := a.s.AddProject(ctx, name, a.path, a.output)
	if err != nil {
		return drop.Outcome{}, err
	}
	a.name, a.project = strings.TrimSpace(name), p
	return drop.Outcome{Kind: drop.ActionTaken, Description: "register " + a.name, Directory: a.path, Project: p}, nil
}

func (a *projectAdder) Cancel(string) error { return nil }

// addProject registers dir under name. When the name is taken, --yes retries
// with the suggested name and a terminal prompts for another; otherwise the
// conflict is returned with a hint.
func addProject(cmd *cobra.Command, s session, name, dir, output string, yes bool) (*registry.Project, string, error) {
	adder := &projectAdder{s: s, path: dir, output: output}
	_, err := adder.Confirm(cmd.Context(), "", name)
	var conflict *drop.NameConflictError
	if !errors.As(err, &conflict) {
		return adder.project, adder.name, err
	}

	var p drop.Prompter
	switch {
	case yes:
		p = &prompt.Static{AcceptSuggestions: true}
	case stdinIsTerminal():
		p = prompt.Terminal{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()}
	default:
		return nil, "", fmt.Errorf("%w; run again with --name %s or --yes", err, conflict.Suggested)
	}

	logger.Infof("project name %q is taken, retrying as %q", conflict.Name, conflict.Suggested)
	reg := drop.Registration{Directory: dir, OutputFile: output, DefaultName: conflict.Suggested}
	out, err := drop.RegisterInteractive(cmd.Context(), adder, reg, p)
	if err != nil {
		return nil, "", err
	}
	if out.Kind != drop.ActionTaken {
		return nil, "", fmt.Errorf("%s not registered: %s", dir, out.Description)
	}
	return adder.project, adder.name, nil
}

// expandHome replaces a leading ~ with the home directory.
func expandHome(p string) string {
	if strings.HasPrefix(p, "~") {
		if home, _ := os.UserHomeDir(); home != "" {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// absPath makes a user-supplied path absolute. Empty stays empty so the
// backend-facing validation reports it.
func absPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = expandHome(p)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
