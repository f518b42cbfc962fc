//go:build unix

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gurisko/sentryctl/internal/drop"
	"github.com/gurisko/sentryctl/internal/inbox"
	"github.com/gurisko/sentryctl/internal/prompt"
)

var (
	dropName  string
	dropYes   bool
	dropQueue bool
	dropJSON  bool

	confirmID   string
	confirmName string
	confirmYes  bool
)

var dropCmd = &cobra.Command{
	Use:   "drop <path>...",
	Short: "Act on dropped folders and files",
	Long: `Drop resolves filesystem paths the way dragging them onto the tray does.

  project folder             start it, or trigger an update when monitoring
  folder with a README.md    ask for a name and register it
  other folder               stage it; the next dropped file becomes its output
  folder plus files          register the folder with the files as targets

When a registration needs a name, drop asks on a terminal. --name answers
up front and --yes accepts the folder name and any suggested alternative.
Without a terminal and without either flag the registration stays pending
for "sentryctl drop confirm".`,
	Example: `  sentryctl drop ~/www/site
  sentryctl drop ~/notes ~/notes/summary.md --name notes
  sentryctl drop --queue ~/www/site`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDrop,
}

var dropStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the staged folder and any pending registration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s session) error {
			p, err := s.Pending(cmd.Context())
			if err != nil {
				return err
			}
			if dropJSON {
				return printJSON(p)
			}
			fmt.Printf("%s %s\n", styleLabel.Render("state:"), p.State)
			if s.Remote() {
				fmt.Println(styleHint.Render("held by the session daemon"))
			}
			if p.Staged != "" {
				fmt.Printf("%s %s\n", styleLabel.Render("staged:"), p.Staged)
				fmt.Println(styleHint.Render("drop a file to use it as the output of the staged folder"))
			}
			if reg := p.Registration; reg != nil {
				fmt.Printf("%s %s (%s)\n", styleLabel.Render("registration:"), reg.Directory, reg.ID)
				fmt.Printf("%s %s\n", styleLabel.Render("output:"), reg.OutputFile)
				for _, t := range reg.ExtraTargets {
					fmt.Printf("%s %s\n", styleLabel.Render("target:"), t)
				}
			}
			return nil
		})
	},
}

var dropResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the staged folder and any pending registration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s session) error {
			if err := s.ResetDrops(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Drop state cleared")
			return nil
		})
	},
}

var dropConfirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Register the pending folder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s session) error {
			p, err := s.Pending(cmd.Context())
			if err != nil {
				return err
			}
			if p.Registration == nil || (confirmID != "" && p.Registration.ID != confirmID) {
				return fmt.Errorf("%w: %s", drop.ErrNoRegistration, confirmID)
			}
			out, err := register(cmd, s, *p.Registration, confirmName, confirmYes)
			if err != nil {
				return err
			}
			return printOutcome(out)
		})
	},
}

var dropCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Discard the pending registration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s session) error {
			if err := s.Cancel(confirmID); err != nil {
				return err
			}
			fmt.Println("Registration cancelled")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(dropCmd)
	dropCmd.Flags().StringVarP(&dropName, "name", "n", "", "project name for a registration")
	dropCmd.Flags().BoolVarP(&dropYes, "yes", "y", false, "accept default and suggested names")
	dropCmd.Flags().BoolVar(&dropQueue, "queue", false, "hand the paths to the session daemon inbox and return")
	dropCmd.PersistentFlags().BoolVar(&dropJSON, "json", false, "print JSON")

	dropCmd.AddCommand(dropStatusCmd)
	dropCmd.AddCommand(dropResetCmd)
	dropCmd.AddCommand(dropConfirmCmd)
	dropCmd.AddCommand(dropCancelCmd)
	for _, c := range []*cobra.Command{dropConfirmCmd, dropCancelCmd} {
		c.Flags().StringVar(&confirmID, "id", "", "registration id (default: the pending one)")
	}
	dropConfirmCmd.Flags().StringVarP(&confirmName, "name", "n", "", "project name")
	dropConfirmCmd.Flags().BoolVarP(&confirmYes, "yes", "y", false, "accept default and suggested names")
}

func runDrop(cmd *cobra.Command, args []string) error {
	paths := make([]string, 0, len(args))
	for _, a := range args {
		if p := absPath(a); p != "" {
			paths = append(paths, p)
		}
	}

	if dropQueue {
		file, err := inbox.Submit(cfg.Session.Inbox, paths)
		if err != nil {
			return err
		}
		fmt.Printf("Queued %d path(s) as %s\n", len(paths), file)
		return nil
	}

	return withSession(cmd, func(s session) error {
		out, err := s.Drop(cmd.Context(), paths)
		if err != nil {
			return err
		}
		if dropJSON || out.Kind != drop.RegistrationPrompted || out.Registration == nil {
			if dropJSON {
				return printJSON(out)
			}
			return printOutcome(out)
		}

		fmt.Println(out.Description)
		final, err := register(cmd, s, *out.Registration, dropName, dropYes)
		if err != nil {
			return err
		}
		return printOutcome(final)
	})
}

// stdinIsTerminal decides whether name prompts can be shown.
var stdinIsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

// register names reg. An explicit name is tried once and a conflict leaves
// the registration pending; --yes and the terminal prompt retry with the
// suggested name. Without a terminal and without a name or --yes, the
// registration is left pending.
func register(cmd *cobra.Command, s session, reg drop.Registration, name string, yes bool) (drop.Outcome, error) {
	var p drop.Prompter
	switch {
	case name != "" && !yes:
		out, err := s.Confirm(cmd.Context(), reg.ID, name)
		var conflict *drop.NameConflictError
		if errors.As(err, &conflict) {
			return out, fmt.Errorf("%w; run `sentryctl drop confirm --name %s`", err, conflict.Suggested)
		}
		return out, err
	case yes:
		p = &prompt.Static{Name: name, AcceptSuggestions: true}
	case stdinIsTerminal():
		p = prompt.Terminal{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()}
	default:
		return drop.Outcome{
			Kind:         drop.RegistrationPrompted,
			Description:  fmt.Sprintf("registration for %s is pending; run `sentryctl drop confirm --name <name>`", reg.Directory),
			Directory:    reg.Directory,
			Registration: &reg,
		}, nil
	}
	return drop.RegisterInteractive(cmd.Context(), s, reg, p)
}

func printOutcome(out drop.Outcome) error {
	switch out.Kind {
	case drop.ActionTaken:
		fmt.Println(styleSuccess.Render(out.Description))
	case drop.NoOp:
		fmt.Println(styleHint.Render(out.Description))
	default:
		fmt.Println(out.Description)
	}
	if out.Project != nil {
		fmt.Printf("%s %s (%s) %s\n", styleLabel.Render("project:"), styleName.Render(out.Project.Name), out.Project.UUID, statusBadge(*out.Project))
	}
	printWarnings(out.Warnings)
	return nil
}
