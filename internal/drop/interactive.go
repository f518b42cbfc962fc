package drop

import (
	"context"
	"errors"
	"fmt"

	"github.com/gurisko/sentryctl/internal/bridge"
)

// Prompter asks the user for a project name. ok is false when the user
// cancelled.
type Prompter interface {
	PromptName(title, initial string) (name string, ok bool, err error)
}

// Registrar confirms or cancels open registrations. *Resolver implements it;
// so does the session client.
type Registrar interface {
	Confirm(ctx context.Context, id, name string) (Outcome, error)
	Cancel(id string) error
}

// RegisterInteractive confirms reg, asking for a name until the backend
// accepts it or the user cancels.
func (r *Resolver) RegisterInteractive(ctx context.Context, reg Registration, p Prompter) (Outcome, error) {
	return RegisterInteractive(ctx, r, reg, p)
}

// RegisterInteractive drives the name prompt against any Registrar. Only name
// conflicts and empty names lead to another prompt; any other failure ends
// the loop.
func RegisterInteractive(ctx context.Context, r Registrar, reg Registration, p Prompter) (Outcome, error) {
	title := fmt.Sprintf("Project name for %s", reg.Directory)
	initial := reg.DefaultName
	for {
		name, ok, err := p.PromptName(title, initial)
		if err != nil {
			_ = r.Cancel(reg.ID)
			return Outcome{}, fmt.Errorf("prompt failed: %w", err)
		}
		if !ok {
			_ = r.Cancel(reg.ID)
			return Outcome{Kind: NoOp, Description: "registration cancelled", Directory: reg.Directory}, nil
		}

		out, err := r.Confirm(ctx, reg.ID, name)
		var conflict *NameConflictError
		switch {
		case errors.As(err, &conflict):
			title = fmt.Sprintf("Name %q is already taken, choose another", conflict.Name)
			initial = conflict.Suggested
		case bridge.IsValidation(err):
			title = "Project name must not be empty"
			initial = reg.DefaultName
		default:
			return out, err
		}
	}
}
