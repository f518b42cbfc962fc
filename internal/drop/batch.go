package drop

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// slots collects a multi-path drop: one project folder and up to MaxTargets
// output files.
type slots struct {
	folder   string
	targets  []string
	consumed int
	warnings []string
}

func (r *Resolver) route(paths []string) slots {
	var s slots
	seen := make(map[string]bool)
	if r.staged != "" {
		seen[slotKey(r.staged)] = true
	}

	for _, p := range paths {
		key := slotKey(p)
		if seen[key] {
			continue
		}
		info, err := r.stat(p)
		if err != nil {
			s.warnings = append(s.warnings, fmt.Sprintf("skipped %s: %v", p, err))
			continue
		}
		switch {
		case info.IsDir():
			if s.folder != "" {
				s.warnings = append(s.warnings, fmt.Sprintf("skipped folder %s: only one project folder per drop", p))
				continue
			}
			s.folder = p
		case !r.opts.acceptsTarget(p):
			s.warnings = append(s.warnings, fmt.Sprintf("skipped %s: not an accepted output type", p))
			continue
		case len(s.targets) >= r.opts.MaxTargets:
			s.warnings = append(s.warnings, fmt.Sprintf("skipped %s: all %d target slots are full", p, r.opts.MaxTargets))
			continue
		default:
			s.targets = append(s.targets, p)
		}
		seen[key] = true
		s.consumed++
	}
	return s
}

func (r *Resolver) batch(ctx context.Context, paths []string) (Outcome, error) {
	s := r.route(paths)

	var (
		out Outcome
		err error
	)
	switch {
	case s.folder != "" && len(s.targets) > 0:
		out, err = r.batchFolderWithTargets(ctx, s)
	case s.folder != "":
		out, err = r.resolveDir(ctx, s.folder)
	case len(s.targets) > 0 && r.staged != "":
		dir := r.staged
		r.staged = ""
		reg := r.open(dir, s.targets[0], s.targets[1:])
		out = Outcome{
			Kind:         RegistrationPrompted,
			Description:  fmt.Sprintf("register %s with %s", dir, describeTargets(s.targets)),
			Directory:    dir,
			Registration: &reg,
		}
	default:
		out = Outcome{Kind: NoOp, Description: "no project folder in drop"}
	}
	if err != nil {
		return Outcome{}, err
	}
	if out.Kind != NoOp {
		out.Consumed = s.consumed
	}
	out.Warnings = append(s.warnings, out.Warnings...)
	return out, nil
}

// batchFolderWithTargets adds the targets to a known project, or opens a
// registration for an unknown folder.
func (r *Resolver) batchFolderWithTargets(ctx context.Context, s slots) (Outcome, error) {
	if p, ok := r.dir.MatchByPath(s.folder); ok {
		for _, target := range s.targets {
			if err := r.dir.AddTarget(ctx, p.UUID, target); err != nil {
				return Outcome{}, &ActionError{Action: "add target " + p.Name, Err: err}
			}
		}
		return Outcome{
			Kind:        ActionTaken,
			Description: fmt.Sprintf("add %s to %s", describeTargets(s.targets), p.Name),
			Directory:   p.Path,
			Project:     &p,
		}, nil
	}

	r.staged = ""
	reg := r.open(s.folder, s.targets[0], s.targets[1:])
	return Outcome{
		Kind:         RegistrationPrompted,
		Description:  fmt.Sprintf("register %s with %s", s.folder, describeTargets(s.targets)),
		Directory:    s.folder,
		Registration: &reg,
	}, nil
}

func describeTargets(targets []string) string {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = filepath.Base(t)
	}
	return strings.Join(names, ", ")
}
