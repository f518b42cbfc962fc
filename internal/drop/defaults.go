package drop

import (
	"path/filepath"
	"strings"
)

var (
	// DefaultOutputFiles are checked in order when a folder without a project is dropped.
	DefaultOutputFiles = []string{"README.md", "README.MD", "readme.md", "INDEX.md", "index.md"}
	// DefaultTargetExtensions are the file types accepted into batch target slots.
	DefaultTargetExtensions = []string{".md", ".markdown", ".txt", ".log"}
	// DefaultConflictMarkers are backend phrases that mean a project name is taken.
	DefaultConflictMarkers = []string{"已被佔用", "already taken", "already exists"}
)

const DefaultMaxTargets = 3

// Options tunes how dropped paths are interpreted.
type Options struct {
	OutputFiles      []string
	TargetExtensions []string
	ConflictMarkers  []string
	MaxTargets       int
}

func DefaultOptions() Options {
	return Options{
		OutputFiles:      DefaultOutputFiles,
		TargetExtensions: DefaultTargetExtensions,
		ConflictMarkers:  DefaultConflictMarkers,
		MaxTargets:       DefaultMaxTargets,
	}
}

func (o Options) withDefaults() Options {
	if len(o.OutputFiles) == 0 {
		o.OutputFiles = DefaultOutputFiles
	}
	if len(o.TargetExtensions) == 0 {
		o.TargetExtensions = DefaultTargetExtensions
	}
	if len(o.ConflictMarkers) == 0 {
		o.ConflictMarkers = DefaultConflictMarkers
	}
	if o.MaxTargets <= 0 {
		o.MaxTargets = DefaultMaxTargets
	}
	return o
}

func (o Options) acceptsTarget(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range o.TargetExtensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

func (o Options) isConflict(msg string) bool {
	lower := strings.ToLower(msg)
	for _, m := range o.ConflictMarkers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
