package drop

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PendingState is the persisted part of the resolver: the staged folder and
// the open registration, if any.
type PendingState struct {
	Staged       string        `yaml:"staged,omitempty" json:"staged,omitempty"`
	Registration *Registration `yaml:"registration,omitempty" json:"registration,omitempty"`
}

// PendingStore keeps PendingState in a YAML file so that separate CLI
// invocations share one state machine.
type PendingStore struct {
	filePath string
}

func NewPendingStore(filePath string) *PendingStore {
	return &PendingStore{filePath: filePath}
}

func (s *PendingStore) Path() string { return s.filePath }

// Load reads the state. A missing file is an empty state.
func (s *PendingStore) Load() (PendingState, error) {
	var st PendingState
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, err
	}
	if err := yaml.Unmarshal(data, &st); err != nil {
		return PendingState{}, fmt.Errorf("failed to unmarshal pending state: %w", err)
	}
	return st, nil
}

// Save replaces the state file atomically.
func (s *PendingStore) Save(st PendingState) error {
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal pending state: %w", err)
	}

	f, err := os.CreateTemp(dir, ".pending-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write pending state: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to fsync pending state: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close pending state file: %w", err)
	}

	if err := os.Rename(tmp, s.filePath); err != nil {
		return fmt.Errorf("failed to replace pending state: %w", err)
	}
	return nil
}
