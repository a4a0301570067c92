// Package snapshot persists Machine snapshots to disk for debugging and
// post-mortem inspection. It is a pure side observer: nothing in the
// runtime reads a snapshot back to resume a machine, since state
// handlers are code, not data, and cannot be reconstructed from a file.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/hsmlab/hsmgo/internal/core"
)

// JSONPersister writes one JSON file per machine name under dir.
type JSONPersister struct {
	dir string
}

// NewJSONPersister creates a JSONPersister, ensuring dir exists.
func NewJSONPersister(dir string) (*JSONPersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &JSONPersister{dir: dir}, nil
}

func (p *JSONPersister) Save(snap core.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	fn := filepath.Join(p.dir, snap.Name+".json")
	if err := os.WriteFile(fn, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fn, err)
	}
	return nil
}

func (p *JSONPersister) Load(name string) (core.Snapshot, error) {
	fn := filepath.Join(p.dir, name+".json")
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.Snapshot{}, fmt.Errorf("machine %q: %w", name, os.ErrNotExist)
		}
		return core.Snapshot{}, fmt.Errorf("read %s: %w", fn, err)
	}
	var snap core.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return core.Snapshot{}, fmt.Errorf("json unmarshal: %w", err)
	}
	return snap, nil
}

// YAMLPersister writes one YAML file per machine name under dir. Kept
// distinct from JSONPersister, matching the original runtime's choice to
// offer both formats rather than picking one.
type YAMLPersister struct {
	dir string
}

// NewYAMLPersister creates a YAMLPersister, ensuring dir exists.
func NewYAMLPersister(dir string) (*YAMLPersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &YAMLPersister{dir: dir}, nil
}

func (p *YAMLPersister) Save(snap core.Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	fn := filepath.Join(p.dir, snap.Name+".yaml")
	if err := os.WriteFile(fn, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fn, err)
	}
	return nil
}

func (p *YAMLPersister) Load(name string) (core.Snapshot, error) {
	fn := filepath.Join(p.dir, name+".yaml")
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.Snapshot{}, fmt.Errorf("machine %q: %w", name, os.ErrNotExist)
		}
		return core.Snapshot{}, fmt.Errorf("read %s: %w", fn, err)
	}
	var snap core.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return core.Snapshot{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	return snap, nil
}
