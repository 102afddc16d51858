package inventory

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Definition describes the static properties of an item, loaded from YAML
// or registered programmatically.
type Definition struct {
	ID       string         `yaml:"id"`
	Label    string         `yaml:"label"`
	Type     string         `yaml:"type"`
	Weight   float64        `yaml:"weight"`
	CanStack bool           `yaml:"can_stack"`
	MaxStack int            `yaml:"max_stack"`
	Metadata map[string]any `yaml:"metadata"`

	// UseHook names a scripting hook to bind as OnUse. The loader leaves the
	// binding to the caller.
	UseHook string `yaml:"on_use"`
	// OnUse runs when a unit is used. Nil means using the item has no effect
	// beyond the use event.
	OnUse UseFunc `yaml:"-"`
}

// Validate checks that the Definition satisfies its invariants.
//
// Postcondition: returns nil iff all fields are valid.
func (d *Definition) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("ID must not be empty"))
	}
	if math.IsNaN(d.Weight) || math.IsInf(d.Weight, 0) || d.Weight < 0 {
		errs = append(errs, errors.New("Weight must be finite and >= 0"))
	}
	if d.MaxStack < 1 {
		errs = append(errs, errors.New("MaxStack must be >= 1"))
	}
	if !d.CanStack && d.MaxStack != 1 {
		errs = append(errs, fmt.Errorf("MaxStack must be 1 for non-stackable items; got %d", d.MaxStack))
	}
	if len(errs) > 0 {
		return fmt.Errorf("definition validation failed: %v", errs)
	}
	return nil
}

// stackLimit is the merge cap the add path applies.
func (d *Definition) stackLimit() int {
	if !d.CanStack {
		return 1
	}
	return d.MaxStack
}

// LoadDefinitions reads all *.yaml and *.yml files from dir, parses each as
// a Definition, validates it, and returns the collected slice.
//
// Precondition: dir is a readable directory path.
// Postcondition: returns all valid Definitions or the first encountered
// error.
func LoadDefinitions(dir string) ([]*Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadDefinitions: cannot read directory %q: %w", dir, err)
	}

	var defs []*Definition
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("LoadDefinitions: cannot read file %q: %w", path, err)
		}
		var d Definition
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("LoadDefinitions: cannot parse file %q: %w", path, err)
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("LoadDefinitions: invalid definition in %q: %w", path, err)
		}
		defs = append(defs, &d)
	}
	return defs, nil
}
