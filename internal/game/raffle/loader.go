package raffle

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// TableFile is an authored draw table loaded from YAML.
type TableFile struct {
	Name          string               `yaml:"name"`
	Normalization string               `yaml:"normalization"`
	Seed          *int64               `yaml:"seed"`
	Items         []TableItem          `yaml:"items"`
	Pity          map[string]TablePity `yaml:"pity"`
	Exclusions    []string             `yaml:"exclusions"`
}

// TableItem is one authored entry in a draw table.
type TableItem struct {
	ID     string         `yaml:"id"`
	Label  string         `yaml:"label"`
	Weight float64        `yaml:"weight"`
	Groups []string       `yaml:"groups"`
	Meta   map[string]any `yaml:"meta"`
	Locked bool           `yaml:"locked"`
}

// TablePity is an authored pity configuration. A nil Cap means unbounded.
type TablePity struct {
	Threshold int      `yaml:"threshold"`
	Increment float64  `yaml:"increment"`
	Cap       *float64 `yaml:"cap"`
}

// Validate checks that the table satisfies its invariants.
//
// Postcondition: returns nil iff every item, pity record, and the
// normalization are valid and internally consistent.
func (t *TableFile) Validate() error {
	var errs []error
	if t.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if t.Normalization != "" {
		if _, err := ParseNormalization(t.Normalization); err != nil {
			errs = append(errs, fmt.Errorf("normalization %q is not valid", t.Normalization))
		}
	}
	if len(t.Items) == 0 {
		errs = append(errs, errors.New("items must not be empty"))
	}
	seen := make(map[string]bool, len(t.Items))
	for i, it := range t.Items {
		if it.ID == "" {
			errs = append(errs, fmt.Errorf("item %d: id must not be empty", i))
			continue
		}
		if seen[it.ID] {
			errs = append(errs, fmt.Errorf("item %d: duplicate id %q", i, it.ID))
		}
		seen[it.ID] = true
		if math.IsNaN(it.Weight) || math.IsInf(it.Weight, 0) || it.Weight < 0 {
			errs = append(errs, fmt.Errorf("item %q: weight must be finite and >= 0", it.ID))
		}
	}
	for id, p := range t.Pity {
		if !seen[id] {
			errs = append(errs, fmt.Errorf("pity %q: no such item", id))
		}
		if p.Threshold < 1 {
			errs = append(errs, fmt.Errorf("pity %q: threshold must be >= 1", id))
		}
		if p.Cap != nil && *p.Cap < 0 {
			errs = append(errs, fmt.Errorf("pity %q: cap must be >= 0", id))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("table validation failed: %v", errs)
	}
	return nil
}

// Build constructs an Engine from the table. Table values override the
// corresponding fields of opts; opts supplies everything the table leaves
// unset (random source, logger, listener cap).
func (t *TableFile) Build(opts Options) (*Engine, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("raffle: TableFile.Build: table %q: %s: %w", t.Name, err, ErrInvalidArgument)
	}
	if t.Normalization != "" {
		opts.Normalization = Normalization(t.Normalization)
	}
	if t.Seed != nil {
		opts.Seed = t.Seed
		opts.RNG = nil
	}
	e, err := New(opts)
	if err != nil {
		return nil, fmt.Errorf("raffle: TableFile.Build: table %q: %w", t.Name, err)
	}
	for _, it := range t.Items {
		item := Item{
			ID:         it.ID,
			Label:      it.Label,
			BaseWeight: it.Weight,
			Groups:     it.Groups,
			Meta:       it.Meta,
			Locked:     it.Locked,
		}
		if err := e.AddItem(item); err != nil {
			return nil, fmt.Errorf("raffle: TableFile.Build: table %q: %w", t.Name, err)
		}
	}
	for id, p := range t.Pity {
		cfg := PityConfig{Threshold: p.Threshold, Increment: p.Increment, Cap: math.Inf(1)}
		if p.Cap != nil {
			cfg.Cap = *p.Cap
		}
		if err := e.SetPity(id, cfg); err != nil {
			return nil, fmt.Errorf("raffle: TableFile.Build: table %q: %w", t.Name, err)
		}
	}
	for _, id := range t.Exclusions {
		if err := e.ExcludeItem(id); err != nil {
			return nil, fmt.Errorf("raffle: TableFile.Build: table %q: %w", t.Name, err)
		}
	}
	return e, nil
}

// LoadTableFromBytes parses and validates a single YAML draw table.
func LoadTableFromBytes(data []byte) (*TableFile, error) {
	var t TableFile
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("LoadTableFromBytes: cannot parse table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("LoadTableFromBytes: %w", err)
	}
	return &t, nil
}

// LoadTableFromFile reads, parses, and validates one YAML draw table. An
// empty name defaults to the file's base name.
func LoadTableFromFile(path string) (*TableFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadTableFromFile: cannot read file %q: %w", path, err)
	}
	var t TableFile
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("LoadTableFromFile: cannot parse file %q: %w", path, err)
	}
	if t.Name == "" {
		t.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("LoadTableFromFile: invalid table in %q: %w", path, err)
	}
	return &t, nil
}

// LoadTables reads all *.yaml and *.yml files from dir, parses each as a
// TableFile, validates it, and returns the collected tables keyed by name.
//
// Precondition: dir is a readable directory path.
// Postcondition: returns all valid tables or the first encountered error.
func LoadTables(dir string) (map[string]*TableFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadTables: cannot read directory %q: %w", dir, err)
	}

	tables := make(map[string]*TableFile)
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		t, err := LoadTableFromFile(path)
		if err != nil {
			return nil, err
		}
		if _, dup := tables[t.Name]; dup {
			return nil, fmt.Errorf("LoadTables: duplicate table name %q in %q", t.Name, path)
		}
		tables[t.Name] = t
	}
	return tables, nil
}
