// Package health implements the read-only freshness audit of the layered
// warehouse.
package health

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TableSpec registers one warehouse table for auditing. Core tables decide
// layer health; optional tables only downgrade the report.
type TableSpec struct {
	Name       string `yaml:"name"`
	UnitColumn string `yaml:"unit_column"`
	Core       bool   `yaml:"core"`
}

// LayerSpec is one pipeline layer with its watermark stream and tables.
type LayerSpec struct {
	Name   string      `yaml:"name"`
	Stream string      `yaml:"stream"`
	Tables []TableSpec `yaml:"tables"`
}

// Registry is the audited shape of the pipeline, loaded from YAML. Order in
// the file is pipeline order, bottom layer first.
type Registry struct {
	Layers []LayerSpec `yaml:"layers"`
}

// LoadRegistry reads and validates a layer registry file.
func LoadRegistry(path string) (*Registry, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return nil, fmt.Errorf("read layer registry: %w", err)
	}
	var reg Registry
	if err := yaml.Unmarshal(raw, &reg); err != nil {
		return nil, fmt.Errorf("parse layer registry %s: %w", path, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("layer registry %s: %w", path, err)
	}
	return &reg, nil
}

// Validate checks the registry for structural problems.
func (r *Registry) Validate() error {
	if len(r.Layers) == 0 {
		return fmt.Errorf("no layers defined")
	}
	seen := make(map[string]bool, len(r.Layers))
	for _, l := range r.Layers {
		if l.Name == "" {
			return fmt.Errorf("layer with empty name")
		}
		if seen[l.Name] {
			return fmt.Errorf("duplicate layer %s", l.Name)
		}
		seen[l.Name] = true
		if l.Stream == "" {
			return fmt.Errorf("layer %s: stream is required", l.Name)
		}
		if len(l.Tables) == 0 {
			return fmt.Errorf("layer %s: at least one table is required", l.Name)
		}
		for _, t := range l.Tables {
			if t.Name == "" || t.UnitColumn == "" {
				return fmt.Errorf("layer %s: table name and unit_column are required", l.Name)
			}
		}
	}
	return nil
}

// Layer returns the named layer spec.
func (r *Registry) Layer(name string) (*LayerSpec, bool) {
	for i := range r.Layers {
		if r.Layers[i].Name == name {
			return &r.Layers[i], true
		}
	}
	return nil, false
}
