// Package manifest is a discovery collaborator for the component manager.
//
// A manifest is a YAML document declaring roles, implementation types and
// explicit components. Types are turned into descriptors by the descriptor
// builder; factories come from a static FactoryTable keyed by
// implementation name. The Installer diff-applies the result to a manager
// and the Watcher reapplies it whenever the file changes.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the parsed YAML document.
type Manifest struct {
	Roles      []RoleSpec      `yaml:"roles"`
	Types      []TypeSpec      `yaml:"types"`
	Components []ComponentSpec `yaml:"components,omitempty"`
}

// RoleSpec declares a role and the roles it extends. Extended roles must be
// declared earlier in the list.
type RoleSpec struct {
	Name    string   `yaml:"name"`
	Extends []string `yaml:"extends,omitempty"`
}

// TypeSpec describes an implementation type. Base names another type whose
// roles and dependencies are inherited.
type TypeSpec struct {
	Name           string           `yaml:"name"`
	Implementation string           `yaml:"implementation,omitempty"` // factory name, defaults to Name
	Base           string           `yaml:"base,omitempty"`
	Roles          []string         `yaml:"roles,omitempty"`
	Hints          []string         `yaml:"hints,omitempty"`
	Strategy       string           `yaml:"strategy,omitempty"`
	Dependencies   []DependencySpec `yaml:"dependencies,omitempty"`
}

// ComponentSpec registers a single descriptor directly, without the role
// catalog's extension rules.
type ComponentSpec struct {
	Role           string           `yaml:"role"`
	Hint           string           `yaml:"hint,omitempty"`
	Implementation string           `yaml:"implementation"`
	Strategy       string           `yaml:"strategy,omitempty"`
	Dependencies   []DependencySpec `yaml:"dependencies,omitempty"`
}

// DependencySpec is one injection point.
type DependencySpec struct {
	Field   string   `yaml:"field,omitempty"`
	Role    string   `yaml:"role"`
	Hint    string   `yaml:"hint,omitempty"`
	Mapping string   `yaml:"mapping,omitempty"` // single (default), list or map
	Hints   []string `yaml:"hints,omitempty"`
}

// ErrInvalidManifest is wrapped by every structural problem Parse reports.
var ErrInvalidManifest = errors.New("invalid manifest")

// Parse decodes a manifest from r. Unknown keys are rejected.
func Parse(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return &m, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Validate checks names and references inside the document. Role and
// strategy semantics are left to Build.
func (m *Manifest) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidManifest}, args...)...))
	}

	roles := make(map[string]bool, len(m.Roles))
	for i, r := range m.Roles {
		if r.Name == "" {
			invalid("roles[%d] has no name", i)
			continue
		}
		if roles[r.Name] {
			invalid("role %s declared twice", r.Name)
		}
		roles[r.Name] = true
	}

	types := make(map[string]bool, len(m.Types))
	for i, t := range m.Types {
		if t.Name == "" {
			invalid("types[%d] has no name", i)
			continue
		}
		if types[t.Name] {
			invalid("type %s declared twice", t.Name)
		}
		types[t.Name] = true
	}
	for _, t := range m.Types {
		if t.Base != "" && !types[t.Base] {
			invalid("type %s extends unknown type %s", t.Name, t.Base)
		}
		for j, d := range t.Dependencies {
			if d.Role == "" {
				invalid("type %s dependency %d has no role", t.Name, j)
			}
		}
	}

	for i, c := range m.Components {
		if c.Role == "" {
			invalid("components[%d] has no role", i)
		}
		if c.Implementation == "" {
			invalid("components[%d] (%s) has no implementation", i, c.Role)
		}
	}

	return errors.Join(errs...)
}

// Marshal renders m back to YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("marshaling manifest: %w", err)
	}
	_ = enc.Close()
	return buf.Bytes(), nil
}
