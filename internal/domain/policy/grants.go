package policy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// GrantShape is one "always allow" entry. Tool is required; Command narrows
// exec-style grants to a root command, Path narrows edit-style grants with a
// glob pattern.
type GrantShape struct {
	Tool    string `yaml:"tool" json:"tool"`
	Command string `yaml:"command,omitempty" json:"command,omitempty"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
}

// Validate checks that a grant shape is well-formed.
func (g GrantShape) Validate() error {
	if g.Tool == "" {
		return fmt.Errorf("grant: tool is required")
	}
	return nil
}

func (g GrantShape) matches(call CallDescriptor) bool {
	if g.Tool != call.Tool {
		return false
	}
	if g.Command != "" && !matchesCommand(g.Command, call.Command) {
		return false
	}
	if g.Path != "" && !matchesPattern(g.Path, call.Path) {
		return false
	}
	return true
}

// matchesCommand matches a granted root command against the call's command:
// an exact match or the grant followed by an argument boundary.
func matchesCommand(grant, command string) bool {
	if grant == command {
		return true
	}
	return strings.HasPrefix(command, grant+" ")
}

// matchesPattern matches glob-style patterns the way policy rules do:
// "secrets/*" matches "secrets/key.pem", "*" matches everything.
func matchesPattern(pattern, name string) bool {
	if pattern == name {
		return true
	}
	matched, err := filepath.Match(pattern, name)
	return err == nil && matched
}

// Grants is the set of session-granted "always allow" shapes. Safe for
// concurrent use; the zero value and nil are both empty, immutable grant sets.
type Grants struct {
	mu     sync.RWMutex
	shapes []GrantShape
}

// NewGrants builds a grant set from initial shapes.
func NewGrants(shapes ...GrantShape) *Grants {
	g := &Grants{}
	g.shapes = append(g.shapes, shapes...)
	return g
}

// Match reports whether any grant covers the call.
func (g *Grants) Match(call CallDescriptor) bool {
	if g == nil {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, shape := range g.shapes {
		if shape.matches(call) {
			return true
		}
	}
	return false
}

// Add records a new grant. Duplicate shapes are collapsed.
func (g *Grants) Add(shape GrantShape) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, existing := range g.shapes {
		if existing == shape {
			return
		}
	}
	g.shapes = append(g.shapes, shape)
}

// Snapshot returns a copy of the current shapes.
func (g *Grants) Snapshot() []GrantShape {
	if g == nil {
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]GrantShape, len(g.shapes))
	copy(out, g.shapes)
	return out
}

type grantsFile struct {
	Grants []GrantShape `yaml:"grants"`
}

// LoadGrants reads persisted "proceed always" grants from a YAML file.
// A missing file yields an empty grant set, matching the config loader.
func LoadGrants(path string) (*Grants, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewGrants(), nil
		}
		return nil, fmt.Errorf("read grants file %s: %w", path, err)
	}

	var f grantsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse grants file %s: %w", path, err)
	}
	for i := range f.Grants {
		if err := f.Grants[i].Validate(); err != nil {
			return nil, fmt.Errorf("validate grants file %s: grant[%d]: %w", path, i, err)
		}
	}
	return NewGrants(f.Grants...), nil
}

// SaveGrants persists the grant set to a YAML file.
func SaveGrants(path string, g *Grants) error {
	data, err := yaml.Marshal(grantsFile{Grants: g.Snapshot()})
	if err != nil {
		return fmt.Errorf("marshal grants: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write grants file %s: %w", path, err)
	}
	return nil
}
