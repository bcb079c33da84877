// Package recipe implements the task-runner surface: named shortcut
// commands, the builtin lint/fix recipes, and a watch mode that reruns a
// recipe on file changes.
package recipe

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tplr-ai/templar-ops/internal/config"
)

// Recipe is a named sequence of external commands.
type Recipe struct {
	Name        string
	Description string
	Steps       [][]string
	// AliasFor names another recipe this one resolves to.
	AliasFor string
}

// NotFoundError reports a recipe name with no definition.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no recipe named %q", e.Name)
}

// IsNotFound checks whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Builtins returns the recipes that exist without any configuration.
func Builtins() []Recipe {
	return []Recipe{
		{
			Name:        "lint",
			Description: "run the linter with auto-fix, then the formatter",
			Steps: [][]string{
				{"uv", "run", "ruff", "check", "--fix", "."},
				{"uv", "run", "ruff", "format", "."},
			},
		},
		{
			Name:        "fix",
			Description: "alias for lint",
			AliasFor:    "lint",
		},
	}
}

// Registry holds all known recipes, builtins plus configured extras.
type Registry struct {
	recipes []Recipe
	byName  map[string]Recipe
}

// NewRegistry builds a registry from the builtins and the config-defined
// recipes. Config recipes may not shadow builtins.
func NewRegistry(extras []config.Recipe) (*Registry, error) {
	reg := &Registry{byName: make(map[string]Recipe)}

	for _, r := range Builtins() {
		reg.add(r)
	}
	for _, c := range extras {
		if _, exists := reg.byName[c.Name]; exists {
			return nil, fmt.Errorf("recipe %q shadows a builtin", c.Name)
		}
		reg.add(Recipe{
			Name:        c.Name,
			Description: c.Description,
			Steps:       c.Steps,
		})
	}
	return reg, nil
}

func (r *Registry) add(rec Recipe) {
	r.recipes = append(r.recipes, rec)
	r.byName[rec.Name] = rec
}

// List returns all recipes sorted by name. This is the default CLI output.
func (r *Registry) List() []Recipe {
	out := make([]Recipe, len(r.recipes))
	copy(out, r.recipes)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resolve returns the recipe for name, following one level of aliasing.
func (r *Registry) Resolve(name string) (Recipe, error) {
	rec, ok := r.byName[name]
	if !ok {
		return Recipe{}, &NotFoundError{Name: name}
	}
	if rec.AliasFor != "" {
		target, ok := r.byName[rec.AliasFor]
		if !ok {
			return Recipe{}, fmt.Errorf("recipe %q aliases unknown recipe %q", name, rec.AliasFor)
		}
		return target, nil
	}
	return rec, nil
}
