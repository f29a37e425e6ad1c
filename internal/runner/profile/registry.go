package profile

import (
	"fmt"
	"os"
	"sort"

	appErr "bojmock/pkg/errors"

	"gopkg.in/yaml.v3"
)

// Resolver resolves a language id into its spec.
type Resolver interface {
	Resolve(id string) (LanguageSpec, error)
}

// Registry is an immutable in-memory language catalog.
type Registry struct {
	languages map[string]LanguageSpec
	order     []string
}

// NewRegistry validates specs and builds a registry. Later code never mutates it.
func NewRegistry(specs []LanguageSpec) (*Registry, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("at least one language is required")
	}
	langMap := make(map[string]LanguageSpec, len(specs))
	order := make([]string, 0, len(specs))
	for _, spec := range specs {
		if err := spec.validate(); err != nil {
			return nil, err
		}
		if _, ok := langMap[spec.ID]; ok {
			return nil, fmt.Errorf("duplicate language id: %s", spec.ID)
		}
		langMap[spec.ID] = spec.clone()
		order = append(order, spec.ID)
	}
	return &Registry{languages: langMap, order: order}, nil
}

// Resolve returns a copy of the language spec.
func (r *Registry) Resolve(id string) (LanguageSpec, error) {
	if id == "" {
		return LanguageSpec{}, appErr.ValidationError("language", "required")
	}
	lang, ok := r.languages[id]
	if !ok {
		return LanguageSpec{}, appErr.Newf(appErr.LanguageNotSupported, "language %q is not supported", id).
			WithDetail("supported", r.IDs())
	}
	return lang.clone(), nil
}

// IDs returns the language ids sorted alphabetically.
func (r *Registry) IDs() []string {
	ids := append([]string(nil), r.order...)
	sort.Strings(ids)
	return ids
}

// List returns all specs in catalog order.
func (r *Registry) List() []LanguageSpec {
	out := make([]LanguageSpec, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.languages[id].clone())
	}
	return out
}

type catalogFile struct {
	Languages []LanguageSpec `yaml:"languages"`
}

// LoadCatalog reads a YAML file holding a top-level "languages" list.
func LoadCatalog(path string) ([]LanguageSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read language catalog failed: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse language catalog failed: %w", err)
	}
	return file.Languages, nil
}
