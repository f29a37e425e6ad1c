package command

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Field defines a CLI input field.
type Field struct {
	Name     string
	Aliases  []string
	Prompt   string
	Required bool
	// FileAlt names a field whose file contents can stand in for this one.
	FileAlt string
}

// Command defines a CLI command bound to one endpoint.
type Command struct {
	Name   string
	Method string
	Path   string
	Usage  string
	Fields []Field
}

// RequestSpec is the built HTTP request.
type RequestSpec struct {
	Method string
	Path   string
	Body   []byte
}

// Params holds parsed input params.
type Params map[string]string

func (p Params) Get(key string) string {
	return p[strings.ToLower(key)]
}

func (p Params) Set(key, value string) {
	p[strings.ToLower(key)] = value
}

func (p Params) Has(key string) bool {
	_, ok := p[strings.ToLower(key)]
	return ok
}

// Canonicalize rewrites aliases to field names.
func (p Params) Canonicalize(fields []Field) {
	for _, field := range fields {
		for _, alias := range field.Aliases {
			aliasKey := strings.ToLower(alias)
			if value, ok := p[aliasKey]; ok {
				if _, set := p[strings.ToLower(field.Name)]; !set {
					p[strings.ToLower(field.Name)] = value
				}
				delete(p, aliasKey)
			}
		}
	}
}

// Missing lists required fields that are neither set nor backed by a file.
func (p Params) Missing(fields []Field) []Field {
	var out []Field
	for _, field := range fields {
		if !field.Required || p.Get(field.Name) != "" {
			continue
		}
		if field.FileAlt != "" && p.Get(field.FileAlt) != "" {
			continue
		}
		out = append(out, field)
	}
	return out
}

// ParseArgs splits key=value tokens.
func ParseArgs(tokens []string) (Params, error) {
	params := Params{}
	for _, token := range tokens {
		parts := strings.SplitN(token, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid param: %s", token)
		}
		params.Set(parts[0], parts[1])
	}
	return params, nil
}

func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file failed: %w", err)
	}
	return string(data), nil
}

// valueOrFile returns params[key], or the contents of params[fileKey].
func valueOrFile(params Params, key, fileKey string) (string, bool, error) {
	if params.Has(key) {
		return params.Get(key), true, nil
	}
	if fileKey != "" && params.Get(fileKey) != "" {
		data, err := ReadFile(params.Get(fileKey))
		return data, err == nil, err
	}
	return "", false, nil
}

func parseJSONFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file failed: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s failed: %w", path, err)
	}
	return nil
}
