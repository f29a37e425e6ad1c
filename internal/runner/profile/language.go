// Package profile defines the language catalog used by the runner.
package profile

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

// Command is a program with its argument vector.
// In YAML it is either a command line string or a {program, args} mapping.
type Command struct {
	Program string   `yaml:"program"`
	Args    []string `yaml:"args"`
}

// ParseCommand splits a shell-like command line into a Command.
func ParseCommand(line string) (Command, error) {
	parts, err := shlex.Split(line)
	if err != nil {
		return Command{}, fmt.Errorf("parse command %q: %w", line, err)
	}
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	return Command{Program: parts[0], Args: parts[1:]}, nil
}

// UnmarshalYAML accepts both the string and the mapping form.
func (c *Command) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		cmd, err := ParseCommand(value.Value)
		if err != nil {
			return err
		}
		*c = cmd
		return nil
	}
	type plain Command
	var out plain
	if err := value.Decode(&out); err != nil {
		return err
	}
	*c = Command(out)
	return nil
}

// Argv returns program followed by args.
func (c Command) Argv() []string {
	out := make([]string, 0, len(c.Args)+1)
	out = append(out, c.Program)
	return append(out, c.Args...)
}

// String renders the command for logs.
func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

func (c Command) clone() Command {
	return Command{Program: c.Program, Args: append([]string(nil), c.Args...)}
}

// LanguageSpec defines how to compile and run a language.
type LanguageSpec struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	SourceFile string `yaml:"sourceFile"`
	// Compile is nil for interpreted languages.
	Compile *Command `yaml:"compile"`
	Run     Command  `yaml:"run"`
	// Container names the long-lived isolation unit used in isolated mode.
	Container string `yaml:"container"`
	// Image is used when the isolation unit has to be created.
	Image string `yaml:"image"`
}

// Compiled reports whether the language has a compile step.
func (s LanguageSpec) Compiled() bool {
	return s.Compile != nil
}

func (s LanguageSpec) clone() LanguageSpec {
	out := s
	out.Run = s.Run.clone()
	if s.Compile != nil {
		compile := s.Compile.clone()
		out.Compile = &compile
	}
	return out
}

func (s LanguageSpec) validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("language id is required")
	}
	if strings.TrimSpace(s.SourceFile) == "" {
		return fmt.Errorf("language %s: source file is required", s.ID)
	}
	if strings.ContainsAny(s.SourceFile, `/\`) {
		return fmt.Errorf("language %s: source file must be a bare file name", s.ID)
	}
	if s.Run.Program == "" {
		return fmt.Errorf("language %s: run command is required", s.ID)
	}
	if s.Compile != nil && s.Compile.Program == "" {
		return fmt.Errorf("language %s: compile command is empty", s.ID)
	}
	return nil
}

// DefaultCatalog returns the built-in language catalog.
func DefaultCatalog() []LanguageSpec {
	return []LanguageSpec{
		{
			ID:         "py",
			Name:       "Python",
			SourceFile: "main.py",
			Run:        Command{Program: "python3", Args: []string{"main.py"}},
			Container:  "boj-mock-python",
			Image:      "python:3.11-alpine",
		},
		{
			ID:         "js",
			Name:       "JavaScript",
			SourceFile: "main.js",
			Run:        Command{Program: "node", Args: []string{"main.js"}},
			Container:  "boj-mock-node",
			Image:      "node:20-alpine",
		},
		{
			ID:         "c",
			Name:       "C",
			SourceFile: "main.c",
			Compile:    &Command{Program: "gcc", Args: []string{"-O2", "-std=c11", "main.c", "-o", "main"}},
			Run:        Command{Program: "./main"},
			Container:  "boj-mock-c",
			Image:      "gcc:13",
		},
		{
			ID:         "cpp",
			Name:       "C++",
			SourceFile: "main.cpp",
			Compile:    &Command{Program: "g++", Args: []string{"-O2", "-std=gnu++20", "main.cpp", "-o", "main"}},
			Run:        Command{Program: "./main"},
			Container:  "boj-mock-cpp",
			Image:      "gcc:13",
		},
		{
			ID:         "java",
			Name:       "Java",
			SourceFile: "Main.java",
			Compile:    &Command{Program: "javac", Args: []string{"Main.java"}},
			Run:        Command{Program: "java", Args: []string{"Main"}},
			Container:  "boj-mock-java",
			Image:      "eclipse-temurin:21-jdk",
		},
		{
			ID:         "kt",
			Name:       "Kotlin",
			SourceFile: "Main.kt",
			Compile:    &Command{Program: "kotlinc", Args: []string{"Main.kt", "-include-runtime", "-d", "main.jar"}},
			Run:        Command{Program: "java", Args: []string{"-jar", "main.jar"}},
			Container:  "boj-mock-kotlin",
			Image:      "zenika/kotlin:latest",
		},
	}
}

// ContainerEnvVars maps built-in language ids to the environment variables
// that rename their isolation containers.
var ContainerEnvVars = map[string]string{
	"py":   "DOCKER_PY_CONTAINER",
	"js":   "DOCKER_NODE_CONTAINER",
	"c":    "DOCKER_C_CONTAINER",
	"cpp":  "DOCKER_CPP_CONTAINER",
	"java": "DOCKER_JAVA_CONTAINER",
	"kt":   "DOCKER_KOTLIN_CONTAINER",
}

// OverrideContainers replaces the container of every language named in
// containers.
func OverrideContainers(specs []LanguageSpec, containers map[string]string) []LanguageSpec {
	out := make([]LanguageSpec, len(specs))
	for i, s := range specs {
		out[i] = s.clone()
		if name, ok := containers[s.ID]; ok && name != "" {
			out[i].Container = name
		}
	}
	return out
}
