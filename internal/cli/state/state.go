// Package state persists the ids the CLI fills into run requests.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Defaults are applied to run commands that omit them.
type Defaults struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
	ProblemID     string `json:"problem_id"`
	Language      string `json:"language"`
}

// Fresh returns the defaults of a new CLI user.
func Fresh() Defaults {
	return Defaults{SessionID: "cli", ParticipantID: "cli", ProblemID: "scratch"}
}

func Load(path string) (Defaults, error) {
	st := Fresh()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, fmt.Errorf("read cli state failed: %w", err)
	}
	if len(data) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parse cli state failed: %w", err)
	}
	return st, nil
}

func Save(path string, st Defaults) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cli state dir failed: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cli state failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write cli state failed: %w", err)
	}
	return nil
}

func Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cli state failed: %w", err)
	}
	return nil
}
