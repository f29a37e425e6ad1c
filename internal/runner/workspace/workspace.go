// Package workspace manages the per-run scratch directories under the work root.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	appErr "bojmock/pkg/errors"
)

// IDs name one run's workspace.
type IDs struct {
	SessionID     string
	ParticipantID string
	ProblemID     string
	RunID         string
}

// Name renders <session>_<participant>_<problem>_<run> with each part
// reduced to [A-Za-z0-9_-].
func (ids IDs) Name() string {
	return strings.Join([]string{
		sanitize(ids.SessionID),
		sanitize(ids.ParticipantID),
		sanitize(ids.ProblemID),
		sanitize(ids.RunID),
	}, "_")
}

// Layout creates workspaces under Root.
type Layout struct {
	Root string
}

// NewLayout ensures the work root exists.
func NewLayout(root string) (*Layout, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("work root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve work root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create work root: %w", err)
	}
	return &Layout{Root: abs}, nil
}

// Create makes a fresh directory for one run. An existing directory with the
// same name is an error since run ids are unique.
func (l *Layout) Create(ids IDs) (*Workspace, error) {
	if ids.RunID == "" {
		return nil, appErr.ValidationError("run_id", "required")
	}
	dir := filepath.Join(l.Root, ids.Name())
	if err := os.Mkdir(dir, 0755); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "create workspace failed")
	}
	return &Workspace{Dir: dir}, nil
}

// Workspace is one run's scratch directory.
type Workspace struct {
	Dir string
}

// WriteSource stores the participant source under fileName.
func (w *Workspace) WriteSource(fileName, source string) (string, error) {
	if fileName == "" || filepath.Base(fileName) != fileName {
		return "", appErr.New(appErr.InvalidParams).WithMessage("invalid source file name")
	}
	path := filepath.Join(w.Dir, fileName)
	if err := os.WriteFile(path, []byte(source), 0644); err != nil {
		return "", appErr.Wrapf(err, appErr.WorkspaceError, "write source file failed")
	}
	return path, nil
}

// Remove deletes the workspace and everything in it.
func (w *Workspace) Remove() error {
	if err := os.RemoveAll(w.Dir); err != nil {
		return appErr.Wrapf(err, appErr.WorkspaceCleanupFailed, "remove workspace failed")
	}
	return nil
}

func sanitize(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "none"
	}
	return b.String()
}
