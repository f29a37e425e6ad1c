package workspace

import (
	"os"
	"path/filepath"
	"testing"

	appErr "bojmock/pkg/errors"
)

func TestIDsName(t *testing.T) {
	tests := []struct {
		name string
		ids  IDs
		want string
	}{
		{name: "plain", ids: IDs{"s1", "p1", "1000", "r1"}, want: "s1_p1_1000_r1"},
		{name: "traversal", ids: IDs{"../etc", "p/1", "q", "r"}, want: "---etc_p-1_q_r"},
		{name: "empty_parts", ids: IDs{"", "p", "", "r"}, want: "none_p_none_r"},
		{name: "unicode", ids: IDs{"세션", "p", "q", "r"}, want: "--_p_q_r"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ids.Name(); got != tt.want {
				t.Fatalf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWorkspaceLifecycle(t *testing.T) {
	layout, err := NewLayout(filepath.Join(t.TempDir(), "runs"))
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}

	ws, err := layout.Create(IDs{SessionID: "s", ParticipantID: "p", ProblemID: "q", RunID: "r"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if filepath.Dir(ws.Dir) != layout.Root {
		t.Fatalf("workspace %s not under root %s", ws.Dir, layout.Root)
	}

	path, err := ws.WriteSource("main.py", "print(1)\n")
	if err != nil {
		t.Fatalf("WriteSource: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "print(1)\n" {
		t.Fatalf("source not written: %q %v", data, err)
	}

	if err := ws.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Fatalf("workspace still exists: %v", err)
	}
}

func TestCreateRejectsDuplicate(t *testing.T) {
	layout, err := NewLayout(t.TempDir())
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	ids := IDs{SessionID: "s", ParticipantID: "p", ProblemID: "q", RunID: "r"}
	if _, err := layout.Create(ids); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err = layout.Create(ids)
	if appErr.GetCode(err) != appErr.WorkspaceError {
		t.Fatalf("expected workspace error, got %v", err)
	}
}

func TestWriteSourceRejectsPaths(t *testing.T) {
	ws := &Workspace{Dir: t.TempDir()}
	for _, name := range []string{"", "../main.py", "sub/main.py"} {
		if _, err := ws.WriteSource(name, "x"); appErr.GetCode(err) != appErr.InvalidParams {
			t.Fatalf("%q: expected invalid params, got %v", name, err)
		}
	}
}

func TestNewLayoutRequiresRoot(t *testing.T) {
	if _, err := NewLayout("  "); err == nil {
		t.Fatalf("expected error for empty root")
	}
}
