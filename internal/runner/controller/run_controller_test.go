package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"bojmock/internal/runner/controller"
	"bojmock/internal/runner/governor"
	"bojmock/internal/runner/model"
	"bojmock/internal/runner/profile"
	"bojmock/internal/testutil"
	appErr "bojmock/pkg/errors"
	"bojmock/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

type stubExecutor struct {
	mu     sync.Mutex
	calls  []model.RunRequest
	result model.RunResult
	err    error
	block  chan struct{}
}

func (s *stubExecutor) Execute(ctx context.Context, req model.RunRequest) (model.RunResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if s.block != nil {
		<-s.block
	}
	return s.result, s.err
}

func (s *stubExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newRouter(t *testing.T, exec *stubExecutor, cfg governor.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg, err := profile.NewRegistry(profile.DefaultCatalog())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	gov, err := governor.New(cfg, governor.NewMemoryStore())
	if err != nil {
		t.Fatalf("governor: %v", err)
	}
	r := gin.New()
	controller.RegisterRoutes(r, controller.NewRunController(exec, gov, reg))
	return r
}

func postRun(r http.Handler, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validBody(session, participant string) map[string]interface{} {
	return map[string]interface{}{
		"session_id":     session,
		"participant_id": participant,
		"problem_id":     "1000",
		"language":       "py",
		"code":           "print(input())",
		"testcases":      []map[string]interface{}{{"input": "1", "expected": "1"}},
	}
}

type runEnvelope struct {
	Code appErr.ErrorCode       `json:"code"`
	Data controller.RunResponse `json:"data"`
}

func TestCreateRunSuccess(t *testing.T) {
	pass := true
	exec := &stubExecutor{result: model.RunResult{
		RunID: "run-1",
		Cases: []model.CaseResult{{Input: "1", Expected: testutil.Ptr("1"), Stdout: "1", ExitCode: testutil.Ptr(0), Pass: &pass}},
	}}
	r := newRouter(t, exec, governor.Config{})

	w := postRun(r, validBody("s1", "p1"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var env runEnvelope
	testutil.MustUnmarshalJSON(t, w.Body.Bytes(), &env)
	testutil.AssertEqual(t, env.Code, appErr.Success)
	testutil.AssertEqual(t, env.Data.RunID, "run-1")
	testutil.AssertTrue(t, env.Data.AllPassed, "all_passed should be set")

	got := exec.calls[0]
	testutil.AssertEqual(t, got.SessionID, "s1")
	testutil.AssertEqual(t, got.LanguageID, "py")
	testutil.AssertEqual(t, *got.Cases[0].Expected, "1")
}

func TestCreateRunRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]interface{})
		status int
		code   appErr.ErrorCode
	}{
		{name: "unknown_language", mutate: func(b map[string]interface{}) { b["language"] = "cobol" }, status: http.StatusBadRequest, code: appErr.LanguageNotSupported},
		{name: "missing_session", mutate: func(b map[string]interface{}) { b["session_id"] = " " }, status: http.StatusBadRequest, code: appErr.InvalidParams},
		{name: "missing_problem", mutate: func(b map[string]interface{}) { delete(b, "problem_id") }, status: http.StatusBadRequest, code: appErr.InvalidParams},
		{name: "missing_code", mutate: func(b map[string]interface{}) { delete(b, "code") }, status: http.StatusBadRequest, code: appErr.InvalidParams},
		{name: "empty_cases", mutate: func(b map[string]interface{}) { b["testcases"] = []interface{}{} }, status: http.StatusBadRequest, code: appErr.InvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &stubExecutor{}
			r := newRouter(t, exec, governor.Config{})
			body := validBody("s1", "p1")
			tt.mutate(body)

			w := postRun(r, body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			var resp response.Response
			testutil.MustUnmarshalJSON(t, w.Body.Bytes(), &resp)
			testutil.AssertEqual(t, resp.Code, tt.code)
			testutil.AssertEqual(t, exec.callCount(), 0)
		})
	}
}

func TestCreateRunRateLimited(t *testing.T) {
	exec := &stubExecutor{result: model.RunResult{RunID: "r"}}
	r := newRouter(t, exec, governor.Config{MinInterval: time.Hour})

	if w := postRun(r, validBody("s1", "p1")); w.Code != http.StatusOK {
		t.Fatalf("first run status = %d", w.Code)
	}
	w := postRun(r, validBody("s1", "p1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	var resp response.Response
	testutil.MustUnmarshalJSON(t, w.Body.Bytes(), &resp)
	testutil.AssertEqual(t, resp.Code, appErr.SubmitTooFrequently)
	testutil.AssertEqual(t, exec.callCount(), 1)
}

func TestCreateRunConcurrencyCeiling(t *testing.T) {
	exec := &stubExecutor{result: model.RunResult{RunID: "r"}, block: make(chan struct{})}
	r := newRouter(t, exec, governor.Config{MaxPerSession: 1})

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- postRun(r, validBody("s1", "p1")) }()
	for exec.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	w := postRun(r, validBody("s1", "p2"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	var resp response.Response
	testutil.MustUnmarshalJSON(t, w.Body.Bytes(), &resp)
	testutil.AssertEqual(t, resp.Code, appErr.RunConcurrencyLimit)

	close(exec.block)
	if first := <-done; first.Code != http.StatusOK {
		t.Fatalf("first run status = %d", first.Code)
	}
	if w := postRun(r, validBody("s1", "p3")); w.Code != http.StatusOK {
		t.Fatalf("slot not released, status = %d", w.Code)
	}
}

func TestCreateRunCompileError(t *testing.T) {
	exec := &stubExecutor{err: appErr.New(appErr.CompilationError).WithMessage("main.py: bad").WithDetail("stderr", "main.py: bad")}
	r := newRouter(t, exec, governor.Config{})

	w := postRun(r, validBody("s1", "p1"))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	var resp response.Response
	testutil.MustUnmarshalJSON(t, w.Body.Bytes(), &resp)
	testutil.AssertEqual(t, resp.Code, appErr.CompilationError)
	details, ok := resp.Details.(map[string]interface{})
	if !ok || details["stderr"] != "main.py: bad" {
		t.Fatalf("compile diagnostics missing: %#v", resp.Details)
	}
}

func TestLanguagesAndHealth(t *testing.T) {
	r := newRouter(t, &stubExecutor{}, governor.Config{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/languages", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("languages status = %d", w.Code)
	}
	var env struct {
		Data []controller.LanguageItem `json:"data"`
	}
	testutil.MustUnmarshalJSON(t, w.Body.Bytes(), &env)
	if len(env.Data) != 6 {
		t.Fatalf("expected 6 languages, got %d", len(env.Data))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	testutil.AssertEqual(t, w.Code, http.StatusOK)
}
