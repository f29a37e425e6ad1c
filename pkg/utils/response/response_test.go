package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"bojmock/pkg/errors"

	"github.com/gin-gonic/gin"
)

func render(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set("trace_id", "trace-1")
	h(c)

	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v (%s)", err, w.Body.String())
	}
	return w, body
}

func TestSuccessEnvelope(t *testing.T) {
	w, body := render(t, func(c *gin.Context) { Success(c, map[string]string{"run_id": "r1"}) })
	if w.Code != http.StatusOK || body.Code != errors.Success || body.TraceID != "trace-1" {
		t.Fatalf("unexpected envelope: %d %+v", w.Code, body)
	}
}

func TestErrorEnvelope(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   errors.ErrorCode
	}{
		{"compile", errors.New(errors.CompilationError).WithDetail("stderr", "x"), http.StatusUnprocessableEntity, errors.CompilationError},
		{"rate", errors.New(errors.SubmitTooFrequently), http.StatusTooManyRequests, errors.SubmitTooFrequently},
		{"foreign", http.ErrHandlerTimeout, http.StatusInternalServerError, errors.InternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := render(t, func(c *gin.Context) { Error(c, tt.err) })
			if w.Code != tt.status || body.Code != tt.code {
				t.Fatalf("got %d/%d, want %d/%d", w.Code, body.Code, tt.status, tt.code)
			}
		})
	}

	_, body := render(t, func(c *gin.Context) { BadRequest(c, "language is required") })
	if body.Code != errors.InvalidParams || body.Message != "language is required" {
		t.Fatalf("unexpected bad request body: %+v", body)
	}
}
