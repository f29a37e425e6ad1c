package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	commonmw "bojmock/internal/common/http/middleware"
	"bojmock/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
)

type traceResponse struct {
	TraceID      string `json:"trace_id"`
	RequestID    string `json:"request_id"`
	CtxTraceID   string `json:"ctx_trace_id"`
	CtxRequestID string `json:"ctx_request_id"`
}

func TestTraceContextMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(commonmw.TraceContextMiddleware())
	router.GET("/trace", func(c *gin.Context) {
		traceID, _ := c.Get("trace_id")
		requestID, _ := c.Get("request_id")
		ctx := c.Request.Context()
		c.JSON(http.StatusOK, traceResponse{
			TraceID:      toString(traceID),
			RequestID:    toString(requestID),
			CtxTraceID:   toString(ctx.Value(contextkey.TraceID)),
			CtxRequestID: toString(ctx.Value(contextkey.RequestID)),
		})
	})

	cases := []struct {
		name              string
		headers           map[string]string
		expectedTraceID   string
		expectedRequestID string
	}{
		{
			name: "generate trace and request id",
		},
		{
			name: "preserve incoming ids",
			headers: map[string]string{
				commonmw.TraceIDHeader:   "trace-1",
				commonmw.RequestIDHeader: "req-1",
			},
			expectedTraceID:   "trace-1",
			expectedRequestID: "req-1",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/trace", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			var body traceResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.TraceID == "" || body.RequestID == "" {
				t.Fatalf("expected trace and request id, got %+v", body)
			}
			if body.TraceID != body.CtxTraceID || body.RequestID != body.CtxRequestID {
				t.Fatalf("gin and request context disagree: %+v", body)
			}
			if w.Header().Get(commonmw.TraceIDHeader) != body.TraceID {
				t.Fatalf("trace header = %q, want %q", w.Header().Get(commonmw.TraceIDHeader), body.TraceID)
			}
			if tc.expectedTraceID != "" && body.TraceID != tc.expectedTraceID {
				t.Fatalf("trace id = %q, want %q", body.TraceID, tc.expectedTraceID)
			}
			if tc.expectedRequestID != "" && body.RequestID != tc.expectedRequestID {
				t.Fatalf("request id = %q, want %q", body.RequestID, tc.expectedRequestID)
			}
		})
	}
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
