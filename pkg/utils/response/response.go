// Package response writes the JSON envelope shared by every runner endpoint.
package response

import (
	"net/http"

	"bojmock/pkg/errors"
	"bojmock/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response is the envelope: code Success (10000) with data, or an error code with message
// and optional details such as compiler diagnostics.
type Response struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Data    interface{}      `json:"data,omitempty"`
	Details interface{}      `json:"details,omitempty"`
	TraceID string           `json:"trace_id,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    errors.Success,
		Message: errors.Success.Message(),
		Data:    data,
		TraceID: c.GetString("trace_id"),
	})
}

// Error renders err with the status of its code. Server faults are logged
// with the creation stack; rejections are logged at warn.
func Error(c *gin.Context, err error) {
	e := errors.GetError(err)
	status := e.Code.HTTPStatus()

	ctx := c.Request.Context()
	fields := []zap.Field{
		zap.Int("code", int(e.Code)),
		zap.String("message", e.Error()),
		zap.Int("status", status),
	}
	if status >= http.StatusInternalServerError {
		logger.Error(ctx, "request failed", append(fields, zap.String("stack", e.Stack))...)
	} else {
		logger.Warn(ctx, "request rejected", fields...)
	}

	body := Response{Code: e.Code, Message: e.Error(), TraceID: c.GetString("trace_id")}
	if len(e.Details) > 0 {
		body.Details = e.Details
	}
	c.JSON(status, body)
}

// BadRequest rejects the request as InvalidParams with message.
func BadRequest(c *gin.Context, message string) {
	Error(c, errors.New(errors.InvalidParams).WithMessage(message))
}
