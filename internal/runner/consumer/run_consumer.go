// Package consumer runs requests arriving on Kafka and publishes their results.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bojmock/internal/common/mq"
	"bojmock/internal/runner/governor"
	"bojmock/internal/runner/model"
	"bojmock/internal/runner/service"
	appErr "bojmock/pkg/errors"
	"bojmock/pkg/utils/contextkey"
	"bojmock/pkg/utils/logger"

	"go.uber.org/zap"
)

// RunMessage is the request payload on the request topic.
type RunMessage struct {
	RequestID string `json:"request_id"`
	model.RunRequest
}

// ResultMessage is published to the result topic for every decoded request.
type ResultMessage struct {
	RequestID     string             `json:"request_id"`
	SessionID     string             `json:"session_id"`
	ParticipantID string             `json:"participant_id"`
	RunID         string             `json:"run_id,omitempty"`
	Cases         []model.CaseResult `json:"cases,omitempty"`
	AllPassed     bool               `json:"all_passed"`
	ErrorCode     int                `json:"error_code,omitempty"`
	ErrorMessage  string             `json:"error_message,omitempty"`
	Details       map[string]any     `json:"details,omitempty"`
	FinishedAt    int64              `json:"finished_at"`
}

// Config holds consumer dependencies.
type Config struct {
	Runs        service.Executor
	Governor    *governor.Governor
	Publisher   mq.Producer
	ResultTopic string
}

// RunConsumer handles run request messages.
type RunConsumer struct {
	runs        service.Executor
	governor    *governor.Governor
	publisher   mq.Producer
	resultTopic string
}

// NewRunConsumer creates a new consumer.
func NewRunConsumer(cfg Config) (*RunConsumer, error) {
	if cfg.Runs == nil {
		return nil, fmt.Errorf("run service is required")
	}
	if cfg.Governor == nil {
		return nil, fmt.Errorf("governor is required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if cfg.ResultTopic == "" {
		return nil, fmt.Errorf("result topic is required")
	}
	return &RunConsumer{
		runs:        cfg.Runs,
		governor:    cfg.Governor,
		publisher:   cfg.Publisher,
		resultTopic: cfg.ResultTopic,
	}, nil
}

// pendingResultHeader keeps an encoded result on the message between
// delivery attempts so a retried publish does not run the code again.
const pendingResultHeader = "x-pending-result"

// HandleMessage runs one request. Undecodable messages are dropped; every
// other outcome, including rejections, is published as a result. Only a
// failed publish is returned so the queue retries it.
func (h *RunConsumer) HandleMessage(ctx context.Context, msg *mq.Message) error {
	if msg == nil {
		return nil
	}
	if pending, ok := msg.GetHeader(pendingResultHeader); ok {
		return h.publish(ctx, msg, []byte(pending), msg.Key)
	}
	var payload RunMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		logger.Warn(ctx, "drop undecodable run message", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	if payload.RequestID == "" {
		payload.RequestID = msg.ID
	}
	msg.ID = payload.RequestID
	ctx = context.WithValue(ctx, contextkey.RequestID, payload.RequestID)

	result := ResultMessage{
		RequestID:     payload.RequestID,
		SessionID:     payload.SessionID,
		ParticipantID: payload.ParticipantID,
	}
	runErr := h.governor.Guard(ctx, payload.SessionID, payload.ParticipantID, func(ctx context.Context) error {
		res, err := h.runs.Execute(ctx, payload.RunRequest)
		if err != nil {
			return err
		}
		result.RunID = res.RunID
		result.Cases = res.Cases
		result.AllPassed = res.AllPassed()
		return nil
	})
	if runErr != nil {
		e := appErr.GetError(runErr)
		result.ErrorCode = int(e.Code)
		result.ErrorMessage = e.Error()
		if len(e.Details) > 0 {
			result.Details = e.Details
		}
		logger.Info(ctx, "run request failed", zap.Int("code", result.ErrorCode), zap.String("message", result.ErrorMessage))
	}
	result.FinishedAt = time.Now().Unix()

	body, err := json.Marshal(result)
	if err != nil {
		logger.Error(ctx, "encode run result failed", zap.Error(err))
		return nil
	}
	msg.Key = result.ParticipantID
	return h.publish(ctx, msg, body, result.ParticipantID)
}

func (h *RunConsumer) publish(ctx context.Context, in *mq.Message, body []byte, key string) error {
	out := mq.NewMessage(body)
	out.ID = in.ID
	out.Key = key
	if err := h.publisher.Publish(ctx, h.resultTopic, out); err != nil {
		in.SetHeader(pendingResultHeader, string(body))
		logger.Warn(ctx, "publish run result failed", zap.String("topic", h.resultTopic), zap.Error(err))
		return appErr.Wrapf(err, appErr.ServiceUnavailable, "publish run result failed")
	}
	return nil
}
