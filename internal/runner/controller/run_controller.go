package controller

import (
	"context"
	"strings"

	"bojmock/internal/runner/governor"
	"bojmock/internal/runner/model"
	"bojmock/internal/runner/profile"
	"bojmock/internal/runner/service"
	appErr "bojmock/pkg/errors"
	"bojmock/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// Catalog lists and resolves languages.
type Catalog interface {
	profile.Resolver
	List() []profile.LanguageSpec
}

// RunController handles run HTTP endpoints.
type RunController struct {
	runs      service.Executor
	governor  *governor.Governor
	languages Catalog
}

// NewRunController creates a new RunController.
func NewRunController(runs service.Executor, gov *governor.Governor, languages Catalog) *RunController {
	return &RunController{runs: runs, governor: gov, languages: languages}
}

// Create runs the submitted code against its test cases.
func (h *RunController) Create(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	req.trim()
	if req.SessionID == "" || req.ParticipantID == "" || req.ProblemID == "" || req.LanguageID == "" {
		response.BadRequest(c, "session_id, participant_id, problem_id and language are required")
		return
	}
	if _, err := h.languages.Resolve(req.LanguageID); err != nil {
		response.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.governor.CheckRate(ctx, req.ParticipantID); err != nil {
		response.Error(c, err)
		return
	}
	if len(req.Cases) == 0 {
		response.Error(c, appErr.New(appErr.InvalidParams).WithMessage("at least one test case is required"))
		return
	}

	var result model.RunResult
	err := h.governor.Admit(ctx, req.SessionID, func(ctx context.Context) error {
		var runErr error
		result, runErr = h.runs.Execute(ctx, req.toModel())
		return runErr
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, RunResponse{
		RunID:     result.RunID,
		Cases:     result.Cases,
		AllPassed: result.AllPassed(),
	})
}

// Languages lists the supported languages.
func (h *RunController) Languages(c *gin.Context) {
	specs := h.languages.List()
	out := make([]LanguageItem, 0, len(specs))
	for _, s := range specs {
		out = append(out, LanguageItem{ID: s.ID, Name: s.Name, Compiled: s.Compiled()})
	}
	response.Success(c, out)
}

// RunRequest defines the run payload.
type RunRequest struct {
	SessionID     string            `json:"session_id"`
	ParticipantID string            `json:"participant_id"`
	ProblemID     string            `json:"problem_id"`
	LanguageID    string            `json:"language"`
	SourceCode    string            `json:"code" binding:"required"`
	Cases         []model.CaseInput `json:"testcases"`
}

func (r *RunRequest) trim() {
	r.SessionID = strings.TrimSpace(r.SessionID)
	r.ParticipantID = strings.TrimSpace(r.ParticipantID)
	r.ProblemID = strings.TrimSpace(r.ProblemID)
	r.LanguageID = strings.TrimSpace(r.LanguageID)
}

func (r RunRequest) toModel() model.RunRequest {
	return model.RunRequest{
		SessionID:     r.SessionID,
		ParticipantID: r.ParticipantID,
		ProblemID:     r.ProblemID,
		LanguageID:    r.LanguageID,
		SourceCode:    r.SourceCode,
		Cases:         r.Cases,
	}
}

// RunResponse is returned on success.
type RunResponse struct {
	RunID     string             `json:"run_id"`
	Cases     []model.CaseResult `json:"per_case_results"`
	AllPassed bool               `json:"all_passed"`
}

// LanguageItem describes one catalog entry.
type LanguageItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Compiled bool   `json:"compiled"`
}
