// Package model defines the run request and result payloads shared by the
// runner service and its HTTP, Kafka and CLI hosts.
package model

// CaseInput is one stdin payload with an optional expected output.
type CaseInput struct {
	Input    string  `json:"input"`
	Expected *string `json:"expected,omitempty"`
}

// RunRequest asks the runner to compile a source and run it against cases.
// Session, participant and problem ids only name the workspace.
type RunRequest struct {
	SessionID     string      `json:"session_id"`
	ParticipantID string      `json:"participant_id"`
	ProblemID     string      `json:"problem_id"`
	LanguageID    string      `json:"language"`
	SourceCode    string      `json:"code"`
	Cases         []CaseInput `json:"testcases"`
}

// CaseResult is the graded outcome of one case.
type CaseResult struct {
	Input    string  `json:"input"`
	Expected *string `json:"expected"`
	Stdout   string  `json:"stdout"`
	Stderr   string  `json:"stderr"`
	ExitCode *int    `json:"exitCode"`
	TimedOut bool    `json:"timedOut"`
	// Pass is nil when no expected output was supplied.
	Pass   *bool `json:"pass"`
	TimeMs int64 `json:"timeMs"`
}

// RunResult holds the case results of one run in request order.
type RunResult struct {
	RunID string       `json:"run_id"`
	Cases []CaseResult `json:"per_case_results"`
}

// AllPassed reports whether every case was graded and passed.
func (r RunResult) AllPassed() bool {
	if len(r.Cases) == 0 {
		return false
	}
	for _, c := range r.Cases {
		if c.Pass == nil || !*c.Pass {
			return false
		}
	}
	return true
}

// AnyTimedOut reports whether at least one case hit the run timeout.
func (r RunResult) AnyTimedOut() bool {
	for _, c := range r.Cases {
		if c.TimedOut {
			return true
		}
	}
	return false
}
