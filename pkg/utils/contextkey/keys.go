package contextkey

// Key is a package-scoped type to avoid context key collisions across packages.
type Key string

const (
	TraceID       Key = "trace_id"
	RequestID     Key = "request_id"
	RunID         Key = "run_id"
	SessionID     Key = "session_id"
	ParticipantID Key = "participant_id"
)
