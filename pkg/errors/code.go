package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 13000-13099: Run admission errors
// 13100-13199: Compile & execution errors
// 13200-13299: Workspace & isolation errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Run Errors (13000-13999) ==========

	// Admission (13000-13099)
	LanguageNotSupported ErrorCode = 13003
	SubmitTooFrequently  ErrorCode = 13004
	RunConcurrencyLimit  ErrorCode = 13005
	CodeTooLarge         ErrorCode = 13006

	// Compile & execution (13100-13199)
	JudgeSystemError  ErrorCode = 13101
	CompilationError  ErrorCode = 13102
	RuntimeError      ErrorCode = 13103
	TimeLimitExceeded ErrorCode = 13104
	RunFault          ErrorCode = 13107

	// Workspace & isolation (13200-13299)
	WorkspaceError         ErrorCode = 13200
	WorkspaceCleanupFailed ErrorCode = 13201
	IsolationUnitError     ErrorCode = 13202
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Cache
	CacheError: "Cache operation failed",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Admission
	LanguageNotSupported: "Programming language not supported",
	SubmitTooFrequently:  "Running too frequently, please wait",
	RunConcurrencyLimit:  "Concurrent run limit reached for this session, please try again later",
	CodeTooLarge:         "Code is too large",

	// Compile & execution
	JudgeSystemError:  "Runner system error",
	CompilationError:  "Compilation error",
	RuntimeError:      "Runtime error",
	TimeLimitExceeded: "Time limit exceeded",
	RunFault:          "Process could not be started",

	// Workspace & isolation
	WorkspaceError:         "Failed to prepare workspace",
	WorkspaceCleanupFailed: "Failed to remove workspace",
	IsolationUnitError:     "Isolation unit operation failed",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound:
		return 404
	case c == TooManyRequests, c == SubmitTooFrequently, c == RunConcurrencyLimit:
		return 429
	case c == ServiceUnavailable:
		return 503
	case c == Timeout:
		return 504
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == LanguageNotSupported, c == CodeTooLarge:
		return 400
	case c == CompilationError:
		return 422
	default:
		return 500
	}
}
