// Package response maps the engine's error taxonomy to stable codes so
// clients can branch on machine-readable values instead of parsing text.
package response

const (
	CodeOK              = "ok"
	CodeNotFound        = "not_found"
	CodeIneligible      = "ineligible_vote"
	CodeInvalidOption   = "invalid_option"
	CodeValidation      = "validation_failed"
	CodeConflict        = "storage_conflict"
	CodeForbidden       = "forbidden"
	CodeUnauthorized    = "unauthorized"
	CodeInternalFailure = "internal_failure"
)

// Error is the JSON error body every handler returns.
type Error struct {
	Code   string `json:"code"`
	Reason string `json:"reason,omitempty"`
}

func NewError(code, reason string) Error {
	return Error{Code: code, Reason: reason}
}
