package api

// Error codes returned in the body of failed responses. Clients branch on
// these instead of matching error message text.
const (
	CodeValidation      = "VALIDATION"
	CodeUpstream        = "UPSTREAM"
	CodeEmptyReply      = "EMPTY_REPLY"
	CodeStorage         = "STORAGE"
	CodeOrphanedSession = "ORPHANED_SESSION"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
