package models

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// Error codes
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeDocumentNotFound = "DOCUMENT_NOT_FOUND"
	ErrCodeSlotNotFound     = "SLOT_NOT_FOUND"
	ErrCodeGenerationDenied = "GENERATION_DENIED"
)

// ResolveStatus classifies the outcome of resolving a requested container
// name against a design tree. All outcomes are result values for the UI to
// render, never errors.
type ResolveStatus string

const (
	ResolveResolved           ResolveStatus = "RESOLVED"
	ResolveCaseMismatch       ResolveStatus = "CASE_MISMATCH"
	ResolveEmptyGroup         ResolveStatus = "EMPTY_GROUP"
	ResolveMissingDesignGroup ResolveStatus = "MISSING_DESIGN_GROUP"
	ResolveNoName             ResolveStatus = "NO_NAME"
	ResolveDataLocked         ResolveStatus = "DATA_LOCKED"
)
