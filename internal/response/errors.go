package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation ErrCode = "VALIDATION_ERROR"
	ErrInvalidID  ErrCode = "INVALID_ID"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrInvalidTransition      ErrCode = "INVALID_TRANSITION"
	ErrDuplicateActiveAttempt ErrCode = "DUPLICATE_ACTIVE_ATTEMPT"
	ErrExpiredWrite           ErrCode = "EXPIRED_WRITE"
	ErrUnknownQuestion        ErrCode = "UNKNOWN_QUESTION"
	ErrScoringFailed          ErrCode = "SCORING_FAILED"

	// ─── Exam config ───────────────────────────────────────────────────
	ErrConfigNotPublished ErrCode = "EXAM_CONFIG_NOT_PUBLISHED"
	ErrConfigNotDraft     ErrCode = "EXAM_CONFIG_NOT_DRAFT"
	ErrNoQuestions        ErrCode = "NO_QUESTIONS"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You are not allowed to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	case ErrInvalidTransition:
		return "This operation is not allowed in the attempt's current state."
	case ErrDuplicateActiveAttempt:
		return "An attempt for this exam is already in progress. Resume it instead."
	case ErrExpiredWrite:
		return "The attempt deadline has passed; the answer was not saved."
	case ErrUnknownQuestion:
		return "The question does not belong to this attempt."
	case ErrScoringFailed:
		return "Scoring failed; the attempt has been flagged for manual review."

	// ─── Exam config ───────────────────────────────────────────────────
	case ErrConfigNotPublished:
		return "This exam is not published."
	case ErrConfigNotDraft:
		return "This exam config is not in DRAFT status."
	case ErrNoQuestions:
		return "This exam has no questions."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
