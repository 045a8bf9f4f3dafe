package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("VALIDATION_ERROR", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Stream was modified by another writer")
	ErrInvalidState        = NewDomainError("STATE_ERROR", "Transition not legal for current status")
	ErrUnbalancedEntry     = NewDomainError("UNBALANCED_ENTRY", "Journal entry debits do not equal credits")
	ErrOverAllocation      = NewDomainError("ALLOCATION_ERROR", "Allocation exceeds invoice balance or payment remainder")
	ErrMixedCurrencies     = NewDomainError("MIXED_CURRENCIES", "Lines use more than one currency")
)
