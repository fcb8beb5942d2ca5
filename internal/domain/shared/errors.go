package shared

// DomainError is an error with a stable machine-readable code. Services
// return these for failures a caller can act on; the HTTP layer maps the
// code to a status, so codes are contract and messages are not.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError with the same code, so errors.Is works against
// the sentinels below even for separately constructed instances.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError creates a domain error with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Sentinel errors for the failure modes every aggregate shares. The carrier
// pair distinguishes a definitive rejection (retrying the same request will
// fail again) from a transient outage (retrying may succeed).
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrCarrierRejected     = NewDomainError("CARRIER_REJECTED", "Carrier rejected the request")
	ErrCarrierUnavailable  = NewDomainError("CARRIER_UNAVAILABLE", "Carrier temporarily unavailable")
)
