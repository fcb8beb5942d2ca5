package dto

import "net/http"

// API error codes, ERR_<CATEGORY>_<DESCRIPTION>. These are part of the
// public contract; clients branch on them, so existing values never change.
const (
	ErrCodeInternal = "ERR_INTERNAL"

	ErrCodeValidation = "ERR_VALIDATION"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"

	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"

	ErrCodeInvalidState = "ERR_INVALID_STATE"
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"

	// Carrier codes cover the upstream vendor failing us: bad stored OAuth
	// credentials, a rejected request, or the vendor being unreachable.
	ErrCodeCarrierAuth        = "ERR_CARRIER_AUTH"
	ErrCodeCarrierRejected    = "ERR_CARRIER_REJECTED"
	ErrCodeCarrierUnavailable = "ERR_CARRIER_UNAVAILABLE"

	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"

	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

var errorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	ErrCodeInvalidState: http.StatusUnprocessableEntity,
	ErrCodeBusinessRule: http.StatusUnprocessableEntity,

	// 502, not 500: the failure is the vendor's, not ours.
	ErrCodeCarrierAuth:        http.StatusBadGateway,
	ErrCodeCarrierRejected:    http.StatusBadGateway,
	ErrCodeCarrierUnavailable: http.StatusBadGateway,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus maps an API error code to its HTTP status. Unknown codes
// fall back to 500.
func GetHTTPStatus(code string) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainErrorCodes maps domain-layer error codes to API error codes. The
// domain layer knows nothing about HTTP, so its codes are bare names.
var domainErrorCodes = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"CARRIER_REJECTED":     ErrCodeCarrierRejected,
	"CARRIER_UNAVAILABLE":  ErrCodeCarrierUnavailable,
}

// NormalizeErrorCode converts a domain error code to its API form. Codes
// already in API form, or unknown ones, come back unchanged.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := domainErrorCodes[code]; ok {
		return apiCode
	}
	return code
}
