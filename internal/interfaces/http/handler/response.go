package handler

import "github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/interfaces/http/dto"

// APIResponse mirrors dto.Response with a typed data field. It exists only
// so swag can generate concrete schemas per endpoint; handlers respond with
// dto.Response at runtime.
// @Description Standard API response wrapper with typed data field
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// ErrorResponse is the documented shape of every non-2xx response.
// @Description Standard error response
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}
