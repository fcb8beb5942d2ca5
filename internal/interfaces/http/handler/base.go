package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/domain/shared"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/interfaces/http/dto"
)

// RequestIDKey is the context key under which the request ID middleware
// stores the ID.
const RequestIDKey = "X-Request-ID"

// BaseHandler provides the response helpers shared by all handlers. Every
// path funnels through respondError so the envelope and request ID handling
// stay uniform.
type BaseHandler struct{}

func requestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(RequestIDKey)
}

func (h *BaseHandler) respondError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, requestID(c)))
}

// Success sends a 200 with data.
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a 200 with data and pagination meta.
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204.
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with an explicit status code.
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	h.respondError(c, statusCode, code, message)
}

// ErrorWithCode sends an error response, deriving the status from the error
// code mapping.
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.respondError(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400.
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.respondError(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404.
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.respondError(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Unauthorized sends a 401.
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.respondError(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// Forbidden sends a 403.
func (h *BaseHandler) Forbidden(c *gin.Context, message string) {
	h.respondError(c, http.StatusForbidden, dto.ErrCodeForbidden, message)
}

// Conflict sends a 409.
func (h *BaseHandler) Conflict(c *gin.Context, message string) {
	h.respondError(c, http.StatusConflict, dto.ErrCodeConflict, message)
}

// UnprocessableEntity sends a 422 with a caller-chosen code.
func (h *BaseHandler) UnprocessableEntity(c *gin.Context, code, message string) {
	h.respondError(c, http.StatusUnprocessableEntity, code, message)
}

// InternalError sends a 500.
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.respondError(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// TooManyRequests sends a 429.
func (h *BaseHandler) TooManyRequests(c *gin.Context, message string) {
	h.respondError(c, http.StatusTooManyRequests, dto.ErrCodeRateLimited, message)
}

// ValidationError sends a 400 carrying per-field details.
func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		requestID(c),
		details,
	))
}

// HandleError maps an error from the application layer to an HTTP response.
// Domain errors carry their own code, which decides the status; anything
// else is reported as an opaque 500 so internals never leak to clients.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.respondError(c, dto.GetHTTPStatus(code), code, domainErr.Message)
		return
	}

	h.InternalError(c, "An unexpected error occurred")
}

// HandleDomainError is kept as an alias for HandleError; older handlers
// still call it.
func (h *BaseHandler) HandleDomainError(c *gin.Context, err error) {
	h.HandleError(c, err)
}
