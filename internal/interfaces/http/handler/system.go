package handler

import (
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	serviceName    = "Carrier Gateway API"
	serviceVersion = "1.0.0"
)

// SystemHandler serves the introspection endpoints under /system.
type SystemHandler struct {
	BaseHandler
	startedAt time.Time
}

// NewSystemHandler creates a SystemHandler anchored at the current time, so
// uptime counts from process start as long as it is constructed during boot.
func NewSystemHandler() *SystemHandler {
	return &SystemHandler{startedAt: time.Now()}
}

// SystemInfoResponse describes the running service.
// @name HandlerSystemInfoResponse
type SystemInfoResponse struct {
	Name       string `json:"name" example:"Carrier Gateway API"`
	Version    string `json:"version" example:"1.0.0"`
	GoVersion  string `json:"go_version" example:"go1.25.5"`
	Uptime     string `json:"uptime" example:"1h30m45s"`
	StartedAt  string `json:"started_at" example:"2026-01-23T12:00:00Z"`
	Goroutines int    `json:"goroutines" example:"42"`
}

// GetSystemInfo godoc
// @ID           getSystemSystemInfo
// @Summary      Get system information
// @Description  Returns service version, uptime, and runtime details
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[SystemInfoResponse]
// @Failure      500 {object} ErrorResponse
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:       serviceName,
		Version:    serviceVersion,
		GoVersion:  runtime.Version(),
		Uptime:     time.Since(h.startedAt).Round(time.Second).String(),
		StartedAt:  h.startedAt.UTC().Format(time.RFC3339),
		Goroutines: runtime.NumGoroutine(),
	})
}

// PingResponse acknowledges a liveness probe.
// @name HandlerPingResponse
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// Ping godoc
// @ID           pingSystem
// @Summary      Ping the API
// @Description  Liveness check that involves no downstream dependencies
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[PingResponse]
// @Router       /system/ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{
		Message:   "pong",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
