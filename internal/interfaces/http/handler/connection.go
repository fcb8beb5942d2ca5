package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/application/shipping"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/domain/carrier"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/interfaces/http/dto"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/interfaces/http/middleware"
)

// ConnectionHandler handles carrier connection API endpoints
type ConnectionHandler struct {
	BaseHandler
	connectionService *shipping.ConnectionService
	router            *shipping.DirectCarrierRouter
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(connectionService *shipping.ConnectionService, router *shipping.DirectCarrierRouter) *ConnectionHandler {
	return &ConnectionHandler{
		connectionService: connectionService,
		router:            router,
	}
}

// handleCarrierError maps carrier domain errors to HTTP responses. Vendor
// failures surface as 502 since the fault is upstream, not in the request.
func handleCarrierError(h *BaseHandler, c *gin.Context, err error) {
	switch {
	case errors.Is(err, carrier.ErrConnectionNotFound):
		h.NotFound(c, "Carrier connection not found")
	case errors.Is(err, carrier.ErrUnknownNetwork):
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, err.Error())
	case errors.Is(err, carrier.ErrInvalidCredential):
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, err.Error())
	case errors.Is(err, carrier.ErrAuthFailed):
		h.Error(c, http.StatusBadGateway, dto.ErrCodeCarrierAuth, "Carrier rejected the stored credentials")
	case errors.Is(err, carrier.ErrVendorRequestFailed),
		errors.Is(err, carrier.ErrVendorInvalidResponse):
		h.Error(c, http.StatusBadGateway, dto.ErrCodeCarrierRejected, err.Error())
	case errors.Is(err, carrier.ErrNetworkUnavailable):
		h.Error(c, http.StatusBadGateway, dto.ErrCodeCarrierUnavailable, err.Error())
	default:
		h.HandleError(c, err)
	}
}

// connectionID parses the :id path parameter and tags the request context so
// tracing and metrics middleware can pick the connection up.
func connectionID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, err
	}
	c.Set(middleware.ContextConnectionIDKey, id.String())
	return id, nil
}

// CreateConnection godoc
// @ID           createConnection
// @Summary      Create a carrier connection
// @Description  Stores OAuth credentials for a direct carrier account. The connection starts disconnected until tested.
// @Tags         connections
// @Accept       json
// @Produce      json
// @Param        request body shipping.CreateConnectionRequest true "Connection details"
// @Success      201 {object} APIResponse[shipping.ConnectionResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /connections [post]
func (h *ConnectionHandler) CreateConnection(c *gin.Context) {
	var req shipping.CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	conn, err := h.connectionService.CreateConnection(c.Request.Context(), &req)
	if err != nil {
		handleCarrierError(&h.BaseHandler, c, err)
		return
	}

	c.Set(middleware.ContextNetworkKey, string(conn.Network))
	h.Created(c, shipping.ToConnectionResponse(conn))
}

// ListConnections godoc
// @ID           listConnections
// @Summary      List carrier connections
// @Description  Lists stored connections, optionally filtered by network
// @Tags         connections
// @Produce      json
// @Param        network query string false "Filter by network" Enums(ups, fedex)
// @Success      200 {object} APIResponse[[]shipping.ConnectionResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /connections [get]
func (h *ConnectionHandler) ListConnections(c *gin.Context) {
	network := c.Query("network")
	if network != "" {
		c.Set(middleware.ContextNetworkKey, network)
	}

	conns, err := h.connectionService.ListConnections(c.Request.Context(), network)
	if err != nil {
		handleCarrierError(&h.BaseHandler, c, err)
		return
	}

	responses := make([]shipping.ConnectionResponse, 0, len(conns))
	for i := range conns {
		responses = append(responses, shipping.ToConnectionResponse(&conns[i]))
	}
	h.Success(c, responses)
}

// GetConnection godoc
// @ID           getConnection
// @Summary      Get a carrier connection
// @Description  Retrieves a stored connection by ID. The client secret is never returned.
// @Tags         connections
// @Produce      json
// @Param        id path string true "Connection ID" format(uuid)
// @Success      200 {object} APIResponse[shipping.ConnectionResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /connections/{id} [get]
func (h *ConnectionHandler) GetConnection(c *gin.Context) {
	id, err := connectionID(c)
	if err != nil {
		h.BadRequest(c, "Invalid connection ID")
		return
	}

	conn, err := h.connectionService.GetConnection(c.Request.Context(), id)
	if err != nil {
		handleCarrierError(&h.BaseHandler, c, err)
		return
	}

	c.Set(middleware.ContextNetworkKey, string(conn.Network))
	h.Success(c, shipping.ToConnectionResponse(conn))
}

// UpdateConnection godoc
// @ID           updateConnection
// @Summary      Update a carrier connection
// @Description  Applies a partial update. Changing any credential field drops the connection back to disconnected until re-tested.
// @Tags         connections
// @Accept       json
// @Produce      json
// @Param        id path string true "Connection ID" format(uuid)
// @Param        request body shipping.UpdateConnectionRequest true "Fields to update"
// @Success      200 {object} APIResponse[shipping.ConnectionResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /connections/{id} [put]
func (h *ConnectionHandler) UpdateConnection(c *gin.Context) {
	id, err := connectionID(c)
	if err != nil {
		h.BadRequest(c, "Invalid connection ID")
		return
	}

	var req shipping.UpdateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	conn, err := h.connectionService.UpdateConnection(c.Request.Context(), id, &req)
	if err != nil {
		handleCarrierError(&h.BaseHandler, c, err)
		return
	}

	c.Set(middleware.ContextNetworkKey, string(conn.Network))
	h.Success(c, shipping.ToConnectionResponse(conn))
}

// DeleteConnection godoc
// @ID           deleteConnection
// @Summary      Delete a carrier connection
// @Description  Removes a stored connection and its credentials
// @Tags         connections
// @Param        id path string true "Connection ID" format(uuid)
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Router       /connections/{id} [delete]
func (h *ConnectionHandler) DeleteConnection(c *gin.Context) {
	id, err := connectionID(c)
	if err != nil {
		h.BadRequest(c, "Invalid connection ID")
		return
	}

	if err := h.connectionService.DeleteConnection(c.Request.Context(), id); err != nil {
		handleCarrierError(&h.BaseHandler, c, err)
		return
	}
	h.NoContent(c)
}

// TestConnection godoc
// @ID           testConnection
// @Summary      Test a carrier connection
// @Description  Runs a no-cost connectivity self-test: acquires a token and validates a fixed reference address. A passing test marks the connection as connected.
// @Tags         connections
// @Produce      json
// @Param        id path string true "Connection ID" format(uuid)
// @Success      200 {object} APIResponse[carrier.ConnectionTestResult]
// @Failure      404 {object} ErrorResponse
// @Router       /connections/{id}/test [post]
func (h *ConnectionHandler) TestConnection(c *gin.Context) {
	id, err := connectionID(c)
	if err != nil {
		h.BadRequest(c, "Invalid connection ID")
		return
	}

	result, err := h.router.TestConnection(c.Request.Context(), id)
	if err != nil {
		handleCarrierError(&h.BaseHandler, c, err)
		return
	}
	h.Success(c, result)
}

// RegisterRoutes registers connection management routes
func (h *ConnectionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	connections := rg.Group("/connections")
	{
		connections.POST("", h.CreateConnection)
		connections.GET("", h.ListConnections)
		connections.GET("/:id", h.GetConnection)
		connections.PUT("/:id", h.UpdateConnection)
		connections.DELETE("/:id", h.DeleteConnection)
		connections.POST("/:id/test", h.TestConnection)
	}
}
