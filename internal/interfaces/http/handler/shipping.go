package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/application/shipping"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/domain/carrier"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/infrastructure/telemetry"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/interfaces/http/middleware"
)

// ShippingHandler handles carrier dispatch API endpoints: address validation,
// rating, label purchase and void against a stored connection.
type ShippingHandler struct {
	BaseHandler
	router  *shipping.DirectCarrierRouter
	metrics *telemetry.CarrierMetrics
}

// NewShippingHandler creates a new ShippingHandler
func NewShippingHandler(router *shipping.DirectCarrierRouter) *ShippingHandler {
	return &ShippingHandler{
		router: router,
	}
}

// WithMetrics attaches carrier telemetry to the handler. A nil receiver-side
// metrics field disables recording, so tests can skip it.
func (h *ShippingHandler) WithMetrics(metrics *telemetry.CarrierMetrics) *ShippingHandler {
	h.metrics = metrics
	return h
}

// recordQuotes reports rate-quote outcomes for the request's network
func (h *ShippingHandler) recordQuotes(c *gin.Context, results ...carrier.RateResult) {
	if h.metrics == nil {
		return
	}
	network := c.GetString(middleware.ContextNetworkKey)
	for _, result := range results {
		outcome := telemetry.OutcomeSuccess
		if !result.Success {
			outcome = telemetry.OutcomeFailed
		}
		h.metrics.RecordRateQuote(c.Request.Context(), network, result.ServiceCode, outcome)
	}
}

// resolveConnection parses the :id parameter, loads the connection, and tags
// the request context with connection and network for the telemetry middleware.
func (h *ShippingHandler) resolveConnection(c *gin.Context) (uuid.UUID, bool) {
	id, err := connectionID(c)
	if err != nil {
		h.BadRequest(c, "Invalid connection ID")
		return uuid.Nil, false
	}

	conn, err := h.router.LoadConnection(c.Request.Context(), id)
	if err != nil {
		handleCarrierError(&h.BaseHandler, c, err)
		return uuid.Nil, false
	}

	c.Set(middleware.ContextNetworkKey, string(conn.Network))
	return id, true
}

// ValidateAddress godoc
// @ID           validateAddress
// @Summary      Validate an address
// @Description  Validates an address through the connection's carrier and returns the match status, corrected address and residential/commercial classification.
// @Tags         shipping
// @Accept       json
// @Produce      json
// @Param        id path string true "Connection ID" format(uuid)
// @Param        request body shipping.ValidateAddressRequest true "Address to validate"
// @Success      200 {object} APIResponse[carrier.AddressResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /connections/{id}/validate-address [post]
func (h *ShippingHandler) ValidateAddress(c *gin.Context) {
	id, ok := h.resolveConnection(c)
	if !ok {
		return
	}

	var req shipping.ValidateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.router.ValidateAddress(c.Request.Context(), id, req.Address.ToAddress())
	if err != nil {
		handleCarrierError(&h.BaseHandler, c, err)
		return
	}
	h.Success(c, result)
}

// GetRate godoc
// @ID           getRate
// @Summary      Get a rate quote
// @Description  Quotes a single service level for a package between two addresses
// @Tags         shipping
// @Accept       json
// @Produce      json
// @Param        id path string true "Connection ID" format(uuid)
// @Param        request body shipping.RateRequest true "Rate request"
// @Success      200 {object} APIResponse[carrier.RateResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /connections/{id}/rates [post]
func (h *ShippingHandler) GetRate(c *gin.Context) {
	id, ok := h.resolveConnection(c)
	if !ok {
		return
	}

	var req shipping.RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if req.ServiceCode == "" {
		h.BadRequest(c, "service_code is required")
		return
	}

	result, err := h.router.GetRate(c.Request.Context(), id, req.ServiceCode,
		req.Package.ToPackage(), req.Origin.ToAddress(), req.Destination.ToAddress())
	if err != nil {
		handleCarrierError(&h.BaseHandler, c, err)
		return
	}
	h.recordQuotes(c, *result)
	h.Success(c, result)
}

// RateShop godoc
// @ID           rateShopConnection
// @Summary      Rate shop across services
// @Description  Quotes multiple service levels in one call. Without explicit service codes, the connection's enabled services are quoted. Per-service failures are reported inline, not as request failures.
// @Tags         shipping
// @Accept       json
// @Produce      json
// @Param        id path string true "Connection ID" format(uuid)
// @Param        request body shipping.RateShopRequest true "Rate shop request"
// @Success      200 {object} APIResponse[[]carrier.RateResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /connections/{id}/rateshop [post]
func (h *ShippingHandler) RateShop(c *gin.Context) {
	id, ok := h.resolveConnection(c)
	if !ok {
		return
	}

	var req shipping.RateShopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	results, err := h.router.RateShop(c.Request.Context(), id, req.ServiceCodes,
		req.Package.ToPackage(), req.Origin.ToAddress(), req.Destination.ToAddress())
	if err != nil {
		handleCarrierError(&h.BaseHandler, c, err)
		return
	}
	h.recordQuotes(c, results...)
	h.Success(c, results)
}

// CreateLabel godoc
// @ID           createLabel
// @Summary      Purchase a shipping label
// @Description  Buys a label for the given shipment. The returned shipment_id is the handle required for a later void and must be persisted by the caller.
// @Tags         shipping
// @Accept       json
// @Produce      json
// @Param        id path string true "Connection ID" format(uuid)
// @Param        request body shipping.CreateLabelRequest true "Label request"
// @Success      201 {object} APIResponse[carrier.LabelResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /connections/{id}/labels [post]
func (h *ShippingHandler) CreateLabel(c *gin.Context) {
	id, ok := h.resolveConnection(c)
	if !ok {
		return
	}

	var req shipping.CreateLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	shipReq := req.ToShipmentRequest()
	if err := shipReq.Validate(); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.router.CreateLabel(c.Request.Context(), id, shipReq)
	if err != nil {
		handleCarrierError(&h.BaseHandler, c, err)
		return
	}
	if h.metrics != nil && result.Success {
		h.metrics.RecordLabelCreated(c.Request.Context(),
			c.GetString(middleware.ContextNetworkKey), shipReq.ServiceCode)
	}
	h.Created(c, result)
}

// VoidLabel godoc
// @ID           voidLabel
// @Summary      Void a shipping label
// @Description  Cancels a previously purchased label. The shipment_id is network-specific: the UPS shipment identification number or the FedEx tracking number.
// @Tags         shipping
// @Accept       json
// @Produce      json
// @Param        id path string true "Connection ID" format(uuid)
// @Param        request body shipping.VoidLabelRequest true "Void request"
// @Success      200 {object} APIResponse[carrier.VoidResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /connections/{id}/labels/void [post]
func (h *ShippingHandler) VoidLabel(c *gin.Context) {
	id, ok := h.resolveConnection(c)
	if !ok {
		return
	}

	var req shipping.VoidLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if req.ShipmentID == "" {
		h.BadRequest(c, "shipment_id is required")
		return
	}

	result, err := h.router.VoidLabel(c.Request.Context(), id, req.ShipmentID)
	if err != nil {
		handleCarrierError(&h.BaseHandler, c, err)
		return
	}
	if h.metrics != nil {
		outcome := telemetry.OutcomeSuccess
		if !result.Success {
			outcome = telemetry.OutcomeFailed
		}
		h.metrics.RecordLabelVoided(c.Request.Context(),
			c.GetString(middleware.ContextNetworkKey), outcome)
	}
	h.Success(c, result)
}

// ListDirectConnections godoc
// @ID           listDirectConnections
// @Summary      List rate-shoppable connections
// @Description  Lists connections whose last test succeeded, with the namespaced service codes each one offers
// @Tags         shipping
// @Produce      json
// @Success      200 {object} APIResponse[[]shipping.DirectConnectionInfo]
// @Router       /shipping/direct-connections [get]
func (h *ShippingHandler) ListDirectConnections(c *gin.Context) {
	infos, err := h.router.ListEnabledDirectConnections(c.Request.Context())
	if err != nil {
		handleCarrierError(&h.BaseHandler, c, err)
		return
	}
	h.Success(c, infos)
}

// ListServices godoc
// @ID           listServices
// @Summary      List known service levels
// @Description  Returns the static service identity table, optionally filtered by network
// @Tags         shipping
// @Produce      json
// @Param        network query string false "Filter by network" Enums(ups, fedex)
// @Success      200 {object} APIResponse[[]carrier.ServiceEntry]
// @Failure      400 {object} ErrorResponse
// @Router       /shipping/services [get]
func (h *ShippingHandler) ListServices(c *gin.Context) {
	network := c.Query("network")
	if network == "" {
		h.Success(c, carrier.AllServices())
		return
	}

	n := carrier.Network(network)
	if !n.IsValid() {
		h.BadRequest(c, "Unknown network: "+network)
		return
	}
	c.Set(middleware.ContextNetworkKey, network)
	h.Success(c, carrier.ServicesForNetwork(n))
}

// RegisterRoutes registers dispatch routes
func (h *ShippingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	connections := rg.Group("/connections")
	{
		connections.POST("/:id/validate-address", h.ValidateAddress)
		connections.POST("/:id/rates", h.GetRate)
		connections.POST("/:id/rateshop", h.RateShop)
		connections.POST("/:id/labels", h.CreateLabel)
		connections.POST("/:id/labels/void", h.VoidLabel)
	}

	shippingGroup := rg.Group("/shipping")
	{
		shippingGroup.GET("/direct-connections", h.ListDirectConnections)
		shippingGroup.GET("/services", h.ListServices)
	}
}
