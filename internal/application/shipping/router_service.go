package shipping

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/domain/carrier"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/domain/shared"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/infrastructure/telemetry"
)

// LabelArchive is the port for persisting purchased label images. Archive
// failures never fail the label purchase itself.
type LabelArchive interface {
	StoreLabel(ctx context.Context, connectionID uuid.UUID, trackingNumber, format string, image []byte) (string, error)
}

// DirectCarrierRouter is the single entry point hiding which network backs a
// given connection id. It resolves the stored connection, dispatches to the
// matching carrier client, and maps raw vendor output into the
// network-agnostic result types.
//
// Connection-not-found is a distinct error path from a vendor-level failure:
// misconfiguration surfaces as a returned error, a carrier rejection surfaces
// inside the discriminated result.
type DirectCarrierRouter struct {
	connections carrier.ConnectionRepository
	clients     map[carrier.Network]carrier.Client
	archive     LabelArchive
	logger      *zap.Logger
}

// NewDirectCarrierRouter creates a router over the given carrier clients.
// archive may be nil when label archiving is disabled.
func NewDirectCarrierRouter(
	connections carrier.ConnectionRepository,
	clients []carrier.Client,
	archive LabelArchive,
	logger *zap.Logger,
) *DirectCarrierRouter {
	byNetwork := make(map[carrier.Network]carrier.Client, len(clients))
	for _, client := range clients {
		byNetwork[client.Network()] = client
	}
	return &DirectCarrierRouter{
		connections: connections,
		clients:     byNetwork,
		archive:     archive,
		logger:      logger,
	}
}

// ---------------------------------------------------------------------------
// Code Classification
// ---------------------------------------------------------------------------

// ParsedServiceCode is the decomposition of a namespaced direct code
type ParsedServiceCode struct {
	Network carrier.Network `json:"network"`
	RawCode string          `json:"raw_code"`
}

// IsDirectCarrier reports whether code names a direct-integration service
func (r *DirectCarrierRouter) IsDirectCarrier(code string) bool {
	return carrier.IsDirectServiceCode(code)
}

// ParseServiceCode splits a namespaced direct code, or returns ok=false for
// broker codes and unrecognized spellings
func (r *DirectCarrierRouter) ParseServiceCode(code string) (*ParsedServiceCode, bool) {
	network, raw, ok := carrier.ParseServiceCode(code)
	if !ok {
		return nil, false
	}
	return &ParsedServiceCode{Network: network, RawCode: raw}, true
}

// ---------------------------------------------------------------------------
// Connection Resolution
// ---------------------------------------------------------------------------

// LoadConnection resolves a stored connection by id. Only a genuine miss maps
// to ErrConnectionNotFound; repository failures propagate as-is so the caller
// never mistakes an outage for misconfiguration.
func (r *DirectCarrierRouter) LoadConnection(ctx context.Context, connectionID uuid.UUID) (*carrier.Connection, error) {
	conn, err := r.connections.FindByID(ctx, connectionID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", carrier.ErrConnectionNotFound, connectionID)
		}
		return nil, fmt.Errorf("load connection %s: %w", connectionID, err)
	}
	return conn, nil
}

// resolve loads a connection and the client for its network
func (r *DirectCarrierRouter) resolve(ctx context.Context, connectionID uuid.UUID) (*carrier.Connection, carrier.Client, error) {
	conn, err := r.LoadConnection(ctx, connectionID)
	if err != nil {
		return nil, nil, err
	}
	client, ok := r.clients[conn.Network]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", carrier.ErrUnknownNetwork, conn.Network)
	}
	return conn, client, nil
}

// DirectConnectionInfo describes one usable direct connection and the
// services it offers, for rate-shopping callers
type DirectConnectionInfo struct {
	ConnectionID uuid.UUID       `json:"connection_id"`
	Network      carrier.Network `json:"network"`
	DisplayName  string          `json:"display_name"`
	Services     []ServiceInfo   `json:"services"`
}

// ServiceInfo is one offered service level
type ServiceInfo struct {
	ServiceCode string `json:"service_code"` // namespaced, e.g. "ups-direct:03"
	Identity    string `json:"identity"`
	DisplayName string `json:"display_name"`
}

// ListEnabledDirectConnections returns the connections rate shopping should
// include alongside broker services. Only connections whose last test
// succeeded are offered.
func (r *DirectCarrierRouter) ListEnabledDirectConnections(ctx context.Context) ([]DirectConnectionInfo, error) {
	conns, err := r.connections.FindConnected(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]DirectConnectionInfo, 0, len(conns))
	for i := range conns {
		conn := &conns[i]
		info := DirectConnectionInfo{
			ConnectionID: conn.ID,
			Network:      conn.Network,
			DisplayName:  conn.Nickname,
		}
		for _, code := range conn.EnabledServiceCodes() {
			namespaced := carrier.DirectServiceCode(conn.Network, code)
			service := ServiceInfo{
				ServiceCode: namespaced,
				Identity:    carrier.IdentityOf(namespaced),
				DisplayName: string(conn.Network) + " " + code,
			}
			if entry := carrier.LookupDirect(conn.Network, code); entry != nil {
				service.DisplayName = entry.DisplayName
			}
			info.Services = append(info.Services, service)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// ---------------------------------------------------------------------------
// Address Validation
// ---------------------------------------------------------------------------

// ValidateAddress validates an address through the connection's network and
// classifies the outcome. A vendor failure is reported as status "error"
// inside the result, never silently downgraded to "warning".
func (r *DirectCarrierRouter) ValidateAddress(ctx context.Context, connectionID uuid.UUID, addr carrier.Address) (*carrier.AddressResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "router", "validate_address",
		telemetry.WithAttribute(telemetry.SpanAttrConnectionID, connectionID.String()))
	defer span.End()

	conn, client, err := r.resolve(ctx, connectionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrNetwork, string(conn.Network))

	validation, err := client.ValidateAddress(ctx, conn.Credential(), addr)
	if err != nil {
		r.logger.Warn("address validation failed",
			zap.String("connection_id", connectionID.String()),
			zap.String("network", string(conn.Network)),
			zap.Error(err))
		return &carrier.AddressResult{
			Status:   carrier.AddressStatusError,
			Original: addr,
			Messages: []carrier.Message{{Severity: "error", Text: err.Error()}},
		}, nil
	}

	return resolveAddressResult(addr, validation), nil
}

// resolveAddressResult classifies a vendor validation against the submitted
// address: exact match on normalized street/city/state/5-digit zip is
// "verified", any mismatch is "warning" with the corrected candidate.
func resolveAddressResult(original carrier.Address, validation *carrier.AddressValidation) *carrier.AddressResult {
	result := &carrier.AddressResult{
		Original:       original,
		Messages:       validation.Messages,
		Classification: validation.Classification,
	}

	if len(validation.Candidates) == 0 {
		result.Status = carrier.AddressStatusWarning
		result.Messages = append(result.Messages, carrier.Message{
			Severity: "warning",
			Text:     "carrier returned no candidate addresses",
		})
		return result
	}

	matched := validation.Candidates[0].Address
	result.Matched = &matched
	if addressesEquivalent(original, matched) {
		result.Status = carrier.AddressStatusVerified
	} else {
		result.Status = carrier.AddressStatusWarning
		result.Messages = append(result.Messages, carrier.Message{
			Severity: "warning",
			Text:     "carrier suggested a corrected address",
		})
	}
	return result
}

// addressesEquivalent compares the fields that decide verified vs warning
func addressesEquivalent(a, b carrier.Address) bool {
	return normalizeAddressComponent(a.Street1) == normalizeAddressComponent(b.Street1) &&
		normalizeAddressComponent(a.City) == normalizeAddressComponent(b.City) &&
		normalizeAddressComponent(a.State) == normalizeAddressComponent(b.State) &&
		zip5(a.PostalCode) == zip5(b.PostalCode)
}

// normalizeAddressComponent uppercases and strips punctuation that vendors
// add or drop freely
func normalizeAddressComponent(s string) string {
	s = strings.ToUpper(s)
	s = strings.NewReplacer(".", "", ",", "", "#", "").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// zip5 reduces a postal code to its 5-digit prefix, so "78701-1234" and
// "78701" compare equal
func zip5(postalCode string) string {
	code := strings.TrimSpace(postalCode)
	if idx := strings.Index(code, "-"); idx >= 0 {
		code = code[:idx]
	}
	if len(code) > 5 {
		code = code[:5]
	}
	return code
}

// ---------------------------------------------------------------------------
// Rating
// ---------------------------------------------------------------------------

// GetRate quotes one service level through a connection. Vendor failures are
// captured inside the result.
func (r *DirectCarrierRouter) GetRate(ctx context.Context, connectionID uuid.UUID, serviceCode string, pkg carrier.Package, origin, dest carrier.Address) (*carrier.RateResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "router", "get_rate",
		telemetry.WithAttribute(telemetry.SpanAttrConnectionID, connectionID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrServiceCode, serviceCode))
	defer span.End()

	conn, client, err := r.resolve(ctx, connectionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrNetwork, string(conn.Network))

	raw := rawServiceCode(conn.Network, serviceCode)
	result := client.GetRate(ctx, conn.Credential(), raw, pkg, origin, dest)
	result.ConnectionID = conn.ID
	return &result, nil
}

// RateShop quotes service levels concurrently through one connection. With no
// explicit codes, the connection's enabled services are quoted.
func (r *DirectCarrierRouter) RateShop(ctx context.Context, connectionID uuid.UUID, serviceCodes []string, pkg carrier.Package, origin, dest carrier.Address) ([]carrier.RateResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "router", "rate_shop",
		telemetry.WithAttribute(telemetry.SpanAttrConnectionID, connectionID.String()))
	defer span.End()

	conn, client, err := r.resolve(ctx, connectionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrNetwork, string(conn.Network),
		"service_count", len(serviceCodes))

	raws := make([]string, 0, len(serviceCodes))
	for _, code := range serviceCodes {
		raws = append(raws, rawServiceCode(conn.Network, code))
	}
	if len(raws) == 0 {
		raws = conn.EnabledServiceCodes()
	}

	results := client.RateShop(ctx, conn.Credential(), raws, pkg, origin, dest)
	for i := range results {
		results[i].ConnectionID = conn.ID
	}
	return results, nil
}

// rawServiceCode strips the direct namespace if present, so callers may pass
// either "ups-direct:03" or "03"
func rawServiceCode(network carrier.Network, code string) string {
	if parsedNetwork, raw, ok := carrier.ParseServiceCode(code); ok && parsedNetwork == network {
		return raw
	}
	if entry := carrier.DirectEquivalent(code); entry != nil && entry.Network == network {
		return entry.DirectCode
	}
	return code
}

// ---------------------------------------------------------------------------
// Labels
// ---------------------------------------------------------------------------

// CreateLabel purchases a label through a connection and archives the image.
// The result's ShipmentID is the network-specific void handle: the UPS
// shipment identification number, or the FedEx tracking number.
func (r *DirectCarrierRouter) CreateLabel(ctx context.Context, connectionID uuid.UUID, req *carrier.ShipmentRequest) (*carrier.LabelResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "router", "create_label",
		telemetry.WithAttribute(telemetry.SpanAttrConnectionID, connectionID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrServiceCode, req.ServiceCode))
	defer span.End()

	conn, client, err := r.resolve(ctx, connectionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrNetwork, string(conn.Network))

	req.ServiceCode = rawServiceCode(conn.Network, req.ServiceCode)
	label, err := client.CreateLabel(ctx, conn.Credential(), req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if label.Success {
		telemetry.SetAttributes(span,
			telemetry.SpanAttrTrackingNumber, label.TrackingNumber,
			telemetry.SpanAttrLabelFormat, label.LabelFormat)
	}

	if label.Success && r.archive != nil && len(label.LabelImage) > 0 {
		url, err := r.archive.StoreLabel(ctx, conn.ID, label.TrackingNumber, label.LabelFormat, label.LabelImage)
		if err != nil {
			r.logger.Warn("label archive failed",
				zap.String("connection_id", conn.ID.String()),
				zap.String("tracking_number", label.TrackingNumber),
				zap.Error(err))
			telemetry.AddEvent(span, "label_archive_failed",
				telemetry.SpanAttrTrackingNumber, label.TrackingNumber)
		} else {
			label.ArchiveURL = url
			telemetry.AddEvent(span, "label_archived",
				telemetry.SpanAttrTrackingNumber, label.TrackingNumber)
		}
	}
	return label, nil
}

// VoidLabel cancels a label by the handle returned from CreateLabel. The
// handle's meaning is network-specific, which is why this dispatches per
// connection instead of accepting a generic tracking number.
func (r *DirectCarrierRouter) VoidLabel(ctx context.Context, connectionID uuid.UUID, shipmentHandle string) (*carrier.VoidResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "router", "void_label",
		telemetry.WithAttribute(telemetry.SpanAttrConnectionID, connectionID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrShipmentID, shipmentHandle))
	defer span.End()

	conn, client, err := r.resolve(ctx, connectionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrNetwork, string(conn.Network))

	return client.VoidLabel(ctx, conn.Credential(), shipmentHandle)
}

// ---------------------------------------------------------------------------
// Connection Testing
// ---------------------------------------------------------------------------

// TestConnection runs a connectivity self-test and records the outcome on
// the stored connection
func (r *DirectCarrierRouter) TestConnection(ctx context.Context, connectionID uuid.UUID) (*carrier.ConnectionTestResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "router", "test_connection",
		telemetry.WithAttribute(telemetry.SpanAttrConnectionID, connectionID.String()))
	defer span.End()

	conn, client, err := r.resolve(ctx, connectionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrNetwork, string(conn.Network))

	result, err := client.TestConnection(ctx, conn.Credential())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := time.Now()
	if result.Success {
		conn.MarkConnected(now)
	} else {
		conn.MarkError(now, result.Error)
	}
	if err := r.connections.Save(ctx, conn); err != nil {
		r.logger.Error("failed to record connection test outcome",
			zap.String("connection_id", conn.ID.String()),
			zap.Error(err))
		return nil, err
	}

	r.logger.Info("connection tested",
		zap.String("connection_id", conn.ID.String()),
		zap.String("network", string(conn.Network)),
		zap.Bool("success", result.Success))
	return result, nil
}
