package carrierapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/domain/carrier"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/infrastructure/telemetry"
)

// UPS REST API paths
const (
	upsOAuthPath    = "/security/v1/oauth/token"
	upsXAVPath      = "/api/addressvalidation/v1/3" // requestoption 3: validation + classification
	upsRatePath     = "/api/rating/v1/Rate"
	upsShipPath     = "/api/shipments/v1/ship"
	upsVoidPathBase = "/api/shipments/v1/void/cancel/"
)

// upsTestAddress is the known good address used by connectivity self-tests
var upsTestAddress = carrier.Address{
	Street1:     "55 Glenlake Pkwy NE",
	City:        "Atlanta",
	State:       "GA",
	PostalCode:  "30328",
	CountryCode: "US",
}

// UPSClient implements the carrier.Client interface for the UPS REST API
type UPSClient struct {
	config     *UPSConfig
	httpClient *http.Client
	tokens     *TokenStore
	metrics    *telemetry.CarrierMetrics
}

// NewUPSClient creates a UPS client sharing the given token store
func NewUPSClient(config *UPSConfig, tokens *TokenStore) (*UPSClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &UPSClient{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		tokens: tokens,
	}, nil
}

// Network returns the network this client handles
func (c *UPSClient) Network() carrier.Network {
	return carrier.NetworkUPS
}

// SetMetrics attaches vendor round-trip telemetry. Safe to leave unset.
func (c *UPSClient) SetMetrics(metrics *telemetry.CarrierMetrics) {
	c.metrics = metrics
}

// recordVendorCall reports one API round trip when metrics are attached
func (c *UPSClient) recordVendorCall(ctx context.Context, operation string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	outcome := telemetry.OutcomeSuccess
	if err != nil {
		outcome = telemetry.OutcomeFailed
	}
	c.metrics.RecordVendorRequest(ctx, string(carrier.NetworkUPS), operation, outcome, time.Since(start))
}

// ---------------------------------------------------------------------------
// OAuth
// ---------------------------------------------------------------------------

// tokenCacheKey scopes a cached token to one credential and environment
func tokenCacheKey(network carrier.Network, cred carrier.Credential) string {
	env := "prod"
	if cred.Sandbox {
		env = "sandbox"
	}
	return string(network) + ":" + env + ":" + cred.ClientID
}

// token returns a bearer token for the credential, exchanging if needed.
// UPS OAuth uses Basic auth of clientId:clientSecret with a form body.
func (c *UPSClient) token(ctx context.Context, cred carrier.Credential) (string, error) {
	key := tokenCacheKey(carrier.NetworkUPS, cred)
	return c.tokens.Get(ctx, key, func(ctx context.Context) (string, time.Duration, error) {
		token, ttl, err := c.exchangeToken(ctx, cred)
		if c.metrics != nil {
			outcome := telemetry.OutcomeSuccess
			if err != nil {
				outcome = telemetry.OutcomeFailed
			}
			c.metrics.RecordTokenExchange(ctx, string(carrier.NetworkUPS), outcome)
		}
		return token, ttl, err
	})
}

// exchangeToken performs one client-credentials exchange against UPS OAuth
func (c *UPSClient) exchangeToken(ctx context.Context, cred carrier.Credential) (string, time.Duration, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL(cred.Sandbox)+upsOAuthPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("ups: failed to create token request: %w", err)
	}
	req.SetBasicAuth(cred.ClientID, cred.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", carrier.ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", carrier.ErrAuthFailed, err)
	}
	if resp.StatusCode >= 400 {
		return "", 0, fmt.Errorf("%w: HTTP %d: %s", carrier.ErrAuthFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tokenResp upsTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", 0, fmt.Errorf("%w: %v", carrier.ErrAuthFailed, err)
	}
	if tokenResp.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: empty access token", carrier.ErrAuthFailed)
	}

	expiresIn, err := strconv.Atoi(tokenResp.ExpiresIn)
	if err != nil || expiresIn <= 0 {
		expiresIn = 3600
	}
	return tokenResp.AccessToken, time.Duration(expiresIn) * time.Second, nil
}

// doRequest performs an authenticated request against the UPS API
func (c *UPSClient) doRequest(ctx context.Context, cred carrier.Credential, operation, method, path string, payload any) (result []byte, err error) {
	start := time.Now()
	defer func() { c.recordVendorCall(ctx, operation, start, err) }()

	token, err := c.token(ctx, cred)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("ups: failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL(cred.Sandbox)+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("ups: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var resp *http.Response
	telemetry.WithProfilingLabels(ctx, telemetry.VendorCallLabels("ups", operation), func(ctx context.Context) {
		resp, err = c.httpClient.Do(req.WithContext(ctx))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", carrier.ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("ups: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// The token may have been revoked mid-lifetime; drop it so the next
		// call re-authenticates instead of reusing a known-bad token.
		c.tokens.Invalidate(tokenCacheKey(carrier.NetworkUPS, cred))
		return nil, fmt.Errorf("%w: HTTP 401", carrier.ErrAuthFailed)
	}
	if resp.StatusCode >= 400 {
		var errResp upsErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.firstMessage() != "" {
			return nil, fmt.Errorf("%w: HTTP %d: %s", carrier.ErrVendorRequestFailed, resp.StatusCode, errResp.firstMessage())
		}
		return nil, fmt.Errorf("%w: HTTP %d", carrier.ErrVendorRequestFailed, resp.StatusCode)
	}

	return body, nil
}

// ---------------------------------------------------------------------------
// Connection Test
// ---------------------------------------------------------------------------

// TestConnection flushes any cached token, performs a fresh OAuth exchange
// and one address validation. Never creates a shipment or incurs cost.
func (c *UPSClient) TestConnection(ctx context.Context, cred carrier.Credential) (*carrier.ConnectionTestResult, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}

	result := &carrier.ConnectionTestResult{}

	c.tokens.Invalidate(tokenCacheKey(carrier.NetworkUPS, cred))
	if _, err := c.token(ctx, cred); err != nil {
		result.Error = err.Error()
		return result, nil
	}
	result.TokenAcquired = true

	validation, err := c.ValidateAddress(ctx, cred, upsTestAddress)
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}
	result.AddressValidated = true
	result.Success = true
	result.Classification = validation.Classification
	if len(validation.Candidates) > 0 {
		matched := validation.Candidates[0].Address
		result.MatchedAddress = &matched
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Address Validation
// ---------------------------------------------------------------------------

// ValidateAddress submits an address to the UPS XAV API and returns the
// vendor's candidates normalized to a list
func (c *UPSClient) ValidateAddress(ctx context.Context, cred carrier.Credential, addr carrier.Address) (*carrier.AddressValidation, error) {
	var payload upsXAVRequest
	payload.XAVRequest.AddressKeyFormat = upsAddressKeyFormat{
		ConsigneeName:      addr.Name,
		AddressLine:        addressLines(addr),
		PoliticalDivision2: addr.City,
		PoliticalDivision1: addr.State,
		PostcodePrimaryLow: addr.PostalCode,
		CountryCode:        addr.CountryCode,
	}

	body, err := c.doRequest(ctx, cred, "validate_address", http.MethodPost, upsXAVPath, payload)
	if err != nil {
		return nil, err
	}

	var resp upsXAVResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", carrier.ErrVendorInvalidResponse, err)
	}

	validation := &carrier.AddressValidation{
		Classification: upsClassification(resp),
	}
	for _, candidate := range resp.XAVResponse.Candidate {
		validation.Candidates = append(validation.Candidates, carrier.AddressCandidate{
			Address:        upsCandidateAddress(candidate),
			Classification: validation.Classification,
		})
	}
	if resp.XAVResponse.NoCandidatesIndicator != nil {
		validation.Messages = append(validation.Messages, carrier.Message{
			Severity: "warning",
			Text:     "no candidate addresses returned",
		})
	}
	if resp.XAVResponse.AmbiguousAddressIndicator != nil {
		validation.Messages = append(validation.Messages, carrier.Message{
			Severity: "warning",
			Text:     "address is ambiguous",
		})
	}
	return validation, nil
}

// upsClassification maps the XAV classification code to the domain enum
func upsClassification(resp upsXAVResponse) carrier.Classification {
	if resp.XAVResponse.AddressClassification == nil {
		return carrier.ClassificationUnknown
	}
	switch resp.XAVResponse.AddressClassification.Code {
	case "1":
		return carrier.ClassificationCommercial
	case "2":
		return carrier.ClassificationResidential
	default:
		return carrier.ClassificationUnknown
	}
}

// upsCandidateAddress converts a XAV candidate to a domain address
func upsCandidateAddress(candidate upsXAVCandidate) carrier.Address {
	key := candidate.AddressKeyFormat
	addr := carrier.Address{
		City:        key.PoliticalDivision2,
		State:       key.PoliticalDivision1,
		PostalCode:  key.PostcodePrimaryLow,
		CountryCode: key.CountryCode,
	}
	if key.PostcodeExtendedLow != "" {
		addr.PostalCode = key.PostcodePrimaryLow + "-" + key.PostcodeExtendedLow
	}
	if len(key.AddressLine) > 0 {
		addr.Street1 = key.AddressLine[0]
	}
	if len(key.AddressLine) > 1 {
		addr.Street2 = key.AddressLine[1]
	}
	return addr
}

// ---------------------------------------------------------------------------
// Rating
// ---------------------------------------------------------------------------

// GetRate quotes a single service level. Vendor failures are captured in the
// result so one bad quote never aborts a rate-shopping batch.
func (c *UPSClient) GetRate(ctx context.Context, cred carrier.Credential, serviceCode string, pkg carrier.Package, origin, dest carrier.Address) carrier.RateResult {
	result := carrier.RateResult{
		ServiceCode:  carrier.DirectServiceCode(carrier.NetworkUPS, serviceCode),
		ServiceName:  upsServiceName(serviceCode),
		CarrierLabel: "UPS (direct)",
	}

	payload := c.buildRateRequest(cred, serviceCode, pkg, origin, dest)
	body, err := c.doRequest(ctx, cred, "rate", http.MethodPost, upsRatePath, payload)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	var resp upsRateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		result.Error = fmt.Sprintf("%v: %v", carrier.ErrVendorInvalidResponse, err)
		return result
	}
	if len(resp.RateResponse.RatedShipment) == 0 {
		result.Error = fmt.Sprintf("%v: no rated shipment", carrier.ErrVendorInvalidResponse)
		return result
	}

	rated := resp.RateResponse.RatedShipment[0]
	price, err := decimal.NewFromString(rated.TotalCharges.MonetaryValue)
	if err != nil {
		result.Error = fmt.Sprintf("%v: bad total charges %q", carrier.ErrVendorInvalidResponse, rated.TotalCharges.MonetaryValue)
		return result
	}

	result.Success = true
	result.Price = price
	result.Currency = rated.TotalCharges.CurrencyCode
	if rated.GuaranteedDelivery != nil {
		if days, err := strconv.Atoi(rated.GuaranteedDelivery.BusinessDaysInTransit); err == nil {
			result.DeliveryDays = &days
		}
	}
	return result
}

// RateShop quotes all given service levels concurrently
func (c *UPSClient) RateShop(ctx context.Context, cred carrier.Credential, serviceCodes []string, pkg carrier.Package, origin, dest carrier.Address) []carrier.RateResult {
	results := make([]carrier.RateResult, len(serviceCodes))

	var wg sync.WaitGroup
	for i, code := range serviceCodes {
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()
			results[i] = c.GetRate(ctx, cred, code, pkg, origin, dest)
		}(i, code)
	}
	wg.Wait()

	carrier.SortRates(results)
	return results
}

// buildRateRequest assembles the single-service rate payload
func (c *UPSClient) buildRateRequest(cred carrier.Credential, serviceCode string, pkg carrier.Package, origin, dest carrier.Address) upsRateRequest {
	var payload upsRateRequest
	payload.RateRequest.Request.RequestOption = "Rate"

	shipment := &payload.RateRequest.Shipment
	shipment.Shipper = upsRateParty{
		Name:          origin.Name,
		ShipperNumber: cred.AccountNumber,
		Address:       upsToRateAddress(origin),
	}
	shipment.ShipFrom = upsRateParty{Name: origin.Name, Address: upsToRateAddress(origin)}
	shipment.ShipTo = upsRateParty{Name: dest.Name, Address: upsToRateAddress(dest)}
	shipment.Service = upsCodeDescription{Code: serviceCode}
	shipment.Package = []upsRatePackage{upsToRatePackage(pkg)}
	return payload
}

func upsToRateAddress(addr carrier.Address) upsRateAddress {
	rateAddr := upsRateAddress{
		AddressLine:       addressLines(addr),
		City:              addr.City,
		StateProvinceCode: addr.State,
		PostalCode:        addr.PostalCode,
		CountryCode:       addr.CountryCode,
	}
	if addr.Residential {
		empty := ""
		rateAddr.ResidentialAddressIndicator = &empty
	}
	return rateAddr
}

func upsToRatePackage(pkg carrier.Package) upsRatePackage {
	return upsRatePackage{
		PackagingType: upsCodeDescription{Code: "02"}, // customer supplied package
		Dimensions: upsDimensions{
			UnitOfMeasurement: upsCodeDescription{Code: "IN"},
			Length:            formatMeasure(pkg.Length),
			Width:             formatMeasure(pkg.Width),
			Height:            formatMeasure(pkg.Height),
		},
		PackageWeight: upsPackageWeight{
			UnitOfMeasurement: upsCodeDescription{Code: "LBS"},
			Weight:            formatMeasure(pkg.Weight),
		},
	}
}

// ---------------------------------------------------------------------------
// Shipping
// ---------------------------------------------------------------------------

// CreateLabel purchases a 4x6 GIF label. The returned ShipmentID is the UPS
// shipment identification number, which is the handle VoidLabel requires.
func (c *UPSClient) CreateLabel(ctx context.Context, cred carrier.Credential, req *carrier.ShipmentRequest) (*carrier.LabelResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payload := c.buildShipRequest(cred, req)
	body, err := c.doRequest(ctx, cred, "create_label", http.MethodPost, upsShipPath, payload)
	if err != nil {
		return &carrier.LabelResult{
			CarrierLabel: "UPS (direct)",
			ServiceName:  upsServiceName(req.ServiceCode),
			Error:        err.Error(),
		}, nil
	}

	var resp upsShipResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", carrier.ErrVendorInvalidResponse, err)
	}

	results := resp.ShipmentResponse.ShipmentResults
	if len(results.PackageResults) == 0 {
		return nil, fmt.Errorf("%w: no package results", carrier.ErrVendorInvalidResponse)
	}
	pkgResult := results.PackageResults[0]

	label := &carrier.LabelResult{
		Success:        true,
		TrackingNumber: pkgResult.TrackingNumber,
		LabelFormat:    strings.ToLower(pkgResult.ShippingLabel.ImageFormat.Code),
		CarrierLabel:   "UPS (direct)",
		ServiceName:    upsServiceName(req.ServiceCode),
		ShipmentID:     results.ShipmentIdentificationNumber,
	}
	if label.LabelFormat == "" {
		label.LabelFormat = "gif"
	}
	if pkgResult.ShippingLabel.GraphicImage != "" {
		image, err := base64.StdEncoding.DecodeString(pkgResult.ShippingLabel.GraphicImage)
		if err != nil {
			return nil, fmt.Errorf("%w: bad label image: %v", carrier.ErrVendorInvalidResponse, err)
		}
		label.LabelImage = image
	}
	if cost, err := decimal.NewFromString(results.ShipmentCharges.TotalCharges.MonetaryValue); err == nil {
		label.Cost = cost
		label.Currency = results.ShipmentCharges.TotalCharges.CurrencyCode
	}
	return label, nil
}

// buildShipRequest assembles the shipment payload for a 4x6 GIF label
func (c *UPSClient) buildShipRequest(cred carrier.Credential, req *carrier.ShipmentRequest) upsShipRequest {
	var payload upsShipRequest
	payload.ShipmentRequest.Request.RequestOption = "nonvalidate"

	shipment := &payload.ShipmentRequest.Shipment
	shipment.Description = req.Reference
	shipment.Shipper = upsToShipParty(req.ShipFrom)
	shipment.Shipper.ShipperNumber = cred.AccountNumber
	shipment.ShipFrom = upsToShipParty(req.ShipFrom)
	shipment.ShipTo = upsToShipParty(req.ShipTo)
	shipment.PaymentInformation.ShipmentCharge.Type = "01"
	shipment.PaymentInformation.ShipmentCharge.BillShipper.AccountNumber = cred.AccountNumber
	shipment.Service = upsCodeDescription{Code: req.ServiceCode}
	if req.Reference != "" {
		shipment.ReferenceNumber = &upsReference{Value: req.Reference}
	}
	shipment.Package = []upsShipPackage{{
		Packaging: upsCodeDescription{Code: "02"},
		Dimensions: upsDimensions{
			UnitOfMeasurement: upsCodeDescription{Code: "IN"},
			Length:            formatMeasure(req.Package.Length),
			Width:             formatMeasure(req.Package.Width),
			Height:            formatMeasure(req.Package.Height),
		},
		PackageWeight: upsPackageWeight{
			UnitOfMeasurement: upsCodeDescription{Code: "LBS"},
			Weight:            formatMeasure(req.Package.Weight),
		},
	}}

	spec := &payload.ShipmentRequest.LabelSpecification
	spec.LabelImageFormat = upsCodeDescription{Code: "GIF"}
	spec.LabelStockSize.Height = "6"
	spec.LabelStockSize.Width = "4"
	return payload
}

func upsToShipParty(addr carrier.Address) upsShipParty {
	name := addr.Company
	if name == "" {
		name = addr.Name
	}
	party := upsShipParty{
		Name:          name,
		AttentionName: addr.Name,
		Address: upsShipAddress{
			AddressLine:       addressLines(addr),
			City:              addr.City,
			StateProvinceCode: addr.State,
			PostalCode:        addr.PostalCode,
			CountryCode:       addr.CountryCode,
		},
	}
	if addr.Phone != "" {
		party.Phone = &struct {
			Number string `json:"Number"`
		}{Number: addr.Phone}
	}
	if addr.Residential {
		empty := ""
		party.Address.ResidentialAddressIndicator = &empty
	}
	return party
}

// ---------------------------------------------------------------------------
// Void
// ---------------------------------------------------------------------------

// VoidLabel cancels a not-yet-manifested shipment by its UPS shipment
// identification number. The tracking number will not work here.
func (c *UPSClient) VoidLabel(ctx context.Context, cred carrier.Credential, shipmentID string) (*carrier.VoidResult, error) {
	if shipmentID == "" {
		return nil, fmt.Errorf("%w: shipment identification number is required", carrier.ErrVendorRequestFailed)
	}

	body, err := c.doRequest(ctx, cred, "void_label", http.MethodDelete, upsVoidPathBase+url.PathEscape(shipmentID), nil)
	if err != nil {
		return &carrier.VoidResult{Error: err.Error()}, nil
	}

	var resp upsVoidResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", carrier.ErrVendorInvalidResponse, err)
	}
	if resp.VoidShipmentResponse.SummaryResult.Status.Code != "1" {
		return &carrier.VoidResult{
			Error: resp.VoidShipmentResponse.SummaryResult.Status.Description,
		}, nil
	}
	return &carrier.VoidResult{Success: true}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// upsServiceName resolves a vendor-native code to its display name
func upsServiceName(serviceCode string) string {
	if entry := carrier.LookupDirect(carrier.NetworkUPS, serviceCode); entry != nil {
		return entry.DisplayName
	}
	return "UPS " + serviceCode
}

// addressLines collects the non-empty street lines
func addressLines(addr carrier.Address) []string {
	lines := []string{addr.Street1}
	if addr.Street2 != "" {
		lines = append(lines, addr.Street2)
	}
	return lines
}

// formatMeasure renders a weight or dimension the way UPS expects
func formatMeasure(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Ensure UPSClient implements the carrier client interface
var _ carrier.Client = (*UPSClient)(nil)
