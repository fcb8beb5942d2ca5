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
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/domain/carrier"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/infrastructure/telemetry"
)

// FedEx REST API paths
const (
	fedexOAuthPath   = "/oauth/token"
	fedexResolvePath = "/address/v1/addresses/resolve"
	fedexRatePath    = "/rate/v1/rates/quotes"
	fedexShipPath    = "/ship/v1/shipments"
	fedexCancelPath  = "/ship/v1/shipments/cancel"
)

// fedexTestAddress is the known good address used by connectivity self-tests
var fedexTestAddress = carrier.Address{
	Street1:     "3875 Airways Blvd",
	City:        "Memphis",
	State:       "TN",
	PostalCode:  "38116",
	CountryCode: "US",
}

// FedExClient implements the carrier.Client interface for the FedEx REST API
type FedExClient struct {
	config     *FedExConfig
	httpClient *http.Client
	tokens     *TokenStore
	metrics    *telemetry.CarrierMetrics
}

// NewFedExClient creates a FedEx client sharing the given token store
func NewFedExClient(config *FedExConfig, tokens *TokenStore) (*FedExClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &FedExClient{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		tokens: tokens,
	}, nil
}

// Network returns the network this client handles
func (c *FedExClient) Network() carrier.Network {
	return carrier.NetworkFedEx
}

// SetMetrics attaches vendor round-trip telemetry. Safe to leave unset.
func (c *FedExClient) SetMetrics(metrics *telemetry.CarrierMetrics) {
	c.metrics = metrics
}

// recordVendorCall reports one API round trip when metrics are attached
func (c *FedExClient) recordVendorCall(ctx context.Context, operation string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	outcome := telemetry.OutcomeSuccess
	if err != nil {
		outcome = telemetry.OutcomeFailed
	}
	c.metrics.RecordVendorRequest(ctx, string(carrier.NetworkFedEx), operation, outcome, time.Since(start))
}

// ---------------------------------------------------------------------------
// OAuth
// ---------------------------------------------------------------------------

// token returns a bearer token for the credential, exchanging if needed.
// FedEx OAuth carries the client id and secret in the form body, not in a
// Basic auth header.
func (c *FedExClient) token(ctx context.Context, cred carrier.Credential) (string, error) {
	key := tokenCacheKey(carrier.NetworkFedEx, cred)
	return c.tokens.Get(ctx, key, func(ctx context.Context) (string, time.Duration, error) {
		token, ttl, err := c.exchangeToken(ctx, cred)
		if c.metrics != nil {
			outcome := telemetry.OutcomeSuccess
			if err != nil {
				outcome = telemetry.OutcomeFailed
			}
			c.metrics.RecordTokenExchange(ctx, string(carrier.NetworkFedEx), outcome)
		}
		return token, ttl, err
	})
}

// exchangeToken performs one client-credentials exchange against FedEx OAuth
func (c *FedExClient) exchangeToken(ctx context.Context, cred carrier.Credential) (string, time.Duration, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {cred.ClientID},
		"client_secret": {cred.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL(cred.Sandbox)+fedexOAuthPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("fedex: failed to create token request: %w", err)
	}
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

	var tokenResp fedexTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", 0, fmt.Errorf("%w: %v", carrier.ErrAuthFailed, err)
	}
	if tokenResp.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: empty access token", carrier.ErrAuthFailed)
	}

	expiresIn := tokenResp.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return tokenResp.AccessToken, time.Duration(expiresIn) * time.Second, nil
}

// doRequest performs an authenticated request against the FedEx API
func (c *FedExClient) doRequest(ctx context.Context, cred carrier.Credential, operation, method, path string, payload any) (result []byte, err error) {
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
			return nil, fmt.Errorf("fedex: failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL(cred.Sandbox)+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("fedex: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var resp *http.Response
	telemetry.WithProfilingLabels(ctx, telemetry.VendorCallLabels("fedex", operation), func(ctx context.Context) {
		resp, err = c.httpClient.Do(req.WithContext(ctx))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", carrier.ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("fedex: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate(tokenCacheKey(carrier.NetworkFedEx, cred))
		return nil, fmt.Errorf("%w: HTTP 401", carrier.ErrAuthFailed)
	}
	if resp.StatusCode >= 400 {
		var errResp fedexErrorResponse
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
// and one address resolution. Never creates a shipment or incurs cost.
func (c *FedExClient) TestConnection(ctx context.Context, cred carrier.Credential) (*carrier.ConnectionTestResult, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}

	result := &carrier.ConnectionTestResult{}

	c.tokens.Invalidate(tokenCacheKey(carrier.NetworkFedEx, cred))
	if _, err := c.token(ctx, cred); err != nil {
		result.Error = err.Error()
		return result, nil
	}
	result.TokenAcquired = true

	validation, err := c.ValidateAddress(ctx, cred, fedexTestAddress)
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
// Address Resolution
// ---------------------------------------------------------------------------

// ValidateAddress submits an address to the FedEx address resolution API
func (c *FedExClient) ValidateAddress(ctx context.Context, cred carrier.Credential, addr carrier.Address) (*carrier.AddressValidation, error) {
	var payload fedexResolveRequest
	payload.AddressesToValidate = []struct {
		Address fedexAddress `json:"address"`
	}{{Address: fedexToAddress(addr)}}

	body, err := c.doRequest(ctx, cred, "validate_address", http.MethodPost, fedexResolvePath, payload)
	if err != nil {
		return nil, err
	}

	var resp fedexResolveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", carrier.ErrVendorInvalidResponse, err)
	}

	validation := &carrier.AddressValidation{
		Classification: carrier.ClassificationUnknown,
	}
	for _, resolved := range resp.Output.ResolvedAddresses {
		classification := fedexClassification(resolved.Classification)
		if validation.Classification == carrier.ClassificationUnknown {
			validation.Classification = classification
		}
		validation.Candidates = append(validation.Candidates, carrier.AddressCandidate{
			Address:        fedexResolvedToAddress(resolved),
			Classification: classification,
		})
	}
	for _, alert := range resp.Output.Alerts {
		validation.Messages = append(validation.Messages, carrier.Message{
			Severity: "warning",
			Code:     alert.Code,
			Text:     alert.Message,
		})
	}
	return validation, nil
}

// fedexClassification maps the resolution classification to the domain enum
func fedexClassification(code string) carrier.Classification {
	switch code {
	case "BUSINESS":
		return carrier.ClassificationCommercial
	case "RESIDENTIAL":
		return carrier.ClassificationResidential
	default:
		return carrier.ClassificationUnknown
	}
}

// fedexResolvedToAddress converts a resolved address to a domain address
func fedexResolvedToAddress(resolved fedexResolvedAddress) carrier.Address {
	addr := carrier.Address{
		City:        resolved.City,
		State:       resolved.StateOrProvinceCode,
		PostalCode:  resolved.PostalCode,
		CountryCode: resolved.CountryCode,
	}
	if len(resolved.StreetLinesToken) > 0 {
		addr.Street1 = resolved.StreetLinesToken[0]
	}
	if len(resolved.StreetLinesToken) > 1 {
		addr.Street2 = resolved.StreetLinesToken[1]
	}
	return addr
}

// ---------------------------------------------------------------------------
// Rating
// ---------------------------------------------------------------------------

// GetRate quotes a single service level. Vendor failures are captured in the
// result so one bad quote never aborts a rate-shopping batch.
func (c *FedExClient) GetRate(ctx context.Context, cred carrier.Credential, serviceCode string, pkg carrier.Package, origin, dest carrier.Address) carrier.RateResult {
	result := carrier.RateResult{
		ServiceCode:  carrier.DirectServiceCode(carrier.NetworkFedEx, serviceCode),
		ServiceName:  fedexServiceName(serviceCode),
		CarrierLabel: "FedEx (direct)",
	}

	payload := c.buildRateRequest(cred, serviceCode, pkg, origin, dest)
	body, err := c.doRequest(ctx, cred, "rate", http.MethodPost, fedexRatePath, payload)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	var resp fedexRateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		result.Error = fmt.Sprintf("%v: %v", carrier.ErrVendorInvalidResponse, err)
		return result
	}
	if len(resp.Output.RateReplyDetails) == 0 {
		result.Error = fmt.Sprintf("%v: no rate reply detail", carrier.ErrVendorInvalidResponse)
		return result
	}

	detail := resp.Output.RateReplyDetails[0]
	if len(detail.RatedShipmentDetails) == 0 {
		result.Error = fmt.Sprintf("%v: no rated shipment detail", carrier.ErrVendorInvalidResponse)
		return result
	}
	rated := detail.RatedShipmentDetails[0]
	price, err := decimal.NewFromString(rated.TotalNetCharge.String())
	if err != nil {
		result.Error = fmt.Sprintf("%v: bad total net charge %q", carrier.ErrVendorInvalidResponse, rated.TotalNetCharge)
		return result
	}

	result.Success = true
	result.Price = price
	result.Currency = rated.Currency
	if result.Currency == "" {
		result.Currency = "USD"
	}
	if detail.ServiceName != "" {
		result.ServiceName = detail.ServiceName
	}
	if detail.OperationalDetail != nil {
		if days, ok := fedexTransitDays(detail.OperationalDetail.TransitTime); ok {
			result.DeliveryDays = &days
		}
	}
	return result
}

// RateShop quotes all given service levels concurrently
func (c *FedExClient) RateShop(ctx context.Context, cred carrier.Credential, serviceCodes []string, pkg carrier.Package, origin, dest carrier.Address) []carrier.RateResult {
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
func (c *FedExClient) buildRateRequest(cred carrier.Credential, serviceCode string, pkg carrier.Package, origin, dest carrier.Address) fedexRateRequest {
	var payload fedexRateRequest
	payload.AccountNumber = fedexAccountNumber{Value: cred.AccountNumber}

	shipment := &payload.RequestedShipment
	shipment.Shipper = fedexRateParty{Address: fedexToAddress(origin)}
	shipment.Recipient = fedexRateParty{Address: fedexToAddress(dest)}
	shipment.ServiceType = serviceCode
	shipment.PickupType = "DROPOFF_AT_FEDEX_LOCATION"
	shipment.RateRequestType = []string{"ACCOUNT"}
	shipment.RequestedPackageLineItems = []fedexPackageLineItem{fedexToLineItem(pkg)}
	return payload
}

// fedexTransitDays maps a transit time enum ("TWO_DAYS") to a day count
func fedexTransitDays(transit string) (int, bool) {
	days, ok := map[string]int{
		"ONE_DAY":    1,
		"TWO_DAYS":   2,
		"THREE_DAYS": 3,
		"FOUR_DAYS":  4,
		"FIVE_DAYS":  5,
		"SIX_DAYS":   6,
		"SEVEN_DAYS": 7,
	}[transit]
	return days, ok
}

// ---------------------------------------------------------------------------
// Shipping
// ---------------------------------------------------------------------------

// CreateLabel purchases a 4x6 PNG label. The returned ShipmentID is the
// master tracking number, which doubles as the handle VoidLabel requires.
func (c *FedExClient) CreateLabel(ctx context.Context, cred carrier.Credential, req *carrier.ShipmentRequest) (*carrier.LabelResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payload := c.buildShipRequest(cred, req)
	body, err := c.doRequest(ctx, cred, "create_label", http.MethodPost, fedexShipPath, payload)
	if err != nil {
		return &carrier.LabelResult{
			CarrierLabel: "FedEx (direct)",
			ServiceName:  fedexServiceName(req.ServiceCode),
			Error:        err.Error(),
		}, nil
	}

	var resp fedexShipResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", carrier.ErrVendorInvalidResponse, err)
	}
	if len(resp.Output.TransactionShipments) == 0 {
		return nil, fmt.Errorf("%w: no transaction shipments", carrier.ErrVendorInvalidResponse)
	}

	shipment := resp.Output.TransactionShipments[0]
	label := &carrier.LabelResult{
		Success:        true,
		TrackingNumber: shipment.MasterTrackingNumber,
		LabelFormat:    "png",
		CarrierLabel:   "FedEx (direct)",
		ServiceName:    fedexServiceName(req.ServiceCode),
		ShipmentID:     shipment.MasterTrackingNumber,
	}
	if shipment.ServiceName != "" {
		label.ServiceName = shipment.ServiceName
	}

	if len(shipment.PieceResponses) > 0 {
		piece := shipment.PieceResponses[0]
		if piece.TrackingNumber != "" {
			label.TrackingNumber = piece.TrackingNumber
		}
		if len(piece.PackageDocuments) > 0 && piece.PackageDocuments[0].EncodedLabel != "" {
			image, err := base64.StdEncoding.DecodeString(piece.PackageDocuments[0].EncodedLabel)
			if err != nil {
				return nil, fmt.Errorf("%w: bad label image: %v", carrier.ErrVendorInvalidResponse, err)
			}
			label.LabelImage = image
			if docType := strings.ToLower(piece.PackageDocuments[0].DocType); docType != "" {
				label.LabelFormat = docType
			}
		}
	}
	if shipment.CompletedShipmentDetail != nil {
		details := shipment.CompletedShipmentDetail.ShipmentRating.ShipmentRateDetails
		if len(details) > 0 {
			if cost, err := decimal.NewFromString(details[0].TotalNetCharge.String()); err == nil {
				label.Cost = cost
				label.Currency = details[0].Currency
			}
		}
	}
	return label, nil
}

// buildShipRequest assembles the shipment payload for a 4x6 PNG label
func (c *FedExClient) buildShipRequest(cred carrier.Credential, req *carrier.ShipmentRequest) fedexShipRequest {
	var payload fedexShipRequest
	payload.LabelResponseOptions = "LABEL"
	payload.AccountNumber = fedexAccountNumber{Value: cred.AccountNumber}

	shipment := &payload.RequestedShipment
	shipment.Shipper = fedexToShipParty(req.ShipFrom)
	shipment.Recipients = []fedexShipParty{fedexToShipParty(req.ShipTo)}
	shipment.ServiceType = req.ServiceCode
	shipment.PackagingType = "YOUR_PACKAGING"
	shipment.PickupType = "DROPOFF_AT_FEDEX_LOCATION"
	shipment.ShippingChargesPayment.PaymentType = "SENDER"
	shipment.LabelSpecification.ImageType = "PNG"
	shipment.LabelSpecification.LabelStockType = "PAPER_4X6"
	if req.Reference != "" {
		shipment.CustomerReferences = []fedexCustomerReference{{
			CustomerReferenceType: "CUSTOMER_REFERENCE",
			Value:                 req.Reference,
		}}
	}
	shipment.RequestedPackageLineItems = []fedexPackageLineItem{fedexToLineItem(req.Package)}
	return payload
}

func fedexToShipParty(addr carrier.Address) fedexShipParty {
	return fedexShipParty{
		Contact: fedexContact{
			PersonName:  addr.Name,
			CompanyName: addr.Company,
			PhoneNumber: addr.Phone,
		},
		Address: fedexToAddress(addr),
	}
}

// ---------------------------------------------------------------------------
// Cancel
// ---------------------------------------------------------------------------

// VoidLabel cancels a not-yet-manifested shipment by its tracking number.
// FedEx has no separate shipment identification number; the UPS-style handle
// will not work here.
func (c *FedExClient) VoidLabel(ctx context.Context, cred carrier.Credential, trackingNumber string) (*carrier.VoidResult, error) {
	if trackingNumber == "" {
		return nil, fmt.Errorf("%w: tracking number is required", carrier.ErrVendorRequestFailed)
	}

	payload := fedexCancelRequest{
		AccountNumber:  fedexAccountNumber{Value: cred.AccountNumber},
		TrackingNumber: trackingNumber,
	}
	body, err := c.doRequest(ctx, cred, "void_label", http.MethodPut, fedexCancelPath, payload)
	if err != nil {
		return &carrier.VoidResult{Error: err.Error()}, nil
	}

	var resp fedexCancelResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", carrier.ErrVendorInvalidResponse, err)
	}
	if !resp.Output.CancelledShipment {
		return &carrier.VoidResult{Error: "fedex did not cancel the shipment"}, nil
	}
	return &carrier.VoidResult{Success: true}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// fedexServiceName resolves a vendor-native code to its display name
func fedexServiceName(serviceCode string) string {
	if entry := carrier.LookupDirect(carrier.NetworkFedEx, serviceCode); entry != nil {
		return entry.DisplayName
	}
	return "FedEx " + serviceCode
}

// fedexToAddress converts a domain address to the wire shape
func fedexToAddress(addr carrier.Address) fedexAddress {
	return fedexAddress{
		StreetLines:         addressLines(addr),
		City:                addr.City,
		StateOrProvinceCode: addr.State,
		PostalCode:          addr.PostalCode,
		CountryCode:         addr.CountryCode,
		Residential:         addr.Residential,
	}
}

// fedexToLineItem converts a domain package to the wire shape
func fedexToLineItem(pkg carrier.Package) fedexPackageLineItem {
	item := fedexPackageLineItem{
		Weight: fedexWeight{Units: "LB", Value: pkg.Weight},
	}
	if pkg.Length > 0 && pkg.Width > 0 && pkg.Height > 0 {
		item.Dimensions = &fedexDimensions{
			Length: pkg.Length,
			Width:  pkg.Width,
			Height: pkg.Height,
			Units:  "IN",
		}
	}
	return item
}

// Ensure FedExClient implements the carrier client interface
var _ carrier.Client = (*FedExClient)(nil)
