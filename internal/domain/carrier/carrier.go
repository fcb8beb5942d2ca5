package carrier

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Carrier Errors
// ---------------------------------------------------------------------------

var (
	// Configuration errors (caller misconfiguration, never retried)
	ErrConnectionNotFound = errors.New("carrier: connection not found")
	ErrUnknownNetwork     = errors.New("carrier: unknown carrier network")
	ErrInvalidCredential  = errors.New("carrier: invalid credential")

	// Auth errors (OAuth2 exchange failed; cache entry is cleared as a side effect)
	ErrAuthFailed = errors.New("carrier: authentication failed")

	// Vendor errors (authenticated call returned non-2xx or a malformed body)
	ErrVendorRequestFailed   = errors.New("carrier: vendor request failed")
	ErrVendorInvalidResponse = errors.New("carrier: invalid vendor response")

	// Transport-level failures (DNS, reset, timeout), distinct from vendor errors
	ErrNetworkUnavailable = errors.New("carrier: network unavailable")
)

// ---------------------------------------------------------------------------
// Network
// ---------------------------------------------------------------------------

// Network identifies a carrier network with a direct integration
type Network string

const (
	// NetworkUPS is the UPS REST API network
	NetworkUPS Network = "ups"
	// NetworkFedEx is the FedEx REST API network
	NetworkFedEx Network = "fedex"
)

// IsValid returns true if the network is a supported direct integration
func (n Network) IsValid() bool {
	switch n {
	case NetworkUPS, NetworkFedEx:
		return true
	default:
		return false
	}
}

// String returns the string representation of the network
func (n Network) String() string {
	return string(n)
}

// DisplayName returns a human-readable name for the network
func (n Network) DisplayName() string {
	switch n {
	case NetworkUPS:
		return "UPS"
	case NetworkFedEx:
		return "FedEx"
	default:
		return string(n)
	}
}

// ---------------------------------------------------------------------------
// Value Objects
// ---------------------------------------------------------------------------

// Credential identifies one account's access to one carrier network.
// Immutable per connection; many connections may share one client identity,
// in which case they share one cached bearer token.
type Credential struct {
	// ClientID is the OAuth2 client identifier issued by the carrier
	ClientID string
	// ClientSecret is the OAuth2 client secret
	ClientSecret string
	// AccountNumber is the shipper account billed for labels
	AccountNumber string
	// Sandbox selects the carrier's test environment
	Sandbox bool
}

// Validate validates the credential
func (c Credential) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" || c.AccountNumber == "" {
		return ErrInvalidCredential
	}
	return nil
}

// Address is a normalized postal address submitted to or returned by a carrier
type Address struct {
	Name        string
	Company     string
	Street1     string
	Street2     string
	City        string
	State       string
	PostalCode  string
	CountryCode string
	Phone       string
	Residential bool
}

// Package holds the pre-computed physical attributes of one parcel.
// Weight is in pounds, dimensions in inches; both arrive from the
// box-packing subsystem and are treated as opaque here.
type Package struct {
	Weight float64
	Length float64
	Width  float64
	Height float64
}

// Classification is the residential/commercial determination from
// a carrier's address validation service
type Classification string

const (
	ClassificationResidential Classification = "residential"
	ClassificationCommercial  Classification = "commercial"
	ClassificationUnknown     Classification = "unknown"
)

// Message is a diagnostic message attached to a vendor result
type Message struct {
	Severity string `json:"severity"`
	Code     string `json:"code,omitempty"`
	Text     string `json:"text"`
}

// ---------------------------------------------------------------------------
// Result Types
// ---------------------------------------------------------------------------

// AddressStatus is the normalized outcome of an address validation
type AddressStatus string

const (
	// AddressStatusVerified means the vendor confirmed the address as submitted
	AddressStatusVerified AddressStatus = "verified"
	// AddressStatusWarning means the vendor returned a corrected address that
	// differs from the input
	AddressStatusWarning AddressStatus = "warning"
	// AddressStatusError means the vendor call itself failed
	AddressStatusError AddressStatus = "error"
)

// AddressCandidate is one vendor-returned candidate address
type AddressCandidate struct {
	Address        Address
	Classification Classification
}

// AddressValidation is the raw, un-ranked output of a carrier's address
// validation call. The router resolves it into an AddressResult.
type AddressValidation struct {
	Candidates     []AddressCandidate
	Classification Classification
	Messages       []Message
}

// AddressResult is the network-agnostic address validation result
type AddressResult struct {
	Status         AddressStatus  `json:"status"`
	Original       Address        `json:"original_address"`
	Matched        *Address       `json:"matched_address,omitempty"`
	Messages       []Message      `json:"messages,omitempty"`
	Classification Classification `json:"classification,omitempty"`
}

// RateResult is one service-level rate quote. Produced fresh per request and
// never persisted by this core; the caller decides whether to store it.
type RateResult struct {
	Success      bool            `json:"success"`
	ServiceCode  string          `json:"service_code"` // network-prefixed, e.g. "ups-direct:03"
	ServiceName  string          `json:"service_name"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	DeliveryDays *int            `json:"delivery_days,omitempty"`
	CarrierLabel string          `json:"carrier"`
	ConnectionID uuid.UUID       `json:"connection_id"`
	Error        string          `json:"error,omitempty"`
}

// LabelResult is the outcome of a label purchase. ShipmentID is the handle
// required later for void and is network-specific: UPS uses the shipment
// identification number, FedEx the tracking number. Callers must persist it
// if void capability is needed.
type LabelResult struct {
	Success        bool            `json:"success"`
	TrackingNumber string          `json:"tracking_number,omitempty"`
	LabelImage     []byte          `json:"label_image,omitempty"`
	LabelFormat    string          `json:"label_format,omitempty"` // "gif" or "png"
	Cost           decimal.Decimal `json:"cost"`
	Currency       string          `json:"currency,omitempty"`
	CarrierLabel   string          `json:"carrier"`
	ServiceName    string          `json:"service_name,omitempty"`
	ShipmentID     string          `json:"shipment_id,omitempty"`
	ArchiveURL     string          `json:"archive_url,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// VoidResult is the outcome of a label void/cancel
type VoidResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ConnectionTestResult reports the stages a connectivity self-test reached.
// The test never creates a shipment or incurs cost.
type ConnectionTestResult struct {
	Success          bool           `json:"success"`
	TokenAcquired    bool           `json:"token_acquired"`
	AddressValidated bool           `json:"address_validated"`
	Classification   Classification `json:"classification,omitempty"`
	MatchedAddress   *Address       `json:"matched_address,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// ShipmentRequest is the normalized input for a label purchase
type ShipmentRequest struct {
	ShipFrom    Address
	ShipTo      Address
	Package     Package
	ServiceCode string // raw vendor code, not namespaced
	Reference   string
}

// Validate validates the shipment request
func (r *ShipmentRequest) Validate() error {
	if r.ServiceCode == "" {
		return errors.New("carrier: service code is required")
	}
	if r.ShipTo.Street1 == "" || r.ShipTo.City == "" || r.ShipTo.PostalCode == "" {
		return errors.New("carrier: ship-to street, city and postal code are required")
	}
	if r.Package.Weight <= 0 {
		return errors.New("carrier: package weight must be positive")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Client Port Interface
// ---------------------------------------------------------------------------

// Client is the port interface implemented once per carrier network.
// It follows the Ports & Adapters pattern: the interface lives in the domain
// layer, the UPS and FedEx protocol adapters in the infrastructure layer.
//
// Vendor-level failures in GetRate are captured in the returned RateResult so
// a single bad quote never aborts a rate-shopping batch. TestConnection
// likewise reports vendor failures inside the result; its error return is
// reserved for invalid input.
type Client interface {
	// Network returns the network this client handles
	Network() Network

	// TestConnection flushes any cached token, performs a fresh OAuth
	// exchange and one address validation against a known good address
	TestConnection(ctx context.Context, cred Credential) (*ConnectionTestResult, error)

	// ValidateAddress submits an address and returns the vendor's candidates
	ValidateAddress(ctx context.Context, cred Credential, addr Address) (*AddressValidation, error)

	// GetRate quotes a single service level
	GetRate(ctx context.Context, cred Credential, serviceCode string, pkg Package, origin, dest Address) RateResult

	// RateShop quotes all given service levels concurrently and returns the
	// results sorted by SortRates
	RateShop(ctx context.Context, cred Credential, serviceCodes []string, pkg Package, origin, dest Address) []RateResult

	// CreateLabel purchases a 4x6 label and returns tracking number, label
	// image bytes and the network-specific shipment handle
	CreateLabel(ctx context.Context, cred Credential, req *ShipmentRequest) (*LabelResult, error)

	// VoidLabel cancels a not-yet-manifested label by the network's own
	// shipment identifier semantics
	VoidLabel(ctx context.Context, cred Credential, shipmentID string) (*VoidResult, error)
}

// ---------------------------------------------------------------------------
// Rate Ordering
// ---------------------------------------------------------------------------

// SortRates orders rate-shop results: successful quotes first by ascending
// price, failed quotes after all successes in their original order.
func SortRates(results []RateResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Success != results[j].Success {
			return results[i].Success
		}
		if !results[i].Success {
			return false // failures keep their original order
		}
		return results[i].Price.LessThan(results[j].Price)
	})
}

// DetectNetwork guesses the carrier network from a free-text display label.
// Substring matching on display strings is fragile; this is a legacy
// compatibility shim for callers that cannot supply a structured
// (network, code) pair, never the primary dispatch path.
func DetectNetwork(carrierLabel string) (Network, bool) {
	label := strings.ToLower(carrierLabel)
	switch {
	case strings.Contains(label, "ups"):
		return NetworkUPS, true
	case strings.Contains(label, "fedex"), strings.Contains(label, "fdx"):
		return NetworkFedEx, true
	default:
		return "", false
	}
}
