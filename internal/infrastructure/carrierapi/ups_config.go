package carrierapi

import "errors"

// UPSConfig holds configuration for the UPS REST API integration
type UPSConfig struct {
	// ProductionURL is the base URL for production accounts
	ProductionURL string
	// SandboxURL is the base URL for the customer integration environment
	SandboxURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// MaxResponseBytes caps the response body size read per call
	MaxResponseBytes int64
}

const (
	// UPSProductionAPIURL is the production API endpoint
	UPSProductionAPIURL = "https://onlinetools.ups.com"
	// UPSSandboxAPIURL is the customer integration (test) endpoint
	UPSSandboxAPIURL = "https://wwwcie.ups.com"
)

// ErrUPSConfigMissingURL is returned when both base URLs are empty
var ErrUPSConfigMissingURL = errors.New("ups: base URL is required")

// NewUPSConfig creates a UPS configuration with production defaults
func NewUPSConfig() *UPSConfig {
	return &UPSConfig{
		ProductionURL:    UPSProductionAPIURL,
		SandboxURL:       UPSSandboxAPIURL,
		TimeoutSeconds:   30,
		MaxResponseBytes: maxCarrierResponseSize,
	}
}

// Validate validates the configuration and applies defaults
func (c *UPSConfig) Validate() error {
	if c.ProductionURL == "" && c.SandboxURL == "" {
		return ErrUPSConfigMissingURL
	}
	if c.ProductionURL == "" {
		c.ProductionURL = UPSProductionAPIURL
	}
	if c.SandboxURL == "" {
		c.SandboxURL = UPSSandboxAPIURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = maxCarrierResponseSize
	}
	return nil
}

// BaseURL returns the endpoint matching the credential's environment
func (c *UPSConfig) BaseURL(sandbox bool) string {
	if sandbox {
		return c.SandboxURL
	}
	return c.ProductionURL
}
