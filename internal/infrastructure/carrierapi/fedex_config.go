package carrierapi

import "errors"

// FedExConfig holds configuration for the FedEx REST API integration
type FedExConfig struct {
	// ProductionURL is the base URL for production accounts
	ProductionURL string
	// SandboxURL is the base URL for the FedEx sandbox environment
	SandboxURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// MaxResponseBytes caps the response body size read per call
	MaxResponseBytes int64
}

const (
	// FedExProductionAPIURL is the production API endpoint
	FedExProductionAPIURL = "https://apis.fedex.com"
	// FedExSandboxAPIURL is the sandbox API endpoint
	FedExSandboxAPIURL = "https://apis-sandbox.fedex.com"
)

// ErrFedExConfigMissingURL is returned when both base URLs are empty
var ErrFedExConfigMissingURL = errors.New("fedex: base URL is required")

// NewFedExConfig creates a FedEx configuration with production defaults
func NewFedExConfig() *FedExConfig {
	return &FedExConfig{
		ProductionURL:    FedExProductionAPIURL,
		SandboxURL:       FedExSandboxAPIURL,
		TimeoutSeconds:   30,
		MaxResponseBytes: maxCarrierResponseSize,
	}
}

// Validate validates the configuration and applies defaults
func (c *FedExConfig) Validate() error {
	if c.ProductionURL == "" && c.SandboxURL == "" {
		return ErrFedExConfigMissingURL
	}
	if c.ProductionURL == "" {
		c.ProductionURL = FedExProductionAPIURL
	}
	if c.SandboxURL == "" {
		c.SandboxURL = FedExSandboxAPIURL
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
func (c *FedExConfig) BaseURL(sandbox bool) string {
	if sandbox {
		return c.SandboxURL
	}
	return c.ProductionURL
}
