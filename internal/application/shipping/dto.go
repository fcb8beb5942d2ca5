package shipping

import (
	"time"

	"github.com/google/uuid"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/domain/carrier"
)

// ---------------------------------------------------------------------------
// Connection DTOs
// ---------------------------------------------------------------------------

// CreateConnectionRequest represents a request to store a carrier connection
type CreateConnectionRequest struct {
	Nickname        string   `json:"nickname" validate:"required,max=100"`
	Network         string   `json:"network" validate:"required,oneof=ups fedex"`
	ClientID        string   `json:"client_id" validate:"required"`
	ClientSecret    string   `json:"client_secret" validate:"required"`
	AccountNumber   string   `json:"account_number" validate:"required"`
	Sandbox         bool     `json:"sandbox"`
	EnabledServices []string `json:"enabled_services,omitempty"`
}

// UpdateConnectionRequest represents a partial connection update
type UpdateConnectionRequest struct {
	Nickname        *string   `json:"nickname,omitempty"`
	ClientID        *string   `json:"client_id,omitempty"`
	ClientSecret    *string   `json:"client_secret,omitempty"`
	AccountNumber   *string   `json:"account_number,omitempty"`
	Sandbox         *bool     `json:"sandbox,omitempty"`
	EnabledServices *[]string `json:"enabled_services,omitempty"`
}

// ConnectionResponse represents a connection in API responses. The client
// secret is never echoed back.
type ConnectionResponse struct {
	ID              uuid.UUID                `json:"id"`
	Nickname        string                   `json:"nickname"`
	Network         carrier.Network          `json:"network"`
	NetworkName     string                   `json:"network_name"`
	ClientID        string                   `json:"client_id"`
	AccountNumber   string                   `json:"account_number"`
	Sandbox         bool                     `json:"sandbox"`
	EnabledServices []string                 `json:"enabled_services"`
	Status          carrier.ConnectionStatus `json:"status"`
	LastTestedAt    *time.Time               `json:"last_tested_at,omitempty"`
	LastError       string                   `json:"last_error,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// ToConnectionResponse converts a connection to its API representation
func ToConnectionResponse(conn *carrier.Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:              conn.ID,
		Nickname:        conn.Nickname,
		Network:         conn.Network,
		NetworkName:     conn.Network.DisplayName(),
		ClientID:        conn.ClientID,
		AccountNumber:   conn.AccountNumber,
		Sandbox:         conn.Sandbox,
		EnabledServices: conn.EnabledServices,
		Status:          conn.Status,
		LastTestedAt:    conn.LastTestedAt,
		LastError:       conn.LastError,
		CreatedAt:       conn.CreatedAt,
		UpdatedAt:       conn.UpdatedAt,
	}
}

// ---------------------------------------------------------------------------
// Operation DTOs
// ---------------------------------------------------------------------------

// AddressDTO is the wire shape for addresses in requests
type AddressDTO struct {
	Name        string `json:"name,omitempty"`
	Company     string `json:"company,omitempty"`
	Street1     string `json:"street1" validate:"required"`
	Street2     string `json:"street2,omitempty"`
	City        string `json:"city" validate:"required"`
	State       string `json:"state" validate:"required"`
	PostalCode  string `json:"postal_code" validate:"required"`
	CountryCode string `json:"country_code" validate:"required,len=2"`
	Phone       string `json:"phone,omitempty"`
	Residential bool   `json:"residential,omitempty"`
}

// ToAddress converts the DTO to the domain value object
func (d AddressDTO) ToAddress() carrier.Address {
	return carrier.Address{
		Name:        d.Name,
		Company:     d.Company,
		Street1:     d.Street1,
		Street2:     d.Street2,
		City:        d.City,
		State:       d.State,
		PostalCode:  d.PostalCode,
		CountryCode: d.CountryCode,
		Phone:       d.Phone,
		Residential: d.Residential,
	}
}

// PackageDTO is the wire shape for parcel attributes. Weight in pounds,
// dimensions in inches, pre-computed by the box-packing subsystem.
type PackageDTO struct {
	Weight float64 `json:"weight" validate:"required,gt=0"`
	Length float64 `json:"length" validate:"gte=0"`
	Width  float64 `json:"width" validate:"gte=0"`
	Height float64 `json:"height" validate:"gte=0"`
}

// ToPackage converts the DTO to the domain value object
func (d PackageDTO) ToPackage() carrier.Package {
	return carrier.Package{Weight: d.Weight, Length: d.Length, Width: d.Width, Height: d.Height}
}

// ValidateAddressRequest represents an address validation request
type ValidateAddressRequest struct {
	Address AddressDTO `json:"address" validate:"required"`
}

// RateRequest represents a single-service rate request
type RateRequest struct {
	ServiceCode string     `json:"service_code" validate:"required"`
	Package     PackageDTO `json:"package" validate:"required"`
	Origin      AddressDTO `json:"origin" validate:"required"`
	Destination AddressDTO `json:"destination" validate:"required"`
}

// RateShopRequest represents a multi-service rate request. With no explicit
// service codes, the connection's enabled services are quoted.
type RateShopRequest struct {
	ServiceCodes []string   `json:"service_codes,omitempty"`
	Package      PackageDTO `json:"package" validate:"required"`
	Origin       AddressDTO `json:"origin" validate:"required"`
	Destination  AddressDTO `json:"destination" validate:"required"`
}

// CreateLabelRequest represents a label purchase request
type CreateLabelRequest struct {
	ServiceCode string     `json:"service_code" validate:"required"`
	ShipFrom    AddressDTO `json:"ship_from" validate:"required"`
	ShipTo      AddressDTO `json:"ship_to" validate:"required"`
	Package     PackageDTO `json:"package" validate:"required"`
	Reference   string     `json:"reference,omitempty"`
}

// ToShipmentRequest converts the DTO to the domain request
func (d *CreateLabelRequest) ToShipmentRequest() *carrier.ShipmentRequest {
	return &carrier.ShipmentRequest{
		ShipFrom:    d.ShipFrom.ToAddress(),
		ShipTo:      d.ShipTo.ToAddress(),
		Package:     d.Package.ToPackage(),
		ServiceCode: d.ServiceCode,
		Reference:   d.Reference,
	}
}

// VoidLabelRequest represents a void request. The handle is network-specific:
// the UPS shipment identification number or the FedEx tracking number, as
// returned in LabelResult.ShipmentID.
type VoidLabelRequest struct {
	ShipmentID string `json:"shipment_id" validate:"required"`
}
