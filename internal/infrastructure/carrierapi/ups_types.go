package carrierapi

import "encoding/json"

// maxCarrierResponseSize limits the response body size to prevent memory
// exhaustion. Label responses carry a base64 image, so this is generous.
const maxCarrierResponseSize = 10 * 1024 * 1024 // 10MB max response

// oneOrMany tolerates vendor fields that are serialized as a single object
// when one element exists and as an array otherwise. UPS does this for
// Candidate, RatedShipment and PackageResults. Normalizing at the decode
// boundary keeps the object-or-array quirk out of the business logic.
type oneOrMany[T any] []T

// UnmarshalJSON implements json.Unmarshaler
func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, (*[]T)(o))
	}
	var single T
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*o = oneOrMany[T]{single}
	return nil
}

// ---------------------------------------------------------------------------
// OAuth
// ---------------------------------------------------------------------------

// upsTokenResponse is the response from /security/v1/oauth/token.
// UPS serializes expires_in as a string ("14399"), not a number.
type upsTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   string `json:"expires_in"`
	Status      string `json:"status"`
}

// upsErrorResponse is the common error envelope for non-2xx responses
type upsErrorResponse struct {
	Response struct {
		Errors []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"response"`
}

// firstMessage returns the first error message, or empty
func (e *upsErrorResponse) firstMessage() string {
	if len(e.Response.Errors) == 0 {
		return ""
	}
	return e.Response.Errors[0].Message
}

// ---------------------------------------------------------------------------
// Address Validation (XAV)
// ---------------------------------------------------------------------------

type upsAddressKeyFormat struct {
	ConsigneeName       string   `json:"ConsigneeName,omitempty"`
	AddressLine         []string `json:"AddressLine"`
	PoliticalDivision2  string   `json:"PoliticalDivision2"` // city
	PoliticalDivision1  string   `json:"PoliticalDivision1"` // state
	PostcodePrimaryLow  string   `json:"PostcodePrimaryLow"`
	PostcodeExtendedLow string   `json:"PostcodeExtendedLow,omitempty"`
	CountryCode         string   `json:"CountryCode"`
}

type upsXAVRequest struct {
	XAVRequest struct {
		AddressKeyFormat upsAddressKeyFormat `json:"AddressKeyFormat"`
	} `json:"XAVRequest"`
}

type upsXAVCandidate struct {
	AddressKeyFormat upsAddressKeyFormat `json:"AddressKeyFormat"`
}

// upsXAVResponse is the XAV response. AddressClassification codes:
// 0 unknown, 1 commercial, 2 residential.
type upsXAVResponse struct {
	XAVResponse struct {
		ValidAddressIndicator     *struct{} `json:"ValidAddressIndicator,omitempty"`
		AmbiguousAddressIndicator *struct{} `json:"AmbiguousAddressIndicator,omitempty"`
		NoCandidatesIndicator     *struct{} `json:"NoCandidatesIndicator,omitempty"`
		AddressClassification     *struct {
			Code        string `json:"Code"`
			Description string `json:"Description"`
		} `json:"AddressClassification,omitempty"`
		Candidate oneOrMany[upsXAVCandidate] `json:"Candidate,omitempty"`
	} `json:"XAVResponse"`
}

// ---------------------------------------------------------------------------
// Rating
// ---------------------------------------------------------------------------

type upsCodeDescription struct {
	Code        string `json:"Code"`
	Description string `json:"Description,omitempty"`
}

type upsMonetary struct {
	CurrencyCode  string `json:"CurrencyCode"`
	MonetaryValue string `json:"MonetaryValue"`
}

type upsRateAddress struct {
	AddressLine                 []string `json:"AddressLine,omitempty"`
	City                        string   `json:"City,omitempty"`
	StateProvinceCode           string   `json:"StateProvinceCode,omitempty"`
	PostalCode                  string   `json:"PostalCode"`
	CountryCode                 string   `json:"CountryCode"`
	ResidentialAddressIndicator *string  `json:"ResidentialAddressIndicator,omitempty"`
}

type upsRateParty struct {
	Name          string         `json:"Name,omitempty"`
	ShipperNumber string         `json:"ShipperNumber,omitempty"`
	Address       upsRateAddress `json:"Address"`
}

type upsDimensions struct {
	UnitOfMeasurement upsCodeDescription `json:"UnitOfMeasurement"`
	Length            string             `json:"Length"`
	Width             string             `json:"Width"`
	Height            string             `json:"Height"`
}

type upsPackageWeight struct {
	UnitOfMeasurement upsCodeDescription `json:"UnitOfMeasurement"`
	Weight            string             `json:"Weight"`
}

type upsRatePackage struct {
	PackagingType upsCodeDescription `json:"PackagingType"`
	Dimensions    upsDimensions      `json:"Dimensions"`
	PackageWeight upsPackageWeight   `json:"PackageWeight"`
}

type upsRateRequest struct {
	RateRequest struct {
		Request struct {
			RequestOption string `json:"RequestOption"` // "Rate" for single service
		} `json:"Request"`
		Shipment struct {
			Shipper  upsRateParty       `json:"Shipper"`
			ShipTo   upsRateParty       `json:"ShipTo"`
			ShipFrom upsRateParty       `json:"ShipFrom"`
			Service  upsCodeDescription `json:"Service"`
			Package  []upsRatePackage   `json:"Package"`
		} `json:"Shipment"`
	} `json:"RateRequest"`
}

type upsRatedShipment struct {
	Service            upsCodeDescription `json:"Service"`
	TotalCharges       upsMonetary        `json:"TotalCharges"`
	GuaranteedDelivery *struct {
		BusinessDaysInTransit string `json:"BusinessDaysInTransit"`
	} `json:"GuaranteedDelivery,omitempty"`
}

type upsRateResponse struct {
	RateResponse struct {
		RatedShipment oneOrMany[upsRatedShipment] `json:"RatedShipment"`
	} `json:"RateResponse"`
}

// ---------------------------------------------------------------------------
// Shipping
// ---------------------------------------------------------------------------

type upsShipAddress struct {
	AddressLine                 []string `json:"AddressLine"`
	City                        string   `json:"City"`
	StateProvinceCode           string   `json:"StateProvinceCode"`
	PostalCode                  string   `json:"PostalCode"`
	CountryCode                 string   `json:"CountryCode"`
	ResidentialAddressIndicator *string  `json:"ResidentialAddressIndicator,omitempty"`
}

type upsShipParty struct {
	Name          string         `json:"Name"`
	AttentionName string         `json:"AttentionName,omitempty"`
	Phone         *struct {
		Number string `json:"Number"`
	} `json:"Phone,omitempty"`
	ShipperNumber string         `json:"ShipperNumber,omitempty"`
	Address       upsShipAddress `json:"Address"`
}

type upsShipRequest struct {
	ShipmentRequest struct {
		Request struct {
			RequestOption string `json:"RequestOption"` // "nonvalidate"
		} `json:"Request"`
		Shipment struct {
			Description    string       `json:"Description,omitempty"`
			Shipper        upsShipParty `json:"Shipper"`
			ShipTo         upsShipParty `json:"ShipTo"`
			ShipFrom       upsShipParty `json:"ShipFrom"`
			PaymentInformation struct {
				ShipmentCharge struct {
					Type        string `json:"Type"` // "01" = transportation
					BillShipper struct {
						AccountNumber string `json:"AccountNumber"`
					} `json:"BillShipper"`
				} `json:"ShipmentCharge"`
			} `json:"PaymentInformation"`
			Service          upsCodeDescription `json:"Service"`
			ReferenceNumber  *upsReference      `json:"ReferenceNumber,omitempty"`
			Package          []upsShipPackage   `json:"Package"`
		} `json:"Shipment"`
		LabelSpecification struct {
			LabelImageFormat upsCodeDescription `json:"LabelImageFormat"` // "GIF"
			LabelStockSize   struct {
				Height string `json:"Height"` // "6"
				Width  string `json:"Width"`  // "4"
			} `json:"LabelStockSize"`
		} `json:"LabelSpecification"`
	} `json:"ShipmentRequest"`
}

type upsReference struct {
	Code  string `json:"Code,omitempty"`
	Value string `json:"Value"`
}

type upsShipPackage struct {
	Description   string             `json:"Description,omitempty"`
	Packaging     upsCodeDescription `json:"Packaging"` // "02" = customer supplied
	Dimensions    upsDimensions      `json:"Dimensions"`
	PackageWeight upsPackageWeight   `json:"PackageWeight"`
}

type upsPackageResult struct {
	TrackingNumber string `json:"TrackingNumber"`
	ShippingLabel  struct {
		ImageFormat  upsCodeDescription `json:"ImageFormat"`
		GraphicImage string             `json:"GraphicImage"` // base64
	} `json:"ShippingLabel"`
}

type upsShipResponse struct {
	ShipmentResponse struct {
		ShipmentResults struct {
			ShipmentIdentificationNumber string `json:"ShipmentIdentificationNumber"`
			ShipmentCharges              struct {
				TotalCharges upsMonetary `json:"TotalCharges"`
			} `json:"ShipmentCharges"`
			PackageResults oneOrMany[upsPackageResult] `json:"PackageResults"`
		} `json:"ShipmentResults"`
	} `json:"ShipmentResponse"`
}

// ---------------------------------------------------------------------------
// Void
// ---------------------------------------------------------------------------

type upsVoidResponse struct {
	VoidShipmentResponse struct {
		SummaryResult struct {
			Status upsCodeDescription `json:"Status"` // "1" = voided
		} `json:"SummaryResult"`
	} `json:"VoidShipmentResponse"`
}
