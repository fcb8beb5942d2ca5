package carrierapi

import "encoding/json"

// ---------------------------------------------------------------------------
// OAuth
// ---------------------------------------------------------------------------

// fedexTokenResponse is the response from /oauth/token.
// Unlike UPS, expires_in is a JSON number (seconds, typically 3600).
type fedexTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// fedexErrorResponse is the common error envelope for non-2xx responses
type fedexErrorResponse struct {
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// firstMessage returns the first error message, or empty
func (e *fedexErrorResponse) firstMessage() string {
	if len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Message
}

// ---------------------------------------------------------------------------
// Address Resolution
// ---------------------------------------------------------------------------

type fedexAddress struct {
	StreetLines         []string `json:"streetLines"`
	City                string   `json:"city,omitempty"`
	StateOrProvinceCode string   `json:"stateOrProvinceCode,omitempty"`
	PostalCode          string   `json:"postalCode,omitempty"`
	CountryCode         string   `json:"countryCode"`
	Residential         bool     `json:"residential,omitempty"`
}

type fedexResolveRequest struct {
	AddressesToValidate []struct {
		Address fedexAddress `json:"address"`
	} `json:"addressesToValidate"`
}

// fedexResolvedAddress classification values: BUSINESS, RESIDENTIAL,
// MIXED, UNKNOWN.
type fedexResolvedAddress struct {
	StreetLinesToken    []string `json:"streetLinesToken"`
	City                string   `json:"city"`
	StateOrProvinceCode string   `json:"stateOrProvinceCode"`
	PostalCode          string   `json:"postalCode"`
	CountryCode         string   `json:"countryCode"`
	Classification      string   `json:"classification"`
	Attributes          struct {
		Resolved bool `json:"Resolved,string"`
		Matched  bool `json:"Matched,string"`
	} `json:"attributes"`
}

type fedexResolveResponse struct {
	Output struct {
		ResolvedAddresses []fedexResolvedAddress `json:"resolvedAddresses"`
		Alerts            []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"alerts"`
	} `json:"output"`
}

// ---------------------------------------------------------------------------
// Rating
// ---------------------------------------------------------------------------

type fedexAccountNumber struct {
	Value string `json:"value"`
}

type fedexWeight struct {
	Units string  `json:"units"` // "LB"
	Value float64 `json:"value"`
}

type fedexDimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Units  string  `json:"units"` // "IN"
}

type fedexPackageLineItem struct {
	Weight     fedexWeight      `json:"weight"`
	Dimensions *fedexDimensions `json:"dimensions,omitempty"`
}

type fedexRateParty struct {
	Address fedexAddress `json:"address"`
}

type fedexRateRequest struct {
	AccountNumber     fedexAccountNumber `json:"accountNumber"`
	RequestedShipment struct {
		Shipper                   fedexRateParty         `json:"shipper"`
		Recipient                 fedexRateParty         `json:"recipient"`
		ServiceType               string                 `json:"serviceType"`
		PickupType                string                 `json:"pickupType"`
		RateRequestType           []string               `json:"rateRequestType"`
		RequestedPackageLineItems []fedexPackageLineItem `json:"requestedPackageLineItems"`
	} `json:"requestedShipment"`
}

type fedexRatedShipmentDetail struct {
	RateType       string      `json:"rateType"`
	TotalNetCharge json.Number `json:"totalNetCharge"`
	Currency       string      `json:"currency"`
}

type fedexRateReplyDetail struct {
	ServiceType           string                     `json:"serviceType"`
	ServiceName           string                     `json:"serviceName"`
	RatedShipmentDetails  []fedexRatedShipmentDetail `json:"ratedShipmentDetails"`
	OperationalDetail     *struct {
		TransitTime string `json:"transitTime"`
	} `json:"operationalDetail,omitempty"`
	Commit *struct {
		DateDetail struct {
			DayOfWeek string `json:"dayOfWeek"`
		} `json:"dateDetail"`
	} `json:"commit,omitempty"`
}

type fedexRateResponse struct {
	Output struct {
		RateReplyDetails []fedexRateReplyDetail `json:"rateReplyDetails"`
	} `json:"output"`
}

// ---------------------------------------------------------------------------
// Shipping
// ---------------------------------------------------------------------------

type fedexContact struct {
	PersonName  string `json:"personName,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

type fedexShipParty struct {
	Contact fedexContact `json:"contact"`
	Address fedexAddress `json:"address"`
}

type fedexShipRequest struct {
	LabelResponseOptions string             `json:"labelResponseOptions"` // "LABEL"
	AccountNumber        fedexAccountNumber `json:"accountNumber"`
	RequestedShipment    struct {
		Shipper                fedexShipParty   `json:"shipper"`
		Recipients             []fedexShipParty `json:"recipients"`
		ServiceType            string           `json:"serviceType"`
		PackagingType          string           `json:"packagingType"` // "YOUR_PACKAGING"
		PickupType             string           `json:"pickupType"`
		ShippingChargesPayment struct {
			PaymentType string `json:"paymentType"` // "SENDER"
		} `json:"shippingChargesPayment"`
		LabelSpecification struct {
			ImageType      string `json:"imageType"`      // "PNG"
			LabelStockType string `json:"labelStockType"` // "PAPER_4X6"
		} `json:"labelSpecification"`
		CustomerReferences        []fedexCustomerReference `json:"customerReferences,omitempty"`
		RequestedPackageLineItems []fedexPackageLineItem   `json:"requestedPackageLineItems"`
	} `json:"requestedShipment"`
}

type fedexCustomerReference struct {
	CustomerReferenceType string `json:"customerReferenceType"` // "CUSTOMER_REFERENCE"
	Value                 string `json:"value"`
}

type fedexPackageDocument struct {
	ContentType  string `json:"contentType"`
	DocType      string `json:"docType"` // "PNG"
	EncodedLabel string `json:"encodedLabel"`
}

type fedexPieceResponse struct {
	TrackingNumber   string                 `json:"trackingNumber"`
	PackageDocuments []fedexPackageDocument `json:"packageDocuments"`
}

type fedexTransactionShipment struct {
	MasterTrackingNumber    string               `json:"masterTrackingNumber"`
	ServiceName             string               `json:"serviceName"`
	PieceResponses          []fedexPieceResponse `json:"pieceResponses"`
	CompletedShipmentDetail *struct {
		ShipmentRating struct {
			ShipmentRateDetails []fedexRatedShipmentDetail `json:"shipmentRateDetails"`
		} `json:"shipmentRating"`
	} `json:"completedShipmentDetail,omitempty"`
}

type fedexShipResponse struct {
	Output struct {
		TransactionShipments []fedexTransactionShipment `json:"transactionShipments"`
	} `json:"output"`
}

// ---------------------------------------------------------------------------
// Cancel
// ---------------------------------------------------------------------------

type fedexCancelRequest struct {
	AccountNumber  fedexAccountNumber `json:"accountNumber"`
	TrackingNumber string             `json:"trackingNumber"`
}

type fedexCancelResponse struct {
	Output struct {
		CancelledShipment bool `json:"cancelledShipment"`
	} `json:"output"`
}
