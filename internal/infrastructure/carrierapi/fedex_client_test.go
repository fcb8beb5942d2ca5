package carrierapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/domain/carrier"
)

func fedexTestCredential() carrier.Credential {
	return carrier.Credential{
		ClientID:      "fedex-client",
		ClientSecret:  "fedex-secret",
		AccountNumber: "740561073",
		Sandbox:       true,
	}
}

// newFedExTestClient wires a FedEx client against an httptest server
func newFedExTestClient(t *testing.T, handler http.Handler) (*FedExClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := NewFedExConfig()
	config.SandboxURL = server.URL
	client, err := NewFedExClient(config, NewTokenStore())
	require.NoError(t, err)
	return client, server
}

// fedexTokenHandler serves the OAuth endpoint and counts exchanges
func fedexTokenHandler(t *testing.T, exchanges *int32) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(exchanges, 1)

		// FedEx carries credentials in the form body, never Basic auth
		_, _, hasBasic := r.BasicAuth()
		assert.False(t, hasBasic)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "fedex-client", r.PostForm.Get("client_id"))
		assert.Equal(t, "fedex-secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fedex-token","token_type":"bearer","expires_in":3600,"scope":"CXS"}`))
	}
}

func TestFedExClient_Token(t *testing.T) {
	var exchanges int32
	mux := http.NewServeMux()
	mux.HandleFunc(fedexOAuthPath, fedexTokenHandler(t, &exchanges))

	client, _ := newFedExTestClient(t, mux)

	token, err := client.token(context.Background(), fedexTestCredential())
	require.NoError(t, err)
	assert.Equal(t, "fedex-token", token)

	_, err = client.token(context.Background(), fedexTestCredential())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanges))
}

func TestFedExClient_Token_BadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(fedexOAuthPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"code":"NOT.AUTHORIZED.ERROR","message":"The given client credentials were not valid"}]}`))
	})

	client, _ := newFedExTestClient(t, mux)

	_, err := client.token(context.Background(), fedexTestCredential())
	assert.ErrorIs(t, err, carrier.ErrAuthFailed)
}

func TestFedExClient_ValidateAddress(t *testing.T) {
	var exchanges int32
	mux := http.NewServeMux()
	mux.HandleFunc(fedexOAuthPath, fedexTokenHandler(t, &exchanges))
	mux.HandleFunc(fedexResolvePath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer fedex-token", r.Header.Get("Authorization"))

		var req fedexResolveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.AddressesToValidate, 1)
		assert.Equal(t, []string{"123 Main St"}, req.AddressesToValidate[0].Address.StreetLines)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output":{"resolvedAddresses":[{
			"streetLinesToken":["123 MAIN ST"],
			"city":"AUSTIN","stateOrProvinceCode":"TX","postalCode":"78701-1234","countryCode":"US",
			"classification":"RESIDENTIAL",
			"attributes":{"Resolved":"true","Matched":"true"}
		}]}}`))
	})

	client, _ := newFedExTestClient(t, mux)

	validation, err := client.ValidateAddress(context.Background(), fedexTestCredential(), carrier.Address{
		Street1: "123 Main St", City: "Austin", State: "TX", PostalCode: "78701", CountryCode: "US",
	})
	require.NoError(t, err)

	require.Len(t, validation.Candidates, 1)
	assert.Equal(t, carrier.ClassificationResidential, validation.Classification)
	assert.Equal(t, "123 MAIN ST", validation.Candidates[0].Address.Street1)
	assert.Equal(t, "78701-1234", validation.Candidates[0].Address.PostalCode)
}

func TestFedExClient_GetRate(t *testing.T) {
	var exchanges int32
	mux := http.NewServeMux()
	mux.HandleFunc(fedexOAuthPath, fedexTokenHandler(t, &exchanges))
	mux.HandleFunc(fedexRatePath, func(w http.ResponseWriter, r *http.Request) {
		var req fedexRateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "740561073", req.AccountNumber.Value)
		assert.Equal(t, "FEDEX_GROUND", req.RequestedShipment.ServiceType)
		assert.Equal(t, []string{"ACCOUNT"}, req.RequestedShipment.RateRequestType)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output":{"rateReplyDetails":[{
			"serviceType":"FEDEX_GROUND","serviceName":"FedEx Ground",
			"ratedShipmentDetails":[{"rateType":"ACCOUNT","totalNetCharge":11.02,"currency":"USD"}],
			"operationalDetail":{"transitTime":"THREE_DAYS"}
		}]}}`))
	})

	client, _ := newFedExTestClient(t, mux)

	origin := carrier.Address{Street1: "2860 S Lamar Blvd", City: "Austin", State: "TX", PostalCode: "78704", CountryCode: "US"}
	dest := carrier.Address{Street1: "123 Main St", City: "Dallas", State: "TX", PostalCode: "75201", CountryCode: "US"}
	result := client.GetRate(context.Background(), fedexTestCredential(), "FEDEX_GROUND", carrier.Package{Weight: 2, Length: 10, Width: 8, Height: 4}, origin, dest)

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "fedex-direct:FEDEX_GROUND", result.ServiceCode)
	assert.Equal(t, "FedEx Ground", result.ServiceName)
	assert.Equal(t, "11.02", result.Price.String())
	assert.Equal(t, "USD", result.Currency)
	require.NotNil(t, result.DeliveryDays)
	assert.Equal(t, 3, *result.DeliveryDays)
}

func TestFedExClient_GetRate_MissingReplyDetail(t *testing.T) {
	var exchanges int32
	mux := http.NewServeMux()
	mux.HandleFunc(fedexOAuthPath, fedexTokenHandler(t, &exchanges))
	mux.HandleFunc(fedexRatePath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output":{"rateReplyDetails":[]}}`))
	})

	client, _ := newFedExTestClient(t, mux)

	result := client.GetRate(context.Background(), fedexTestCredential(), "FEDEX_GROUND", carrier.Package{Weight: 1}, carrier.Address{}, carrier.Address{})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no rate reply detail")
}

func TestFedExClient_RateShop_OrdersResults(t *testing.T) {
	var exchanges int32
	mux := http.NewServeMux()
	mux.HandleFunc(fedexOAuthPath, fedexTokenHandler(t, &exchanges))
	mux.HandleFunc(fedexRatePath, func(w http.ResponseWriter, r *http.Request) {
		var req fedexRateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		switch req.RequestedShipment.ServiceType {
		case "FEDEX_GROUND":
			_, _ = w.Write([]byte(`{"output":{"rateReplyDetails":[{"serviceType":"FEDEX_GROUND","serviceName":"FedEx Ground","ratedShipmentDetails":[{"totalNetCharge":11.02,"currency":"USD"}]}]}}`))
		case "FEDEX_2_DAY":
			_, _ = w.Write([]byte(`{"output":{"rateReplyDetails":[{"serviceType":"FEDEX_2_DAY","serviceName":"FedEx 2Day","ratedShipmentDetails":[{"totalNetCharge":27.55,"currency":"USD"}]}]}}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errors":[{"code":"RATE.SERVICE.UNAVAILABLE","message":"Service not available"}]}`))
		}
	})

	client, _ := newFedExTestClient(t, mux)

	results := client.RateShop(context.Background(), fedexTestCredential(),
		[]string{"FIRST_OVERNIGHT", "FEDEX_2_DAY", "FEDEX_GROUND"},
		carrier.Package{Weight: 2}, carrier.Address{}, carrier.Address{})

	require.Len(t, results, 3)
	assert.Equal(t, "fedex-direct:FEDEX_GROUND", results[0].ServiceCode)
	assert.Equal(t, "fedex-direct:FEDEX_2_DAY", results[1].ServiceCode)
	assert.False(t, results[2].Success)
	assert.Equal(t, "fedex-direct:FIRST_OVERNIGHT", results[2].ServiceCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanges))
}

func TestFedExClient_CreateLabel(t *testing.T) {
	labelBytes := []byte("fake-png-label")
	encoded := base64.StdEncoding.EncodeToString(labelBytes)

	var exchanges int32
	mux := http.NewServeMux()
	mux.HandleFunc(fedexOAuthPath, fedexTokenHandler(t, &exchanges))
	mux.HandleFunc(fedexShipPath, func(w http.ResponseWriter, r *http.Request) {
		var req fedexShipRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "LABEL", req.LabelResponseOptions)
		assert.Equal(t, "GROUND_HOME_DELIVERY", req.RequestedShipment.ServiceType)
		assert.Equal(t, "PNG", req.RequestedShipment.LabelSpecification.ImageType)
		assert.Equal(t, "PAPER_4X6", req.RequestedShipment.LabelSpecification.LabelStockType)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output":{"transactionShipments":[{
			"masterTrackingNumber":"794892427712",
			"serviceName":"FedEx Home Delivery",
			"pieceResponses":[{"trackingNumber":"794892427712","packageDocuments":[{"contentType":"LABEL","docType":"PNG","encodedLabel":"` + encoded + `"}]}],
			"completedShipmentDetail":{"shipmentRating":{"shipmentRateDetails":[{"totalNetCharge":12.84,"currency":"USD"}]}}
		}]}}`))
	})

	client, _ := newFedExTestClient(t, mux)

	label, err := client.CreateLabel(context.Background(), fedexTestCredential(), &carrier.ShipmentRequest{
		ShipFrom:    carrier.Address{Name: "Warehouse", Street1: "2860 S Lamar Blvd", City: "Austin", State: "TX", PostalCode: "78704", CountryCode: "US"},
		ShipTo:      carrier.Address{Name: "Jane Doe", Street1: "123 Main St", City: "Dallas", State: "TX", PostalCode: "75201", CountryCode: "US", Residential: true},
		Package:     carrier.Package{Weight: 2, Length: 10, Width: 8, Height: 4},
		ServiceCode: "GROUND_HOME_DELIVERY",
	})
	require.NoError(t, err)

	assert.True(t, label.Success)
	assert.Equal(t, "794892427712", label.TrackingNumber)
	// FedEx voids by tracking number, so it doubles as the shipment handle
	assert.Equal(t, "794892427712", label.ShipmentID)
	assert.Equal(t, labelBytes, label.LabelImage)
	assert.Equal(t, "png", label.LabelFormat)
	assert.Equal(t, "12.84", label.Cost.String())
	assert.Equal(t, "FedEx Home Delivery", label.ServiceName)
}

func TestFedExClient_VoidLabel_UsesTrackingNumber(t *testing.T) {
	var exchanges int32
	var cancelled fedexCancelRequest

	mux := http.NewServeMux()
	mux.HandleFunc(fedexOAuthPath, fedexTokenHandler(t, &exchanges))
	mux.HandleFunc(fedexCancelPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&cancelled))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output":{"cancelledShipment":true}}`))
	})

	client, _ := newFedExTestClient(t, mux)

	result, err := client.VoidLabel(context.Background(), fedexTestCredential(), "794892427712")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "794892427712", cancelled.TrackingNumber)
	assert.Equal(t, "740561073", cancelled.AccountNumber.Value)
}

func TestFedExClient_VoidLabel_NotCancelled(t *testing.T) {
	var exchanges int32
	mux := http.NewServeMux()
	mux.HandleFunc(fedexOAuthPath, fedexTokenHandler(t, &exchanges))
	mux.HandleFunc(fedexCancelPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output":{"cancelledShipment":false}}`))
	})

	client, _ := newFedExTestClient(t, mux)

	result, err := client.VoidLabel(context.Background(), fedexTestCredential(), "794892427712")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestFedExClient_TestConnection(t *testing.T) {
	var exchanges int32
	mux := http.NewServeMux()
	mux.HandleFunc(fedexOAuthPath, fedexTokenHandler(t, &exchanges))
	mux.HandleFunc(fedexResolvePath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output":{"resolvedAddresses":[{
			"streetLinesToken":["3875 AIRWAYS BLVD"],
			"city":"MEMPHIS","stateOrProvinceCode":"TN","postalCode":"38116","countryCode":"US",
			"classification":"BUSINESS"
		}]}}`))
	})

	client, _ := newFedExTestClient(t, mux)

	// Seed a cached token; the test must discard it and re-authenticate
	_, err := client.token(context.Background(), fedexTestCredential())
	require.NoError(t, err)

	result, err := client.TestConnection(context.Background(), fedexTestCredential())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.TokenAcquired)
	assert.True(t, result.AddressValidated)
	assert.Equal(t, carrier.ClassificationCommercial, result.Classification)
	require.NotNil(t, result.MatchedAddress)
	assert.Equal(t, "3875 AIRWAYS BLVD", result.MatchedAddress.Street1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&exchanges), "self-test must perform a fresh exchange")
}
