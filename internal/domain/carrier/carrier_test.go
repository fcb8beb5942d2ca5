package carrier

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredential_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cred    Credential
		wantErr bool
	}{
		{
			name: "valid credential",
			cred: Credential{ClientID: "id", ClientSecret: "secret", AccountNumber: "A1B2C3"},
		},
		{
			name:    "missing client id",
			cred:    Credential{ClientSecret: "secret", AccountNumber: "A1B2C3"},
			wantErr: true,
		},
		{
			name:    "missing client secret",
			cred:    Credential{ClientID: "id", AccountNumber: "A1B2C3"},
			wantErr: true,
		},
		{
			name:    "missing account number",
			cred:    Credential{ClientID: "id", ClientSecret: "secret"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cred.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCredential)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNetwork_IsValid(t *testing.T) {
	assert.True(t, NetworkUPS.IsValid())
	assert.True(t, NetworkFedEx.IsValid())
	assert.False(t, Network("usps").IsValid())
	assert.False(t, Network("").IsValid())
}

func TestSortRates(t *testing.T) {
	t.Run("successes ascending, failures last", func(t *testing.T) {
		results := []RateResult{
			{Success: true, ServiceName: "mid", Price: decimal.NewFromInt(10)},
			{Success: false, ServiceName: "failed", Error: "boom"},
			{Success: true, ServiceName: "cheap", Price: decimal.NewFromInt(5)},
		}

		SortRates(results)

		require.Len(t, results, 3)
		assert.Equal(t, "cheap", results[0].ServiceName)
		assert.Equal(t, "mid", results[1].ServiceName)
		assert.Equal(t, "failed", results[2].ServiceName)
	})

	t.Run("failures keep original order", func(t *testing.T) {
		results := []RateResult{
			{Success: false, ServiceName: "first failure"},
			{Success: true, ServiceName: "ok", Price: decimal.NewFromFloat(12.50)},
			{Success: false, ServiceName: "second failure"},
		}

		SortRates(results)

		assert.Equal(t, "ok", results[0].ServiceName)
		assert.Equal(t, "first failure", results[1].ServiceName)
		assert.Equal(t, "second failure", results[2].ServiceName)
	})

	t.Run("equal prices are stable", func(t *testing.T) {
		results := []RateResult{
			{Success: true, ServiceName: "a", Price: decimal.NewFromInt(7)},
			{Success: true, ServiceName: "b", Price: decimal.NewFromInt(7)},
		}

		SortRates(results)

		assert.Equal(t, "a", results[0].ServiceName)
		assert.Equal(t, "b", results[1].ServiceName)
	})
}

func TestDetectNetwork(t *testing.T) {
	tests := []struct {
		label  string
		want   Network
		wantOK bool
	}{
		{"UPS", NetworkUPS, true},
		{"UPS Ground", NetworkUPS, true},
		{"ups (direct)", NetworkUPS, true},
		{"FedEx", NetworkFedEx, true},
		{"FDX Home Delivery", NetworkFedEx, true},
		{"USPS First Class", "", false},
		{"DHL Express", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			network, ok := DetectNetwork(tt.label)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, network)
		})
	}
}

func TestShipmentRequest_Validate(t *testing.T) {
	valid := ShipmentRequest{
		ShipFrom:    Address{Street1: "2860 S Lamar Blvd", City: "Austin", State: "TX", PostalCode: "78704", CountryCode: "US"},
		ShipTo:      Address{Street1: "123 Main St", City: "Dallas", State: "TX", PostalCode: "75201", CountryCode: "US"},
		Package:     Package{Weight: 2.5, Length: 10, Width: 8, Height: 4},
		ServiceCode: "03",
	}

	t.Run("valid request", func(t *testing.T) {
		req := valid
		assert.NoError(t, req.Validate())
	})

	t.Run("missing service code", func(t *testing.T) {
		req := valid
		req.ServiceCode = ""
		assert.Error(t, req.Validate())
	})

	t.Run("missing ship-to street", func(t *testing.T) {
		req := valid
		req.ShipTo.Street1 = ""
		assert.Error(t, req.Validate())
	})

	t.Run("zero weight", func(t *testing.T) {
		req := valid
		req.Package.Weight = 0
		assert.Error(t, req.Validate())
	})
}
