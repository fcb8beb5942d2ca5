package carrier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestCredential() Credential {
	return Credential{
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		AccountNumber: "X7842R",
		Sandbox:       true,
	}
}

func TestNewConnection(t *testing.T) {
	t.Run("valid connection starts disconnected", func(t *testing.T) {
		conn, err := NewConnection("Warehouse UPS", NetworkUPS, validTestCredential())
		require.NoError(t, err)

		assert.NotEqual(t, conn.ID.String(), "00000000-0000-0000-0000-000000000000")
		assert.Equal(t, "Warehouse UPS", conn.Nickname)
		assert.Equal(t, NetworkUPS, conn.Network)
		assert.Equal(t, ConnectionStatusDisconnected, conn.Status)
		assert.False(t, conn.IsUsable())
		assert.Nil(t, conn.LastTestedAt)
	})

	t.Run("missing nickname", func(t *testing.T) {
		_, err := NewConnection("", NetworkUPS, validTestCredential())
		assert.Error(t, err)
	})

	t.Run("unknown network", func(t *testing.T) {
		_, err := NewConnection("Warehouse", Network("dhl"), validTestCredential())
		assert.ErrorIs(t, err, ErrUnknownNetwork)
	})

	t.Run("invalid credential", func(t *testing.T) {
		cred := validTestCredential()
		cred.ClientSecret = ""
		_, err := NewConnection("Warehouse", NetworkFedEx, cred)
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})
}

func TestConnection_Credential(t *testing.T) {
	cred := validTestCredential()
	conn, err := NewConnection("Warehouse FedEx", NetworkFedEx, cred)
	require.NoError(t, err)

	assert.Equal(t, cred, conn.Credential())
}

func TestConnection_StatusTransitions(t *testing.T) {
	conn, err := NewConnection("Warehouse UPS", NetworkUPS, validTestCredential())
	require.NoError(t, err)

	testedAt := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	conn.MarkConnected(testedAt)
	assert.Equal(t, ConnectionStatusConnected, conn.Status)
	assert.True(t, conn.IsUsable())
	require.NotNil(t, conn.LastTestedAt)
	assert.Equal(t, testedAt, *conn.LastTestedAt)
	assert.Empty(t, conn.LastError)

	conn.MarkError(testedAt.Add(time.Hour), "invalid_client")
	assert.Equal(t, ConnectionStatusError, conn.Status)
	assert.False(t, conn.IsUsable())
	assert.Equal(t, "invalid_client", conn.LastError)

	conn.MarkDisconnected()
	assert.Equal(t, ConnectionStatusDisconnected, conn.Status)
	assert.Empty(t, conn.LastError)
}

func TestConnection_ServiceEnabled(t *testing.T) {
	conn, err := NewConnection("Warehouse UPS", NetworkUPS, validTestCredential())
	require.NoError(t, err)

	t.Run("empty list enables everything", func(t *testing.T) {
		assert.True(t, conn.ServiceEnabled("03"))
		assert.True(t, conn.ServiceEnabled("01"))
	})

	t.Run("pinned list restricts", func(t *testing.T) {
		conn.EnabledServices = []string{"03", "02"}
		assert.True(t, conn.ServiceEnabled("03"))
		assert.False(t, conn.ServiceEnabled("01"))
	})
}

func TestConnection_EnabledServiceCodes(t *testing.T) {
	conn, err := NewConnection("Warehouse FedEx", NetworkFedEx, validTestCredential())
	require.NoError(t, err)

	t.Run("defaults to the full network table", func(t *testing.T) {
		codes := conn.EnabledServiceCodes()
		assert.Len(t, codes, len(ServicesForNetwork(NetworkFedEx)))
		assert.Contains(t, codes, "FEDEX_GROUND")
	})

	t.Run("pinned list wins", func(t *testing.T) {
		conn.EnabledServices = []string{"FEDEX_GROUND", "FEDEX_2_DAY"}
		assert.Equal(t, []string{"FEDEX_GROUND", "FEDEX_2_DAY"}, conn.EnabledServiceCodes())
	})
}
