package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	addr := key.PubKey().Address()
	require.False(t, addr.IsZero())

	encoded := addr.String()
	require.Contains(t, encoded, AddressPrefix+"1")

	decoded, err := DecodeAddress(encoded)
	require.NoError(t, err)
	require.Equal(t, addr, decoded)
}

func TestDecodeAddressRejectsForeignPrefix(t *testing.T) {
	var raw [AddressLength]byte
	raw[0] = 1
	encoded := Address(raw).String()
	foreign := "cosmos" + encoded[len(AddressPrefix):]

	_, err := DecodeAddress(foreign)
	require.Error(t, err)
}

func TestModuleAddressDeterministic(t *testing.T) {
	pool := ModuleAddress("pool")
	require.Equal(t, pool, ModuleAddress(" POOL "))
	require.NotEqual(t, pool, ModuleAddress("stake-vault"))
}

func TestAddressTextMarshalling(t *testing.T) {
	addr := ModuleAddress("escrow")
	text, err := addr.MarshalText()
	require.NoError(t, err)

	var decoded Address
	require.NoError(t, decoded.UnmarshalText(text))
	require.Equal(t, addr, decoded)

	var empty Address
	require.NoError(t, empty.UnmarshalText([]byte("  ")))
	require.True(t, empty.IsZero())
}
