package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressLength is the size in bytes of every ledger identity.
const AddressLength = 20

// AddressPrefix is the human-readable part used when bech32 encoding
// identities.
const AddressPrefix = "ryft"

var errInvalidAddressLength = errors.New("address must be 20 bytes long")

// Address identifies a party, vault or authority on the ledger. The raw array
// form keeps records RLP encodable without custom codecs.
type Address [AddressLength]byte

// NewAddress copies b into an Address. It panics when b is not exactly 20 bytes,
// mirroring the behaviour of the key helpers which always produce valid input.
func NewAddress(b []byte) Address {
	if len(b) != AddressLength {
		panic(errInvalidAddressLength)
	}
	var addr Address
	copy(addr[:], b)
	return addr
}

// ModuleAddress derives the deterministic identity of a program-owned account
// such as a vault or signing authority.
func ModuleAddress(name string) Address {
	digest := crypto.Keccak256([]byte("ryft/module/" + strings.ToLower(strings.TrimSpace(name))))
	return NewAddress(digest[12:])
}

func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(AddressPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Bytes returns a copy of the raw identity bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText encodes the address in bech32 form for JSON and TOML.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText accepts a bech32 encoded address. Empty input yields the zero
// address.
func (a *Address) UnmarshalText(text []byte) error {
	trimmed := strings.TrimSpace(string(text))
	if trimmed == "" {
		*a = Address{}
		return nil
	}
	decoded, err := DecodeAddress(trimmed)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(strings.TrimSpace(addrStr))
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != AddressPrefix {
		return Address{}, fmt.Errorf("unexpected address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != AddressLength {
		return Address{}, errInvalidAddressLength
	}
	return NewAddress(conv), nil
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

func (k *PublicKey) Address() Address {
	return Address(crypto.PubkeyToAddress(*k.PublicKey))
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}
