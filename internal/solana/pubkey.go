package solana

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKeySize is the byte length of an account address.
const PublicKeySize = 32

// Well-known program ids.
var (
	TokenProgramID    = MustPublicKey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	MetadataProgramID = MustPublicKey("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
)

// ErrInvalidPublicKey is returned when an address is not 32 bytes of base58.
var ErrInvalidPublicKey = errors.New("invalid public key")

// PublicKey is a 32-byte account address.
type PublicKey [PublicKeySize]byte

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %s: %v", ErrInvalidPublicKey, s, err)
	}
	if len(raw) != PublicKeySize {
		return pk, fmt.Errorf("%w: %s: decoded %d bytes", ErrInvalidPublicKey, s, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// MustPublicKey is ParsePublicKey that panics. Intended for constants.
func MustPublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PublicKeyFromBytes copies a 32-byte slice into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("%w: got %d bytes", ErrInvalidPublicKey, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// String returns the base58 form.
func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

// Bytes returns a copy of the key bytes.
func (pk PublicKey) Bytes() []byte {
	b := make([]byte, PublicKeySize)
	copy(b, pk[:])
	return b
}

// IsZero reports whether every byte is zero.
func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}
