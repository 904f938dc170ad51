// Package layout decodes the fixed binary layouts of SPL mint and Metaplex metadata accounts.
package layout

import (
	"encoding/binary"
	"errors"
	"fmt"

	"solana-nft-indexer/internal/solana"
)

// MintSize is the byte length of an SPL token mint account.
const MintSize = 82

// Mint account offsets.
const (
	mintAuthorityTagOffset   = 0
	mintAuthorityOffset      = 4
	supplyOffset             = 36
	decimalsOffset           = 44
	isInitializedOffset      = 45
	freezeAuthorityTagOffset = 46
	freezeAuthorityOffset    = 50
)

// ErrInvalidLength is returned when a buffer does not match the expected layout size.
var ErrInvalidLength = errors.New("invalid account length")

// Mint is a decoded SPL token mint.
// Authorities are nil when their COption tag is zero.
type Mint struct {
	MintAuthority   *solana.PublicKey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *solana.PublicKey
}

// DecodeMint decodes an 82-byte mint account. Only the length is checked.
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) != MintSize {
		return nil, fmt.Errorf("%w: mint needs %d bytes, got %d", ErrInvalidLength, MintSize, len(data))
	}

	m := &Mint{
		MintAuthority:   decodeCOptionKey(data, mintAuthorityTagOffset, mintAuthorityOffset),
		Supply:          binary.LittleEndian.Uint64(data[supplyOffset:decimalsOffset]),
		Decimals:        data[decimalsOffset],
		IsInitialized:   data[isInitializedOffset] != 0,
		FreezeAuthority: decodeCOptionKey(data, freezeAuthorityTagOffset, freezeAuthorityOffset),
	}
	return m, nil
}

// EncodeMint writes m in the mint account layout.
func EncodeMint(m *Mint) []byte {
	data := make([]byte, MintSize)
	encodeCOptionKey(data, mintAuthorityTagOffset, mintAuthorityOffset, m.MintAuthority)
	binary.LittleEndian.PutUint64(data[supplyOffset:decimalsOffset], m.Supply)
	data[decimalsOffset] = m.Decimals
	if m.IsInitialized {
		data[isInitializedOffset] = 1
	}
	encodeCOptionKey(data, freezeAuthorityTagOffset, freezeAuthorityOffset, m.FreezeAuthority)
	return data
}

func decodeCOptionKey(data []byte, tagOffset, keyOffset int) *solana.PublicKey {
	if binary.LittleEndian.Uint32(data[tagOffset:keyOffset]) == 0 {
		return nil
	}
	var pk solana.PublicKey
	copy(pk[:], data[keyOffset:keyOffset+solana.PublicKeySize])
	return &pk
}

func encodeCOptionKey(data []byte, tagOffset, keyOffset int, pk *solana.PublicKey) {
	if pk == nil {
		return
	}
	binary.LittleEndian.PutUint32(data[tagOffset:keyOffset], 1)
	copy(data[keyOffset:keyOffset+solana.PublicKeySize], pk[:])
}
