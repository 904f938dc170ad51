package layout

import (
	"errors"
	"fmt"
	"strings"

	"solana-nft-indexer/internal/domain"
	"solana-nft-indexer/internal/solana"
)

// Metaplex account keys and limits.
const (
	KeyMetadataV1 uint8 = 4

	MaxCreators          = 5
	MaxSellerFeeBasisPts = 10000
)

// ErrInvalidMetadata is returned when a metadata account cannot be decoded.
var ErrInvalidMetadata = errors.New("invalid metadata account")

// Metadata is a decoded Metaplex token metadata account.
// Text fields are sanitized.
type Metadata struct {
	Key                  uint8
	UpdateAuthority      solana.PublicKey
	Mint                 solana.PublicKey
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             []Creator
	PrimarySaleHappened  bool
	IsMutable            bool
	EditionNonce         *uint8
	TokenStandard        *uint8
	Collection           *Collection
	Uses                 *Uses
}

// Creator is a royalty recipient.
type Creator struct {
	Address  solana.PublicKey
	Verified bool
	Share    uint8
}

// Collection links the token to a collection mint.
type Collection struct {
	Verified bool
	Key      solana.PublicKey
}

// Uses describes a consumable token.
type Uses struct {
	Method    uint8
	Remaining uint64
	Total     uint64
}

// Sanitize strips NUL padding from fixed-width string slots and trims whitespace.
func Sanitize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}

// DecodeMetadata decodes a metadata account. The fields up to is_mutable are
// required; the optional tail is decoded until the first malformed field.
func DecodeMetadata(data []byte) (*Metadata, error) {
	r := newBorshReader(data)
	m := &Metadata{}

	var err error
	if m.Key, err = r.readU8(); err != nil {
		return nil, err
	}
	if m.Key != KeyMetadataV1 {
		return nil, fmt.Errorf("%w: key %d, want %d", ErrInvalidMetadata, m.Key, KeyMetadataV1)
	}
	if m.UpdateAuthority, err = r.readPubkey(); err != nil {
		return nil, err
	}
	if m.Mint, err = r.readPubkey(); err != nil {
		return nil, err
	}

	name, err := r.readString()
	if err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}
	symbol, err := r.readString()
	if err != nil {
		return nil, fmt.Errorf("symbol: %w", err)
	}
	uri, err := r.readString()
	if err != nil {
		return nil, fmt.Errorf("uri: %w", err)
	}
	m.Name, m.Symbol, m.URI = Sanitize(name), Sanitize(symbol), Sanitize(uri)

	if m.SellerFeeBasisPoints, err = r.readU16(); err != nil {
		return nil, err
	}
	if m.SellerFeeBasisPoints > MaxSellerFeeBasisPts {
		return nil, fmt.Errorf("%w: seller fee %d bps", ErrInvalidMetadata, m.SellerFeeBasisPoints)
	}

	if m.Creators, err = readCreators(r); err != nil {
		return nil, err
	}
	if m.PrimarySaleHappened, err = r.readBool(); err != nil {
		return nil, err
	}
	if m.IsMutable, err = r.readBool(); err != nil {
		return nil, err
	}

	// Older accounts end here; newer ones may be zero-padded.
	readOptionalTail(r, m)
	return m, nil
}

func readCreators(r *borshReader) ([]Creator, error) {
	present, err := r.readOption()
	if err != nil {
		return nil, fmt.Errorf("creators: %w", err)
	}
	if !present {
		return nil, nil
	}

	n, err := r.readU32()
	if err != nil {
		return nil, fmt.Errorf("creators: %w", err)
	}
	if n > MaxCreators {
		return nil, fmt.Errorf("%w: %d creators exceeds %d", ErrInvalidMetadata, n, MaxCreators)
	}

	creators := make([]Creator, 0, n)
	for i := uint32(0); i < n; i++ {
		var c Creator
		if c.Address, err = r.readPubkey(); err != nil {
			return nil, fmt.Errorf("creator %d: %w", i, err)
		}
		if c.Verified, err = r.readBool(); err != nil {
			return nil, fmt.Errorf("creator %d: %w", i, err)
		}
		if c.Share, err = r.readU8(); err != nil {
			return nil, fmt.Errorf("creator %d: %w", i, err)
		}
		creators = append(creators, c)
	}
	return creators, nil
}

func readOptionalTail(r *borshReader, m *Metadata) {
	if r.remaining() == 0 {
		return
	}
	if nonce, ok := readOptionalU8(r); ok {
		m.EditionNonce = nonce
	} else {
		return
	}
	if standard, ok := readOptionalU8(r); ok {
		m.TokenStandard = standard
	} else {
		return
	}

	present, err := r.readOption()
	if err != nil {
		return
	}
	if present {
		verified, err := r.readBool()
		if err != nil {
			return
		}
		key, err := r.readPubkey()
		if err != nil {
			return
		}
		m.Collection = &Collection{Verified: verified, Key: key}
	}

	present, err = r.readOption()
	if err != nil || !present {
		return
	}
	var u Uses
	if u.Method, err = r.readU8(); err != nil {
		return
	}
	if u.Remaining, err = r.readU64(); err != nil {
		return
	}
	if u.Total, err = r.readU64(); err != nil {
		return
	}
	m.Uses = &u
}

func readOptionalU8(r *borshReader) (*uint8, bool) {
	present, err := r.readOption()
	if err != nil {
		return nil, false
	}
	if !present {
		return nil, true
	}
	v, err := r.readU8()
	if err != nil {
		return nil, false
	}
	return &v, true
}

// EncodeMetadata writes m in the MetadataV1 layout. Strings are written as
// given, so callers may include NUL padding.
func EncodeMetadata(m *Metadata) []byte {
	w := &borshWriter{}
	key := m.Key
	if key == 0 {
		key = KeyMetadataV1
	}
	w.u8(key)
	w.pubkey(m.UpdateAuthority)
	w.pubkey(m.Mint)
	w.str(m.Name)
	w.str(m.Symbol)
	w.str(m.URI)
	w.u16(m.SellerFeeBasisPoints)

	if m.Creators == nil {
		w.boolean(false)
	} else {
		w.boolean(true)
		w.u32(uint32(len(m.Creators)))
		for _, c := range m.Creators {
			w.pubkey(c.Address)
			w.boolean(c.Verified)
			w.u8(c.Share)
		}
	}

	w.boolean(m.PrimarySaleHappened)
	w.boolean(m.IsMutable)

	writeOptionalU8(w, m.EditionNonce)
	writeOptionalU8(w, m.TokenStandard)
	if m.Collection == nil {
		w.boolean(false)
	} else {
		w.boolean(true)
		w.boolean(m.Collection.Verified)
		w.pubkey(m.Collection.Key)
	}
	if m.Uses == nil {
		w.boolean(false)
	} else {
		w.boolean(true)
		w.u8(m.Uses.Method)
		w.u64(m.Uses.Remaining)
		w.u64(m.Uses.Total)
	}
	return w.buf
}

func writeOptionalU8(w *borshWriter, v *uint8) {
	if v == nil {
		w.boolean(false)
		return
	}
	w.boolean(true)
	w.u8(*v)
}

// Record converts decoded metadata into a storable row.
// An empty symbol is stored as NULL.
func (m *Metadata) Record(metadataAddress string) *domain.MetadataRecord {
	rec := &domain.MetadataRecord{
		MintAddress:          m.Mint.String(),
		Name:                 m.Name,
		URI:                  m.URI,
		SellerFeeBasisPoints: m.SellerFeeBasisPoints,
		UpdateAuthority:      m.UpdateAuthority.String(),
		PrimarySaleHappened:  m.PrimarySaleHappened,
		IsMutable:            m.IsMutable,
		TokenStandard:        m.TokenStandard,
	}
	if metadataAddress != "" {
		addr := metadataAddress
		rec.MetadataAddress = &addr
	}
	if m.Symbol != "" {
		symbol := m.Symbol
		rec.Symbol = &symbol
	}
	if m.Collection != nil {
		rec.Collection = &domain.Collection{
			Key:      m.Collection.Key.String(),
			Verified: m.Collection.Verified,
		}
	}
	for _, c := range m.Creators {
		rec.Creators = append(rec.Creators, domain.Creator{
			Address:  c.Address.String(),
			Verified: c.Verified,
			Share:    c.Share,
		})
	}
	return rec
}
