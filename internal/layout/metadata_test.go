package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-nft-indexer/internal/solana"
)

func u8Ptr(v uint8) *uint8 {
	return &v
}

func sampleMetadata() *Metadata {
	return &Metadata{
		Key:                  KeyMetadataV1,
		UpdateAuthority:      solana.TokenProgramID,
		Mint:                 solana.MustPublicKey("So11111111111111111111111111111111111111112"),
		Name:                 "Cool Ape",
		Symbol:               "APE",
		URI:                  "https://x/1.json",
		SellerFeeBasisPoints: 500,
		Creators: []Creator{
			{Address: solana.MetadataProgramID, Verified: true, Share: 100},
		},
		PrimarySaleHappened: true,
		IsMutable:           true,
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Cool Ape\x00\x00\x00\x00", "Cool Ape"},
		{"  padded  ", "padded"},
		{"\x00\x00\x00", ""},
		{"in\x00side", "inside"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in), "input %q", tt.in)
	}
}

func TestDecodeMetadata_SanitizesPaddedSlots(t *testing.T) {
	raw := sampleMetadata()
	raw.Name = "Cool Ape" + strings.Repeat("\x00", 24)
	raw.Symbol = "APE" + strings.Repeat("\x00", 7)
	raw.URI = "https://x/1.json" + strings.Repeat("\x00", 184)

	m, err := DecodeMetadata(EncodeMetadata(raw))
	require.NoError(t, err)

	assert.Equal(t, "Cool Ape", m.Name)
	assert.Equal(t, "APE", m.Symbol)
	assert.Equal(t, "https://x/1.json", m.URI)
	assert.Equal(t, uint16(500), m.SellerFeeBasisPoints)
	assert.Equal(t, raw.Mint, m.Mint)
	assert.Equal(t, raw.UpdateAuthority, m.UpdateAuthority)
	require.Len(t, m.Creators, 1)
	assert.Equal(t, uint8(100), m.Creators[0].Share)
	assert.True(t, m.PrimarySaleHappened)
	assert.True(t, m.IsMutable)
}

func TestDecodeMetadata_OptionalTail(t *testing.T) {
	raw := sampleMetadata()
	raw.EditionNonce = u8Ptr(254)
	raw.TokenStandard = u8Ptr(0)
	raw.Collection = &Collection{Verified: true, Key: solana.TokenProgramID}
	raw.Uses = &Uses{Method: 1, Remaining: 3, Total: 5}

	m, err := DecodeMetadata(EncodeMetadata(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, m)
}

func TestDecodeMetadata_LegacyWithoutTail(t *testing.T) {
	raw := sampleMetadata()
	data := EncodeMetadata(raw)
	// drop the four None tags of the tail
	legacy := data[:len(data)-4]

	m, err := DecodeMetadata(legacy)
	require.NoError(t, err)
	assert.Equal(t, "Cool Ape", m.Name)
	assert.Nil(t, m.TokenStandard)
	assert.Nil(t, m.Collection)
}

func TestDecodeMetadata_TruncatedTailIsLenient(t *testing.T) {
	raw := sampleMetadata()
	raw.EditionNonce = u8Ptr(7)
	raw.Collection = &Collection{Verified: false, Key: solana.TokenProgramID}
	data := EncodeMetadata(raw)

	// cut inside the collection key
	m, err := DecodeMetadata(data[:len(data)-20])
	require.NoError(t, err)
	require.NotNil(t, m.EditionNonce)
	assert.Equal(t, uint8(7), *m.EditionNonce)
	assert.Nil(t, m.Collection)
}

func TestDecodeMetadata_Malformed(t *testing.T) {
	valid := EncodeMetadata(sampleMetadata())

	tooManyCreators := sampleMetadata()
	for i := 0; i < 5; i++ {
		tooManyCreators.Creators = append(tooManyCreators.Creators, Creator{Share: 0})
	}

	highFee := sampleMetadata()
	highFee.SellerFeeBasisPoints = 10001

	wrongKey := append([]byte{}, valid...)
	wrongKey[0] = 6

	hugeName := append([]byte{}, valid...)
	// name length prefix follows key + two pubkeys
	hugeName[65], hugeName[66], hugeName[67], hugeName[68] = 0xff, 0xff, 0xff, 0x7f

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"wrong key", wrongKey},
		{"truncated header", valid[:40]},
		{"truncated strings", valid[:80]},
		{"name length overflow", hugeName},
		{"seller fee above 10000", EncodeMetadata(highFee)},
		{"too many creators", EncodeMetadata(tooManyCreators)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMetadata(tt.data)
			assert.ErrorIs(t, err, ErrInvalidMetadata)
		})
	}
}

func TestMetadata_Record(t *testing.T) {
	m := sampleMetadata()
	m.TokenStandard = u8Ptr(0)
	m.Collection = &Collection{Verified: true, Key: solana.TokenProgramID}

	rec := m.Record("pdaAddr")
	assert.Equal(t, m.Mint.String(), rec.MintAddress)
	require.NotNil(t, rec.MetadataAddress)
	assert.Equal(t, "pdaAddr", *rec.MetadataAddress)
	require.NotNil(t, rec.Symbol)
	assert.Equal(t, "APE", *rec.Symbol)
	assert.Equal(t, "https://x/1.json", rec.URI)
	require.Len(t, rec.Creators, 1)
	assert.Equal(t, solana.MetadataProgramID.String(), rec.Creators[0].Address)
	require.NotNil(t, rec.Collection)
	assert.Equal(t, solana.TokenProgramID.String(), rec.Collection.Key)

	m.Symbol = ""
	assert.Nil(t, m.Record("").Symbol)
	assert.Nil(t, m.Record("").MetadataAddress)
}
