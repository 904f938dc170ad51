package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-nft-indexer/internal/domain"
	"solana-nft-indexer/internal/storage"
)

func sampleMetadataRecord(mint string) *domain.MetadataRecord {
	return &domain.MetadataRecord{
		MintAddress:          mint,
		MetadataAddress:      ptr("PdaAddr"),
		Name:                 "Cool Ape",
		Symbol:               ptr("APE"),
		URI:                  "https://x/1.json",
		SellerFeeBasisPoints: 500,
		UpdateAuthority:      "AuthA",
		PrimarySaleHappened:  true,
		IsMutable:            true,
		TokenStandard:        ptr(uint8(0)),
		Collection:           &domain.Collection{Key: "CollA", Verified: true},
		Creators: []domain.Creator{
			{Address: "CreatorA", Verified: true, Share: 60},
			{Address: "CreatorB", Verified: false, Share: 40},
		},
	}
}

func TestMetadataStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMetadataStore(pool)

	meta := sampleMetadataRecord("MintMeta1")
	require.NoError(t, store.Insert(ctx, meta))

	got, err := store.GetByMint(ctx, "MintMeta1")
	require.NoError(t, err)

	assert.Equal(t, meta.Name, got.Name)
	require.NotNil(t, got.Symbol)
	assert.Equal(t, "APE", *got.Symbol)
	require.NotNil(t, got.MetadataAddress)
	assert.Equal(t, "PdaAddr", *got.MetadataAddress)
	assert.Equal(t, uint16(500), got.SellerFeeBasisPoints)
	require.NotNil(t, got.TokenStandard)
	assert.Equal(t, uint8(0), *got.TokenStandard)
	assert.Equal(t, meta.Collection, got.Collection)
	assert.Equal(t, meta.Creators, got.Creators)
	assert.NotZero(t, got.CreatedAt)
}

func TestMetadataStore_WithoutMintRow(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMetadataStore(pool)

	meta := sampleMetadataRecord("OrphanMint")
	meta.Symbol = nil
	meta.Creators = nil
	meta.Collection = nil
	meta.TokenStandard = nil

	require.NoError(t, store.Insert(ctx, meta))
	assert.Equal(t, 0, countRows(t, ctx, pool, "mint"))

	got, err := store.GetByMint(ctx, "OrphanMint")
	require.NoError(t, err)
	assert.Nil(t, got.Symbol)
	assert.Nil(t, got.Collection)
	assert.Nil(t, got.TokenStandard)
	assert.Empty(t, got.Creators)
}

func TestMetadataStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMetadataStore(pool)

	require.NoError(t, store.Insert(ctx, sampleMetadataRecord("MintMetaDup")))

	err := store.Insert(ctx, sampleMetadataRecord("MintMetaDup"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	assert.Equal(t, 1, countRows(t, ctx, pool, "nft_metadata"))
	assert.Equal(t, 2, countRows(t, ctx, pool, "nft_creator"))
}

func TestMetadataStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewMetadataStore(pool).GetByMint(context.Background(), "Missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
