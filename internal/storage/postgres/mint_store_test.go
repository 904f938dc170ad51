package postgres

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-nft-indexer/internal/domain"
	"solana-nft-indexer/internal/storage"
)

func TestMintStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMintStore(pool)

	mint := &domain.MintRecord{
		MintAddress:     "MintAddr1",
		Decimals:        0,
		Supply:          1,
		MintAuthority:   ptr("AuthA"),
		FreezeAuthority: nil,
		IsInitialized:   true,
	}

	require.NoError(t, store.Insert(ctx, mint))

	got, err := store.GetByMint(ctx, "MintAddr1")
	require.NoError(t, err)

	assert.Equal(t, mint.MintAddress, got.MintAddress)
	assert.Equal(t, uint8(0), got.Decimals)
	assert.Equal(t, uint64(1), got.Supply)
	require.NotNil(t, got.MintAuthority)
	assert.Equal(t, "AuthA", *got.MintAuthority)
	assert.Nil(t, got.FreezeAuthority)
	assert.True(t, got.IsInitialized)
	assert.NotZero(t, got.CreatedAt)
}

func TestMintStore_MaxSupply(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMintStore(pool)

	require.NoError(t, store.Insert(ctx, &domain.MintRecord{
		MintAddress: "MintMax",
		Decimals:    9,
		Supply:      math.MaxUint64,
	}))

	got, err := store.GetByMint(ctx, "MintMax")
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), got.Supply)
}

func TestMintStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMintStore(pool)

	mint := &domain.MintRecord{MintAddress: "MintDup", Supply: 1}
	require.NoError(t, store.Insert(ctx, mint))

	err := store.Insert(ctx, mint)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	assert.Equal(t, 1, countRows(t, ctx, pool, "mint"))
}

func TestMintStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewMintStore(pool).GetByMint(context.Background(), "Missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSchema_ColumnNames(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	columns := func(table string) []string {
		rows, err := pool.Query(ctx, `
			SELECT column_name FROM information_schema.columns
			WHERE table_name = $1 ORDER BY ordinal_position`, table)
		require.NoError(t, err)
		defer rows.Close()

		var names []string
		for rows.Next() {
			var name string
			require.NoError(t, rows.Scan(&name))
			names = append(names, name)
		}
		require.NoError(t, rows.Err())
		return names
	}

	assert.Equal(t, []string{
		"mint_address", "decimal", "supply", "mint_authority",
		"freeze_authority", "is_initialized", "created_at",
	}, columns("mint"))
	assert.Contains(t, columns("nft_metadata"), "metadata_uri")
}
