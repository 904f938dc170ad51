package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"solana-nft-indexer/internal/domain"
	"solana-nft-indexer/internal/observability"
	"solana-nft-indexer/internal/storage"
)

// MetadataStore implements storage.MetadataStore using PostgreSQL.
// Creators live in nft_creator, keyed by the metadata row id.
type MetadataStore struct {
	pool *Pool
}

// NewMetadataStore creates a new MetadataStore.
func NewMetadataStore(pool *Pool) *MetadataStore {
	return &MetadataStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MetadataStore = (*MetadataStore)(nil)

// Insert adds metadata and its creators in one transaction.
// Returns ErrDuplicateKey if metadata for mint_address exists.
func (s *MetadataStore) Insert(ctx context.Context, m *domain.MetadataRecord) (err error) {
	if m == nil || m.MintAddress == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "metadata_insert", time.Since(start).Seconds(), err)
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	id := uuid.New()

	var collectionKey *string
	var collectionVerified *bool
	if m.Collection != nil {
		collectionKey = &m.Collection.Key
		collectionVerified = &m.Collection.Verified
	}

	var tokenStandard *int16
	if m.TokenStandard != nil {
		v := int16(*m.TokenStandard)
		tokenStandard = &v
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO nft_metadata (
			id, mint_address, metadata_address, name, symbol, metadata_uri,
			seller_fee_basis_points, update_authority, primary_sale_happened,
			is_mutable, token_standard, collection_key, collection_verified
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		id,
		m.MintAddress,
		m.MetadataAddress,
		m.Name,
		m.Symbol,
		m.URI,
		int32(m.SellerFeeBasisPoints),
		m.UpdateAuthority,
		m.PrimarySaleHappened,
		m.IsMutable,
		tokenStandard,
		collectionKey,
		collectionVerified,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert nft metadata: %w", err)
	}

	if len(m.Creators) > 0 {
		batch := &pgx.Batch{}
		for i, c := range m.Creators {
			batch.Queue(`
				INSERT INTO nft_creator (metadata_id, position, address, verified, share)
				VALUES ($1, $2, $3, $4, $5)
			`, id, int16(i), c.Address, c.Verified, int16(c.Share))
		}
		if err = tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert nft creators: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit metadata: %w", err)
	}
	return nil
}

// GetByMint retrieves metadata with creators. Returns ErrNotFound if not exists.
func (s *MetadataStore) GetByMint(ctx context.Context, mintAddress string) (*domain.MetadataRecord, error) {
	query := `
		SELECT id, mint_address, metadata_address, name, symbol, metadata_uri,
		       seller_fee_basis_points, update_authority, primary_sale_happened,
		       is_mutable, token_standard, collection_key, collection_verified, created_at
		FROM nft_metadata
		WHERE mint_address = $1
	`

	var (
		id                 uuid.UUID
		m                  domain.MetadataRecord
		sellerFee          int32
		tokenStandard      *int16
		collectionKey      *string
		collectionVerified *bool
	)

	err := s.pool.QueryRow(ctx, query, mintAddress).Scan(
		&id,
		&m.MintAddress,
		&m.MetadataAddress,
		&m.Name,
		&m.Symbol,
		&m.URI,
		&sellerFee,
		&m.UpdateAuthority,
		&m.PrimarySaleHappened,
		&m.IsMutable,
		&tokenStandard,
		&collectionKey,
		&collectionVerified,
		&m.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get nft metadata: %w", err)
	}

	m.SellerFeeBasisPoints = uint16(sellerFee)
	if tokenStandard != nil {
		v := uint8(*tokenStandard)
		m.TokenStandard = &v
	}
	if collectionKey != nil {
		m.Collection = &domain.Collection{Key: *collectionKey}
		if collectionVerified != nil {
			m.Collection.Verified = *collectionVerified
		}
	}

	m.Creators, err = s.creators(ctx, id)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MetadataStore) creators(ctx context.Context, metadataID uuid.UUID) ([]domain.Creator, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT address, verified, share
		FROM nft_creator
		WHERE metadata_id = $1
		ORDER BY position ASC
	`, metadataID)
	if err != nil {
		return nil, fmt.Errorf("query nft creators: %w", err)
	}
	defer rows.Close()

	var creators []domain.Creator
	for rows.Next() {
		var c domain.Creator
		var share int16
		if err := rows.Scan(&c.Address, &c.Verified, &share); err != nil {
			return nil, fmt.Errorf("scan nft creator: %w", err)
		}
		c.Share = uint8(share)
		creators = append(creators, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nft creators: %w", err)
	}
	return creators, nil
}
