package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-nft-indexer/internal/domain"
	"solana-nft-indexer/internal/observability"
	"solana-nft-indexer/internal/storage"
)

// MintStore implements storage.MintStore using PostgreSQL.
type MintStore struct {
	pool *Pool
}

// NewMintStore creates a new MintStore.
func NewMintStore(pool *Pool) *MintStore {
	return &MintStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MintStore = (*MintStore)(nil)

// Insert adds a mint. Returns ErrDuplicateKey if mint_address exists.
// Supply is stored as NUMERIC(20,0) so the full uint64 range fits.
func (s *MintStore) Insert(ctx context.Context, m *domain.MintRecord) (err error) {
	if m == nil || m.MintAddress == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "mint_insert", time.Since(start).Seconds(), err)
	}()

	query := `
		INSERT INTO mint (
			mint_address, "decimal", supply, mint_authority, freeze_authority, is_initialized
		) VALUES ($1, $2, $3::numeric, $4, $5, $6)
	`

	_, err = s.pool.Exec(ctx, query,
		m.MintAddress,
		int16(m.Decimals),
		strconv.FormatUint(m.Supply, 10),
		m.MintAuthority,
		m.FreezeAuthority,
		m.IsInitialized,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert mint: %w", err)
	}
	return nil
}

// GetByMint retrieves a mint by address. Returns ErrNotFound if not exists.
func (s *MintStore) GetByMint(ctx context.Context, mintAddress string) (*domain.MintRecord, error) {
	query := `
		SELECT mint_address, "decimal", supply::text, mint_authority, freeze_authority,
		       is_initialized, created_at
		FROM mint
		WHERE mint_address = $1
	`

	row := s.pool.QueryRow(ctx, query, mintAddress)
	m, err := scanMint(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get mint: %w", err)
	}
	return m, nil
}

// scanMint scans a single row into MintRecord.
func scanMint(row pgx.Row) (*domain.MintRecord, error) {
	var m domain.MintRecord
	var decimals int16
	var supply string

	err := row.Scan(
		&m.MintAddress,
		&decimals,
		&supply,
		&m.MintAuthority,
		&m.FreezeAuthority,
		&m.IsInitialized,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Decimals = uint8(decimals)
	m.Supply, err = strconv.ParseUint(supply, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse supply %q: %w", supply, err)
	}
	return &m, nil
}
