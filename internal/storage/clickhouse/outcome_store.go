package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-nft-indexer/internal/domain"
	"solana-nft-indexer/internal/observability"
	"solana-nft-indexer/internal/storage"
)

// OutcomeStore implements storage.OutcomeStore using ClickHouse.
// Rows are append-only; repeated processing of a mint adds rows.
type OutcomeStore struct {
	conn *Conn
}

// NewOutcomeStore creates a new OutcomeStore.
func NewOutcomeStore(conn *Conn) *OutcomeStore {
	return &OutcomeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.OutcomeStore = (*OutcomeStore)(nil)

// Record appends an outcome.
func (s *OutcomeStore) Record(ctx context.Context, o *domain.PipelineOutcome) (err error) {
	if o == nil || o.MintAddress == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "outcome_insert", time.Since(start).Seconds(), err)
	}()

	processedAt := o.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO pipeline_outcomes (
			mint_address, outcome, stage, error, duration_ms, processed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		o.MintAddress, string(o.Outcome), string(o.Stage),
		o.Error, o.DurationMs, processedAt,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// ListByMint returns outcomes for a mint, oldest first.
func (s *OutcomeStore) ListByMint(ctx context.Context, mintAddress string) ([]*domain.PipelineOutcome, error) {
	query := `
		SELECT mint_address, outcome, stage, error, duration_ms, processed_at
		FROM pipeline_outcomes
		WHERE mint_address = ?
		ORDER BY processed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, mintAddress)
	if err != nil {
		return nil, fmt.Errorf("query outcomes by mint: %w", err)
	}
	defer rows.Close()

	return scanOutcomes(rows)
}

// scanOutcomes scans multiple rows.
func scanOutcomes(rows chRows) ([]*domain.PipelineOutcome, error) {
	var outcomes []*domain.PipelineOutcome

	for rows.Next() {
		var o domain.PipelineOutcome
		var outcome, stage string

		err := rows.Scan(&o.MintAddress, &outcome, &stage, &o.Error, &o.DurationMs, &o.ProcessedAt)
		if err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}

		o.Outcome = domain.Outcome(outcome)
		o.Stage = domain.Stage(stage)
		outcomes = append(outcomes, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome rows: %w", err)
	}

	return outcomes, nil
}
