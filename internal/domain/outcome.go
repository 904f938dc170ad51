package domain

import "time"

// Outcome is the terminal state of one message through the enrichment pipeline.
type Outcome string

const (
	OutcomeIndexed           Outcome = "indexed"            // metadata persisted and indexed
	OutcomeIndexFailed       Outcome = "index_failed"       // persisted, search write failed
	OutcomeNoMetadata        Outcome = "no_metadata"        // plain token, no metadata account
	OutcomeMetadataMalformed Outcome = "metadata_malformed" // owner matched but decode failed
	OutcomeDroppedDecimals   Outcome = "dropped_decimals"   // decimals gate
	OutcomeFailed            Outcome = "failed"             // aborted by a stage error
	OutcomeTimeout           Outcome = "timeout"            // aborted by a stage timeout
)

// Stage names a step of the enrichment pipeline.
type Stage string

const (
	StageFilter          Stage = "filter"
	StageMintPersist     Stage = "mint_persist"
	StagePDAResolve      Stage = "pda_resolve"
	StageMetadataFetch   Stage = "metadata_fetch"
	StageMetadataPersist Stage = "metadata_persist"
	StageIndex           Stage = "index"
	StageDone            Stage = "done"
)

// PipelineOutcome records how a single mint message was processed.
// Corresponds to pipeline_outcomes table in ClickHouse.
type PipelineOutcome struct {
	MintAddress string
	Outcome     Outcome
	Stage       Stage // last stage reached
	Error       string
	DurationMs  int64
	ProcessedAt time.Time
}
