package memory

import (
	"context"
	"testing"

	"solana-nft-indexer/internal/domain"
)

func TestOutcomeStore_RecordAndList(t *testing.T) {
	store := NewOutcomeStore()
	ctx := context.Background()

	records := []*domain.PipelineOutcome{
		{MintAddress: "mint1", Outcome: domain.OutcomeNoMetadata, Stage: domain.StageMetadataFetch},
		{MintAddress: "mint2", Outcome: domain.OutcomeDroppedDecimals, Stage: domain.StageFilter},
		{MintAddress: "mint1", Outcome: domain.OutcomeIndexed, Stage: domain.StageDone},
	}
	for _, r := range records {
		if err := store.Record(ctx, r); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	list, err := store.ListByMint(ctx, "mint1")
	if err != nil {
		t.Fatalf("ListByMint failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(list))
	}
	if list[0].Outcome != domain.OutcomeNoMetadata || list[1].Outcome != domain.OutcomeIndexed {
		t.Errorf("unexpected order: %v, %v", list[0].Outcome, list[1].Outcome)
	}
}
