package api

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"solana-nft-indexer/internal/domain"
	"solana-nft-indexer/internal/solana"
)

// DetailsResponse is the body of GET /details/{mint_address}.
// Metadata is null for plain tokens.
type DetailsResponse struct {
	MintAddress     string            `json:"mint_address"`
	Owner           string            `json:"owner"`
	MintAuthority   *string           `json:"mint_authority"`
	FreezeAuthority *string           `json:"freeze_authority"`
	Supply          uint64            `json:"supply"`
	UISupply        string            `json:"ui_supply"`
	Decimal         uint8             `json:"decimal"`
	IsInitialized   bool              `json:"is_initialized"`
	Metadata        *MetadataResponse `json:"metadata"`
}

// MetadataResponse is the metadata part of a details response.
type MetadataResponse struct {
	MetadataAddress      *string            `json:"metadata_address"`
	Name                 string             `json:"name"`
	Symbol               *string            `json:"symbol"`
	MetadataURI          string             `json:"metadata_uri"`
	SellerFeeBasisPoints uint16             `json:"seller_fee_basis_points"`
	UpdateAuthority      string             `json:"update_authority"`
	IsMutable            bool               `json:"is_mutable"`
	PrimarySaleHappened  bool               `json:"primary_sale_happened"`
	TokenStandard        *uint8             `json:"token_standard"`
	Collection           *CollectionPayload `json:"collection"`
	Creators             []CreatorPayload   `json:"creators"`
}

// CreatorPayload is a royalty recipient.
type CreatorPayload struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
	Share    uint8  `json:"share"`
}

// CollectionPayload is the collection a token belongs to.
type CollectionPayload struct {
	Key      string `json:"key"`
	Verified bool   `json:"verified"`
}

// SearchResponse is the body of GET /search/nfts/{query}.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// SearchResult is one search hit.
type SearchResult struct {
	MintAddress string  `json:"mint_address"`
	NFTName     string  `json:"nft_name"`
	Score       float64 `json:"score"`
}

// PipelineResponse is the body of GET /pipeline/{mint_address}.
type PipelineResponse struct {
	MintAddress string           `json:"mint_address"`
	Outcomes    []OutcomePayload `json:"outcomes"`
}

// OutcomePayload is one journaled pipeline outcome.
type OutcomePayload struct {
	Outcome     string    `json:"outcome"`
	Stage       string    `json:"stage"`
	Error       string    `json:"error,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UISupply renders raw supply in whole tokens, e.g. 1500 with 2 decimals is "15".
func UISupply(supply uint64, decimals uint8) string {
	raw := new(big.Int).SetUint64(supply)
	return decimal.NewFromBigInt(raw, -int32(decimals)).String()
}

func detailsFrom(mint *domain.MintRecord, meta *domain.MetadataRecord) *DetailsResponse {
	resp := &DetailsResponse{
		MintAddress:     mint.MintAddress,
		Owner:           solana.TokenProgramID.String(),
		MintAuthority:   mint.MintAuthority,
		FreezeAuthority: mint.FreezeAuthority,
		Supply:          mint.Supply,
		UISupply:        UISupply(mint.Supply, mint.Decimals),
		Decimal:         mint.Decimals,
		IsInitialized:   mint.IsInitialized,
	}
	if meta == nil {
		return resp
	}

	m := &MetadataResponse{
		MetadataAddress:      meta.MetadataAddress,
		Name:                 meta.Name,
		Symbol:               meta.Symbol,
		MetadataURI:          meta.URI,
		SellerFeeBasisPoints: meta.SellerFeeBasisPoints,
		UpdateAuthority:      meta.UpdateAuthority,
		IsMutable:            meta.IsMutable,
		PrimarySaleHappened:  meta.PrimarySaleHappened,
		TokenStandard:        meta.TokenStandard,
		Creators:             make([]CreatorPayload, 0, len(meta.Creators)),
	}
	if meta.Collection != nil {
		m.Collection = &CollectionPayload{Key: meta.Collection.Key, Verified: meta.Collection.Verified}
	}
	for _, c := range meta.Creators {
		m.Creators = append(m.Creators, CreatorPayload{Address: c.Address, Verified: c.Verified, Share: c.Share})
	}
	resp.Metadata = m
	return resp
}
