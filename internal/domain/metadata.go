package domain

import "time"

// MetadataRecord represents a decoded Metaplex metadata account.
// Corresponds to nft_metadata table in PostgreSQL.
type MetadataRecord struct {
	MintAddress          string  // mint this metadata describes (unique)
	MetadataAddress      *string // derived PDA (nullable)
	Name                 string  // sanitized name
	Symbol               *string // sanitized symbol (nullable when empty)
	URI                  string  // off-chain JSON uri
	SellerFeeBasisPoints uint16  // royalty, 0-10000
	UpdateAuthority      string  // base58 update authority
	PrimarySaleHappened  bool
	IsMutable            bool
	TokenStandard        *uint8      // nullable, absent on older accounts
	Collection           *Collection // nullable
	Creators             []Creator
	CreatedAt            time.Time
}

// Creator is a royalty recipient listed on a metadata account.
type Creator struct {
	Address  string
	Verified bool
	Share    uint8 // percentage, creators sum to 100
}

// Collection links a metadata account to its collection mint.
type Collection struct {
	Key      string
	Verified bool
}
