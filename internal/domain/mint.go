package domain

import "time"

// MintRecord represents a decoded SPL token mint.
// Corresponds to mint table in PostgreSQL.
type MintRecord struct {
	MintAddress     string  // base58 mint address (unique)
	Decimals        uint8   // token decimals
	Supply          uint64  // raw supply in base units
	MintAuthority   *string // nullable
	FreezeAuthority *string // nullable
	IsInitialized   bool
	CreatedAt       time.Time
}
