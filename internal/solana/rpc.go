package solana

import "context"

// Commitment is the finality level requested from the cluster.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// ParseCommitment maps a config string to a Commitment.
// Unknown values fall back to finalized.
func ParseCommitment(s string) Commitment {
	switch Commitment(s) {
	case CommitmentProcessed, CommitmentConfirmed:
		return Commitment(s)
	default:
		return CommitmentFinalized
	}
}

// AccountFetcher reads a single account.
type AccountFetcher interface {
	// GetAccountInfo returns the account at address, or nil if it does not exist.
	GetAccountInfo(ctx context.Context, address string) (*AccountInfo, error)
}

// AccountInfo represents Solana account information with decoded data.
type AccountInfo struct {
	Lamports   uint64
	Owner      string // base58 owner program
	Data       []byte
	Executable bool
	RentEpoch  uint64
}
