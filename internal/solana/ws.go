package solana

import "context"

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeProgram subscribes to account changes for accounts owned by a program.
	SubscribeProgram(ctx context.Context, filter ProgramFilter) (<-chan AccountNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// ProgramFilter defines subscription filter for programSubscribe.
type ProgramFilter struct {
	// ProgramID is the owner program, base58.
	ProgramID string
	// DataSize restricts notifications to accounts of this length. Zero disables it.
	DataSize int
	// Commitment defaults to finalized when empty.
	Commitment Commitment
}

// AccountNotification represents a programSubscribe message.
type AccountNotification struct {
	Pubkey   string
	Owner    string
	Data     []byte
	Lamports uint64
	Slot     uint64
}
