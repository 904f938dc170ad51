package ingest

import (
	"context"
	"io"

	"solana-nft-indexer/internal/domain"
	"solana-nft-indexer/internal/layout"
	"solana-nft-indexer/internal/solana"
)

// DialWS opens a PubSub client. Replaced in tests.
type DialWS func(ctx context.Context) (solana.WSClient, error)

// WebSocketFeed subscribes to mint accounts with Solana PubSub
// programSubscribe. PubSub cannot replay, so fromSlot is ignored.
type WebSocketFeed struct {
	dial       DialWS
	commitment solana.Commitment
}

// NewWebSocketFeed creates a feed that dials endpoint for each subscription.
func NewWebSocketFeed(endpoint string, cfg solana.WSClientConfig, commitment solana.Commitment) *WebSocketFeed {
	return NewWebSocketFeedWithDialer(func(ctx context.Context) (solana.WSClient, error) {
		return solana.NewWSClient(ctx, endpoint, &cfg)
	}, commitment)
}

// NewWebSocketFeedWithDialer creates a feed using dial to open clients.
func NewWebSocketFeedWithDialer(dial DialWS, commitment solana.Commitment) *WebSocketFeed {
	return &WebSocketFeed{dial: dial, commitment: commitment}
}

// Name implements Feed.
func (f *WebSocketFeed) Name() string {
	return "websocket"
}

// Subscribe implements Feed.
func (f *WebSocketFeed) Subscribe(ctx context.Context, _ uint64) (Stream, error) {
	client, err := f.dial(ctx)
	if err != nil {
		return nil, err
	}

	ch, err := client.SubscribeProgram(ctx, solana.ProgramFilter{
		ProgramID:  solana.TokenProgramID.String(),
		DataSize:   layout.MintSize,
		Commitment: f.commitment,
	})
	if err != nil {
		client.Close()
		return nil, err
	}

	return &wsStream{ctx: ctx, client: client, ch: ch}, nil
}

type wsStream struct {
	ctx    context.Context
	client solana.WSClient
	ch     <-chan solana.AccountNotification
}

// Recv returns io.EOF once the client has shut the subscription down.
func (s *wsStream) Recv() (*domain.Envelope, error) {
	select {
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	case n, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return &domain.Envelope{
			Kind: domain.EnvelopeAccount,
			Slot: n.Slot,
			Account: &domain.RawAccountUpdate{
				Address:  n.Pubkey,
				Owner:    n.Owner,
				Data:     n.Data,
				Lamports: n.Lamports,
				Slot:     n.Slot,
			},
		}, nil
	}
}

func (s *wsStream) Close() error {
	return s.client.Close()
}
