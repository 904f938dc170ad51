package geyser

import (
	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"

	"solana-nft-indexer/internal/domain"
	"solana-nft-indexer/internal/layout"
	"solana-nft-indexer/internal/solana"
)

// filterName keys the account filter in requests and updates.
const filterName = "spl_mints"

// BuildRequest builds the Subscribe request for token program accounts
// whose data is exactly a mint. A zero fromSlot subscribes live.
func BuildRequest(commitment pb.CommitmentLevel, fromSlot uint64) *pb.SubscribeRequest {
	req := &pb.SubscribeRequest{
		Accounts: map[string]*pb.SubscribeRequestFilterAccounts{
			filterName: {
				Owner: []string{solana.TokenProgramID.String()},
				Filters: []*pb.SubscribeRequestFilterAccountsFilter{
					{Filter: &pb.SubscribeRequestFilterAccountsFilter_Datasize{Datasize: layout.MintSize}},
				},
			},
		},
		Commitment: &commitment,
	}
	if fromSlot > 0 {
		req.FromSlot = &fromSlot
	}
	return req
}

// Translate converts a Geyser update into an envelope.
// Updates other than account, slot and ping map to EnvelopeOther.
func Translate(update *pb.SubscribeUpdate) *domain.Envelope {
	switch u := update.GetUpdateOneof().(type) {
	case *pb.SubscribeUpdate_Account:
		info := u.Account.GetAccount()
		if info == nil {
			return &domain.Envelope{Kind: domain.EnvelopeOther, Slot: u.Account.GetSlot()}
		}
		return &domain.Envelope{
			Kind: domain.EnvelopeAccount,
			Slot: u.Account.GetSlot(),
			Account: &domain.RawAccountUpdate{
				Address:  encodeKey(info.GetPubkey()),
				Owner:    encodeKey(info.GetOwner()),
				Data:     info.GetData(),
				Lamports: info.GetLamports(),
				Slot:     u.Account.GetSlot(),
			},
		}
	case *pb.SubscribeUpdate_Slot:
		return &domain.Envelope{Kind: domain.EnvelopeSlot, Slot: u.Slot.GetSlot()}
	case *pb.SubscribeUpdate_Ping:
		return &domain.Envelope{Kind: domain.EnvelopePing}
	default:
		return &domain.Envelope{Kind: domain.EnvelopeOther}
	}
}

// encodeKey renders a raw key as base58. Keys of the wrong size are
// returned empty so that the owner check rejects them.
func encodeKey(raw []byte) string {
	pk, err := solana.PublicKeyFromBytes(raw)
	if err != nil {
		return ""
	}
	return pk.String()
}
