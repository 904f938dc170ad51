package domain

// RawAccountUpdate is one account snapshot pushed by the upstream feed.
type RawAccountUpdate struct {
	Address  string // base58 account address
	Owner    string // base58 owning program
	Data     []byte
	Lamports uint64
	Slot     uint64
}

// EnvelopeKind tags what an upstream envelope carries.
type EnvelopeKind int

const (
	EnvelopeOther EnvelopeKind = iota
	EnvelopeAccount
	EnvelopeSlot
	EnvelopePing
)

// String returns the kind name used in logs and metrics labels.
func (k EnvelopeKind) String() string {
	switch k {
	case EnvelopeAccount:
		return "account"
	case EnvelopeSlot:
		return "slot"
	case EnvelopePing:
		return "ping"
	default:
		return "other"
	}
}

// Envelope is a tagged update received from the feed.
// Account is set only for EnvelopeAccount.
type Envelope struct {
	Kind    EnvelopeKind
	Slot    uint64
	Account *RawAccountUpdate
}
