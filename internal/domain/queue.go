package domain

// QueueMessage is the wire payload handed from the ingestor to workers.
type QueueMessage struct {
	MintAddress     string  `json:"mint_address"`
	Owner           string  `json:"owner"`
	DataLength      int     `json:"data_length"`
	MintAuthority   string  `json:"mint_authority"`
	Supply          uint64  `json:"supply"`
	Decimal         uint8   `json:"decimal"`
	IsInitialized   bool    `json:"is_initialized"`
	FreezeAuthority *string `json:"freeze_authority"`
}

// MintRecord converts the message into a storable mint row.
// An empty mint authority is stored as NULL.
func (m *QueueMessage) MintRecord() *MintRecord {
	rec := &MintRecord{
		MintAddress:   m.MintAddress,
		Decimals:      m.Decimal,
		Supply:        m.Supply,
		IsInitialized: m.IsInitialized,
	}
	if m.MintAuthority != "" {
		auth := m.MintAuthority
		rec.MintAuthority = &auth
	}
	if m.FreezeAuthority != nil {
		freeze := *m.FreezeAuthority
		rec.FreezeAuthority = &freeze
	}
	return rec
}
