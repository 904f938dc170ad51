package stub

import (
	"context"
	"sync"
	"sync/atomic"

	"solana-nft-indexer/internal/solana"
)

// AccountFetcher implements solana.AccountFetcher for testing.
type AccountFetcher struct {
	mu       sync.RWMutex
	accounts map[string]*solana.AccountInfo
	errs     map[string]error

	calls atomic.Int64
}

// NewAccountFetcher creates a new stub account fetcher.
func NewAccountFetcher() *AccountFetcher {
	return &AccountFetcher{
		accounts: make(map[string]*solana.AccountInfo),
		errs:     make(map[string]error),
	}
}

// GetAccountInfo returns the stored account, nil if none was added.
func (f *AccountFetcher) GetAccountInfo(_ context.Context, address string) (*solana.AccountInfo, error) {
	f.calls.Add(1)

	f.mu.RLock()
	defer f.mu.RUnlock()

	if err, ok := f.errs[address]; ok {
		return nil, err
	}
	info, ok := f.accounts[address]
	if !ok {
		return nil, nil
	}
	infoCopy := *info
	infoCopy.Data = append([]byte(nil), info.Data...)
	return &infoCopy, nil
}

// AddAccount stores an account under address.
func (f *AccountFetcher) AddAccount(address string, info *solana.AccountInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[address] = info
}

// FailWith makes lookups of address return err.
func (f *AccountFetcher) FailWith(address string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[address] = err
}

// Calls returns the number of GetAccountInfo calls.
func (f *AccountFetcher) Calls() int {
	return int(f.calls.Load())
}

var _ solana.AccountFetcher = (*AccountFetcher)(nil)
