package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	maxSeeds       = 16
	maxSeedLength  = 32
	pdaMarker      = "ProgramDerivedAddress"
	metadataPrefix = "metadata"
)

// PDA derivation errors.
var (
	ErrMaxSeedLength = errors.New("seed exceeds limits")
	ErrOnCurve       = errors.New("derived address is on curve")
	ErrNoViableBump  = errors.New("no viable bump seed")
)

// CreateProgramAddress hashes seeds and programID into a program address.
// Returns ErrOnCurve if the hash is a valid ed25519 point.
func CreateProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, error) {
	if len(seeds) > maxSeeds {
		return PublicKey{}, ErrMaxSeedLength
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > maxSeedLength {
			return PublicKey{}, ErrMaxSeedLength
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var pk PublicKey
	copy(pk[:], h.Sum(nil))
	if IsOnCurve(pk[:]) {
		return PublicKey{}, ErrOnCurve
	}
	return pk, nil
}

// FindProgramAddress searches bumps 255 down to 0 and returns the first
// off-curve address along with its bump.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	// seeds plus the bump must still fit
	if len(seeds) >= maxSeeds {
		return PublicKey{}, 0, ErrMaxSeedLength
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		pk, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return pk, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return PublicKey{}, 0, err
		}
	}
	return PublicKey{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether b decodes to a point on the ed25519 curve.
func IsOnCurve(b []byte) bool {
	if len(b) != PublicKeySize {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// MetadataSeeds returns the seed list for a mint's Metaplex metadata account.
func MetadataSeeds(programID, mint PublicKey) [][]byte {
	return [][]byte{[]byte(metadataPrefix), programID[:], mint[:]}
}

// DerivedAddress is a resolved PDA with its bump.
type DerivedAddress struct {
	Address PublicKey
	Bump    uint8
}

type pdaKey struct {
	program PublicKey
	mint    PublicKey
}

// PDAResolver derives metadata addresses and caches results.
// Safe for concurrent use.
type PDAResolver struct {
	programID PublicKey
	cache     *lru.Cache[pdaKey, DerivedAddress]
}

// DefaultPDACacheSize bounds the resolver cache.
const DefaultPDACacheSize = 65536

// NewPDAResolver creates a resolver for the given metadata program.
// A non-positive cacheSize uses DefaultPDACacheSize.
func NewPDAResolver(programID PublicKey, cacheSize int) (*PDAResolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultPDACacheSize
	}
	cache, err := lru.New[pdaKey, DerivedAddress](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create pda cache: %w", err)
	}
	return &PDAResolver{programID: programID, cache: cache}, nil
}

// ProgramID returns the metadata program the resolver derives for.
func (r *PDAResolver) ProgramID() PublicKey {
	return r.programID
}

// MetadataAddress derives the metadata PDA for mint.
func (r *PDAResolver) MetadataAddress(mint PublicKey) (DerivedAddress, error) {
	key := pdaKey{program: r.programID, mint: mint}
	if d, ok := r.cache.Get(key); ok {
		return d, nil
	}

	addr, bump, err := FindProgramAddress(MetadataSeeds(r.programID, mint), r.programID)
	if err != nil {
		return DerivedAddress{}, fmt.Errorf("derive metadata pda for %s: %w", mint, err)
	}

	d := DerivedAddress{Address: addr, Bump: bump}
	r.cache.Add(key, d)
	return d, nil
}
