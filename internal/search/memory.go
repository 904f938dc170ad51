package search

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"solana-nft-indexer/internal/domain"
)

// MemoryIndex is an in-process Indexer that approximates an Elasticsearch
// match query with AUTO fuzziness: text is split into lowercase terms and a
// query term matches a document term within 0, 1 or 2 edits for terms of
// length 1-2, 3-5 and 6+.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs map[string]domain.SearchDocument
}

// Compile-time interface check.
var _ Indexer = (*MemoryIndex)(nil)

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: make(map[string]domain.SearchDocument)}
}

// EnsureIndex is a no-op.
func (m *MemoryIndex) EnsureIndex(_ context.Context) error {
	return nil
}

// Index upserts doc.
func (m *MemoryIndex) Index(_ context.Context, doc *domain.SearchDocument) error {
	if doc == nil || doc.MintAddress == "" {
		return ErrInvalidDocument
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.MintAddress] = *doc
	return nil
}

// Get returns the document for a mint.
func (m *MemoryIndex) Get(mintAddress string) (domain.SearchDocument, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[mintAddress]
	return doc, ok
}

// Count returns the number of documents.
func (m *MemoryIndex) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Search scores documents by matched query terms; exact term matches
// weigh more than fuzzy ones. Ties are ordered by mint address.
func (m *MemoryIndex) Search(_ context.Context, query string, size int) ([]domain.SearchHit, error) {
	if size <= 0 {
		size = DefaultSearchSize
	}
	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return []domain.SearchHit{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]domain.SearchHit, 0)
	for _, doc := range m.docs {
		docTerms := tokenize(doc.DisplayName)
		var score float64
		for _, q := range queryTerms {
			score += bestTermScore(q, docTerms)
		}
		if score > 0 {
			hits = append(hits, domain.SearchHit{
				MintAddress: doc.MintAddress,
				DisplayName: doc.DisplayName,
				Score:       score,
			})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].MintAddress < hits[j].MintAddress
	})
	if len(hits) > size {
		hits = hits[:size]
	}
	return hits, nil
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// autoFuzziness mirrors Elasticsearch's AUTO edit distance.
func autoFuzziness(term string) int {
	switch n := len([]rune(term)); {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

func bestTermScore(q string, docTerms []string) float64 {
	maxEdits := autoFuzziness(q)
	best := 0.0
	for _, d := range docTerms {
		dist := levenshtein(q, d)
		if dist > maxEdits {
			continue
		}
		score := 1.0 / float64(1+dist)
		if score > best {
			best = score
		}
	}
	return best
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
