package domain

// SearchDocument is the document written to the search index, keyed by mint.
type SearchDocument struct {
	MintAddress string `json:"mint_address"`
	DisplayName string `json:"display_name"`
}

// SearchHit is a single search result.
type SearchHit struct {
	MintAddress string  `json:"mint_address"`
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
}
