package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"solana-nft-indexer/internal/domain"
	"solana-nft-indexer/internal/observability"
)

// indexMapping keeps mint_address exact-match and display_name full-text
// with a keyword subfield for exact lookups.
const indexMapping = `{
  "mappings": {
    "properties": {
      "mint_address": {"type": "keyword"},
      "display_name": {
        "type": "text",
        "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}
      }
    }
  }
}`

// ElasticOptions configures an ElasticIndexer.
type ElasticOptions struct {
	URL       string
	IndexName string
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// ElasticIndexer implements Indexer on Elasticsearch 8.
type ElasticIndexer struct {
	client *elasticsearch.Client
	index  string
}

// Compile-time interface check.
var _ Indexer = (*ElasticIndexer)(nil)

// NewElasticIndexer creates an Elasticsearch-backed indexer.
func NewElasticIndexer(opts ElasticOptions) (*ElasticIndexer, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("elasticsearch url is required")
	}
	if opts.IndexName == "" {
		opts.IndexName = DefaultIndexName
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{opts.URL},
		Transport: opts.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	return &ElasticIndexer{client: client, index: opts.IndexName}, nil
}

// EnsureIndex creates the index with its mapping if missing.
func (e *ElasticIndexer) EnsureIndex(ctx context.Context) error {
	res, err := e.client.Indices.Exists([]string{e.index}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", e.index, err)
	}
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("check index %s: status %d", e.index, res.StatusCode)
	}

	res, err = e.client.Indices.Create(e.index,
		e.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		e.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", e.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		// Another process may have created it concurrently.
		if strings.Contains(readBody(res), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index %s: %s", e.index, res.Status())
	}
	return nil
}

// Index writes doc with the mint address as document id.
func (e *ElasticIndexer) Index(ctx context.Context, doc *domain.SearchDocument) (err error) {
	if doc == nil || doc.MintAddress == "" {
		return ErrInvalidDocument
	}
	defer func() { observability.RecordIndexWrite(err) }()

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal search document: %w", err)
	}

	res, err := e.client.Index(e.index, bytes.NewReader(body),
		e.client.Index.WithDocumentID(doc.MintAddress),
		e.client.Index.WithRefresh("wait_for"),
		e.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index document %s: %w", doc.MintAddress, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index document %s: %s: %s", doc.MintAddress, res.Status(), readBody(res))
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string                `json:"_id"`
			Score  float64               `json:"_score"`
			Source domain.SearchDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a match query with AUTO fuzziness on display_name.
func (e *ElasticIndexer) Search(ctx context.Context, query string, size int) ([]domain.SearchHit, error) {
	if size <= 0 {
		size = DefaultSearchSize
	}

	body, err := json.Marshal(map[string]any{
		"query": map[string]any{
			"match": map[string]any{
				"display_name": map[string]any{
					"query":     query,
					"fuzziness": "AUTO",
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search query: %w", err)
	}

	start := time.Now()
	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(bytes.NewReader(body)),
		e.client.Search.WithSize(size),
	)
	observability.RecordDBQuery("elasticsearch", "search", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", e.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s: %s", e.index, res.Status(), readBody(res))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		mint := h.Source.MintAddress
		if mint == "" {
			mint = h.ID
		}
		hits = append(hits, domain.SearchHit{
			MintAddress: mint,
			DisplayName: h.Source.DisplayName,
			Score:       h.Score,
		})
	}
	return hits, nil
}

func readBody(res *esapi.Response) string {
	b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return string(b)
}
