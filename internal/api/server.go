// Package api serves the read-only query API over stored mints,
// metadata, search documents and pipeline outcomes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"solana-nft-indexer/internal/domain"
	"solana-nft-indexer/internal/search"
	"solana-nft-indexer/internal/storage"
)

// Searcher runs full-text queries.
type Searcher interface {
	Search(ctx context.Context, query string, size int) ([]domain.SearchHit, error)
}

// Options configures the API server.
type Options struct {
	Addr     string
	Mints    storage.MintStore
	Metadata storage.MetadataStore
	Search   Searcher
	// Outcomes is optional; /pipeline answers 503 without it.
	Outcomes   storage.OutcomeStore
	SearchSize int
	Logger     logrus.FieldLogger
}

// Server provides the REST API.
type Server struct {
	opts   Options
	router *mux.Router
	logger logrus.FieldLogger
}

// NewServer creates a new API server.
func NewServer(opts Options) *Server {
	if opts.SearchSize <= 0 {
		opts.SearchSize = search.DefaultSearchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &Server{
		opts:   opts,
		router: mux.NewRouter(),
		logger: logger.WithField("component", "api"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/details/{mint_address}", s.handleDetails).Methods("GET")
	s.router.HandleFunc("/search/nfts/{query}", s.handleSearch).Methods("GET")
	s.router.HandleFunc("/pipeline/{mint_address}", s.handlePipeline).Methods("GET")
}

// Handler returns the router wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.router)
}

// CORS middleware
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Content-Type", "application/json")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Warn("shutdown")
		}
	}()

	s.logger.WithField("addr", s.opts.Addr).Info("api server starting")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	mintAddress := mux.Vars(r)["mint_address"]
	log := s.logger.WithField("mint", mintAddress)

	mint, err := s.opts.Mints.GetByMint(r.Context(), mintAddress)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "mint not found")
		return
	}
	if err != nil {
		log.WithError(err).Error("load mint")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	meta, err := s.opts.Metadata.GetByMint(r.Context(), mintAddress)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		meta = nil
	case err != nil:
		log.WithError(err).Error("load metadata")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, detailsFrom(mint, meta))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := mux.Vars(r)["query"]

	hits, err := s.opts.Search.Search(r.Context(), query, s.opts.SearchSize)
	if err != nil {
		s.logger.WithError(err).WithField("query", query).Error("search")
		s.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	resp := SearchResponse{Results: make([]SearchResult, 0, len(hits))}
	for _, h := range hits {
		resp.Results = append(resp.Results, SearchResult{
			MintAddress: h.MintAddress,
			NFTName:     h.DisplayName,
			Score:       h.Score,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	if s.opts.Outcomes == nil {
		s.writeError(w, http.StatusServiceUnavailable, "outcome journal not configured")
		return
	}
	mintAddress := mux.Vars(r)["mint_address"]

	outcomes, err := s.opts.Outcomes.ListByMint(r.Context(), mintAddress)
	if err != nil {
		s.logger.WithError(err).WithField("mint", mintAddress).Error("list outcomes")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := PipelineResponse{MintAddress: mintAddress, Outcomes: make([]OutcomePayload, 0, len(outcomes))}
	for _, o := range outcomes {
		resp.Outcomes = append(resp.Outcomes, OutcomePayload{
			Outcome:     string(o.Outcome),
			Stage:       string(o.Stage),
			Error:       o.Error,
			DurationMs:  o.DurationMs,
			ProcessedAt: o.ProcessedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// Helper functions

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Debug("write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
