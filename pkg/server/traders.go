package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/meme-sniper/pkg/db"
)

// FallbackTopTraders is served when the upstream ranking cannot be fetched.
var FallbackTopTraders = []db.TopTrader{
	{Wallet: "7Tz...dummy1", Volume: 1200},
	{Wallet: "9Xf...dummy2", Volume: 950},
	{Wallet: "3Ab...dummy3", Volume: 870},
}

// WithTopTraders sets the upstream queried by /api/top-traders. An empty url
// always serves the fallback list.
func (s *Server) WithTopTraders(url string, client *http.Client) *Server {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	s.tradersURL = url
	s.tradersClient = client
	return s
}

func (s *Server) handleTopTraders(w http.ResponseWriter, r *http.Request) {
	traders, err := s.fetchTopTraders(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("error fetching top traders")
		traders = append([]db.TopTrader(nil), FallbackTopTraders...)
	} else {
		log.Info().Int("count", len(traders)).Msg("fetched top traders")
	}
	if traders == nil {
		traders = []db.TopTrader{}
	}
	writeJSON(w, http.StatusOK, db.TopTradersResponse{Traders: traders})
}

func (s *Server) fetchTopTraders(ctx context.Context) ([]db.TopTrader, error) {
	if s.tradersURL == "" {
		return nil, fmt.Errorf("no top traders upstream configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.tradersURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.tradersClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("top traders upstream: status %d", resp.StatusCode)
	}

	var out db.TopTradersResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode top traders: %w", err)
	}
	return out.Traders, nil
}
