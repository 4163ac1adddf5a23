// Package server is the MemeSniper backend: the REST API the dashboard
// bootstraps from and the WebSocket push channel it listens on.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/meme-sniper/pkg/config"
	"github.com/meme-sniper/pkg/db"
	"github.com/meme-sniper/pkg/extractor"
	"github.com/meme-sniper/pkg/push"
)

// AccountVerifier checks that a handle exists before it is tracked.
type AccountVerifier func(ctx context.Context, username string) error

type Server struct {
	store  *db.Store
	hub    *push.Hub
	port   int
	verify AccountVerifier

	tradersURL    string
	tradersClient *http.Client
}

func New(store *db.Store, hub *push.Hub, port int) *Server {
	return &Server{store: store, hub: hub, port: port}
}

// WithVerifier makes track requests check the handle first.
func (s *Server) WithVerifier(v AccountVerifier) *Server {
	s.verify = v
	return s
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestLog)
	r.Use(cors)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.hub.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/tweets", s.handleTweets)

		r.Get("/top-traders", s.handleTopTraders)

		r.Get("/whale-activity", s.handleWhaleActivity)
		r.Post("/whale-activity", s.handleIngestWhale)

		r.Get("/settings", s.handleSettings)
		r.Post("/save-settings", s.handleSaveSettings)

		r.Get("/twitter/tracked-accounts", s.handleTrackedAccounts)
		r.Post("/twitter/track", s.handleTrack)
		r.Post("/twitter/untrack", s.handleUntrack)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("🌐 backend started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down backend")
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// PublishPost stores a post and pushes it to every dashboard. Posts already
// seen are dropped.
func (s *Server) PublishPost(p db.Post) error {
	fresh, err := s.store.InsertPost(p)
	if err != nil {
		return fmt.Errorf("store post %s: %w", p.ID, err)
	}
	if !fresh {
		return nil
	}
	log.Info().Str("author", p.Author).Str("id", p.ID).Bool("signal", p.HasSignal()).Msg("🐦 new tweet")
	return s.hub.PublishPost(p)
}

// PublishWhaleActivity stores a whale event and pushes it to every dashboard.
func (s *Server) PublishWhaleActivity(w db.WhaleActivity) error {
	if err := s.store.InsertWhaleActivity(w); err != nil {
		return fmt.Errorf("store whale activity: %w", err)
	}
	log.Info().Str("wallet", w.Wallet).Float64("amount", w.Amount).Str("type", string(w.Type)).Msg("🐋 whale activity")
	return s.hub.PublishWhaleActivity(w)
}

// SeedAccounts fills an empty account table. Accounts removed later stay removed.
func (s *Server) SeedAccounts(accounts []string) error {
	existing, err := s.store.TrackedAccounts()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, a := range accounts {
		if a = db.NormalizeHandle(a); a == "" {
			continue
		}
		if _, err := s.store.AddTrackedAccount(a); err != nil {
			return fmt.Errorf("seed %s: %w", a, err)
		}
	}
	return nil
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Int("status", ww.Status()).
			Dur("took", time.Since(start)).Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, db.MessageResponse{Status: "Server is running", Message: "MemeSniper backend active"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, db.MessageResponse{Status: "error", Message: err.Error()})
		return
	}
	stats["dashboards"] = s.hub.Clients()
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTweets(w http.ResponseWriter, r *http.Request) {
	limit := config.FeedLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= config.FeedLimit {
			limit = n
		}
	}
	posts, err := s.store.RecentPosts(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, db.MessageResponse{Status: "error", Message: err.Error()})
		return
	}
	if posts == nil {
		posts = []db.Post{}
	}
	writeJSON(w, http.StatusOK, map[string][]db.Post{"tweets": posts})
}

func (s *Server) handleWhaleActivity(w http.ResponseWriter, r *http.Request) {
	activities, err := s.store.RecentWhaleActivity(config.FeedLimit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, db.MessageResponse{Status: "error", Message: err.Error()})
		return
	}
	if activities == nil {
		activities = []db.WhaleActivity{}
	}
	writeJSON(w, http.StatusOK, db.WhaleActivityResponse{Activities: activities})
}

func (s *Server) handleIngestWhale(w http.ResponseWriter, r *http.Request) {
	var a db.WhaleActivity
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&a); err != nil {
		writeJSON(w, http.StatusBadRequest, db.MessageResponse{Status: "error", Message: "Invalid whale activity"})
		return
	}
	a.Type = db.Side(strings.ToLower(string(a.Type)))
	if a.Wallet == "" || a.Amount <= 0 || !a.Type.Valid() {
		writeJSON(w, http.StatusBadRequest, db.MessageResponse{Status: "error", Message: "Invalid whale activity"})
		return
	}
	if extractor.ClassifyWallet(a.Wallet) == extractor.ChainUnknown {
		writeJSON(w, http.StatusBadRequest, db.MessageResponse{Status: "error", Message: "Invalid wallet address"})
		return
	}
	if a.Time == "" {
		a.Time = time.Now().UTC().Format(db.WhaleTimeFormat)
	}
	if err := s.PublishWhaleActivity(a); err != nil {
		log.Error().Err(err).Msg("whale ingest failed")
		writeJSON(w, http.StatusInternalServerError, db.MessageResponse{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, db.MessageResponse{Status: "success", Message: "Whale activity recorded"})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.Settings()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, db.MessageResponse{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil || len(raw) == 0 {
		writeJSON(w, http.StatusBadRequest, db.MessageResponse{Message: "Invalid settings data"})
		return
	}

	settings, err := parseSettings(raw)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, db.MessageResponse{Message: "Error updating settings: " + err.Error()})
		return
	}
	if err := s.store.SaveSettings(settings); err != nil {
		log.Error().Err(err).Msg("save settings failed")
		writeJSON(w, http.StatusInternalServerError, db.MessageResponse{Message: "Error updating settings: " + err.Error()})
		return
	}
	log.Info().Float64("trade_amount", settings.TradeAmount).Float64("stop_loss", settings.StopLoss).
		Float64("risk_reward", settings.RiskReward).Msg("⚙️ settings updated")
	writeJSON(w, http.StatusOK, db.MessageResponse{Message: "Settings updated successfully."})
}

// parseSettings reads each field as a number or numeric string. Missing
// fields take their defaults.
func parseSettings(raw map[string]interface{}) (db.BotSettings, error) {
	s := db.DefaultSettings()
	fields := []struct {
		key string
		dst *float64
	}{
		{"tradeAmount", &s.TradeAmount},
		{"stopLoss", &s.StopLoss},
		{"riskReward", &s.RiskReward},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			*f.dst = n
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return s, fmt.Errorf("could not convert %s to float: %q", f.key, n)
			}
			*f.dst = parsed
		default:
			return s, fmt.Errorf("%s must be a number", f.key)
		}
	}
	return s, nil
}

func (s *Server) handleTrackedAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.TrackedAccounts()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, db.MessageResponse{Status: "error", Message: err.Error()})
		return
	}
	if accounts == nil {
		accounts = []string{}
	}
	writeJSON(w, http.StatusOK, db.TrackedAccountsResponse{Accounts: accounts})
}

func readUsername(r *http.Request) string {
	var req struct {
		Username string `json:"username"`
	}
	json.NewDecoder(io.LimitReader(r.Body, 1<<12)).Decode(&req)
	return strings.ReplaceAll(strings.TrimSpace(req.Username), "@", "")
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	username := readUsername(r)
	if username == "" {
		writeJSON(w, http.StatusBadRequest, db.MessageResponse{Status: "error", Message: "Invalid username"})
		return
	}

	if s.verify != nil {
		if err := s.verify(r.Context(), username); err != nil {
			log.Warn().Err(err).Str("username", username).Msg("could not verify account")
			writeJSON(w, http.StatusBadRequest, db.MessageResponse{Status: "error", Message: "Error adding account: " + err.Error()})
			return
		}
	}

	added, err := s.store.AddTrackedAccount(username)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, db.MessageResponse{Status: "error", Message: "Error adding account: " + err.Error()})
		return
	}
	if added {
		log.Info().Str("username", username).Msg("➕ account tracked")
	}
	writeJSON(w, http.StatusOK, db.MessageResponse{Status: "success", Message: "Now tracking @" + username})
}

func (s *Server) handleUntrack(w http.ResponseWriter, r *http.Request) {
	username := readUsername(r)
	err := s.store.RemoveTrackedAccount(username)
	switch {
	case errors.Is(err, db.ErrNotFound) || username == "":
		writeJSON(w, http.StatusNotFound, db.MessageResponse{Status: "error", Message: "Account not found"})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, db.MessageResponse{Status: "error", Message: err.Error()})
		return
	}
	log.Info().Str("username", username).Msg("➖ account untracked")
	writeJSON(w, http.StatusOK, db.MessageResponse{Status: "success", Message: "Stopped tracking @" + username})
}
