package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// FeedLimit is the number of posts and whale events kept for display.
const FeedLimit = 50

var DefaultTrackedAccounts = []string{"elonmusk", "cz_binance", "solana", "raydium_io"}

// Dashboard is the configuration of the terminal dashboard.
type Dashboard struct {
	SocketURL   string
	APIURL      string
	HTTPTimeout time.Duration

	// Wallet: a solana-keygen file (signing capable) or a bare pubkey (watch only)
	WalletKeypair string
	WalletPubkey  string

	MaxReconnects int
	FeedLimit     int

	LogFile  string
	LogLevel zerolog.Level
}

// Backend is the configuration of the API + push server.
type Backend struct {
	Port   int
	DBPath string

	TrackedAccounts []string

	// Ranking proxied by /api/top-traders
	TopTradersURL string

	// Simulation
	Simulate           bool
	SimulateTweetEvery time.Duration
	SimulateWhaleEvery time.Duration

	// Twitter private API (imperatrona/twitter-scraper)
	TwitterAuthToken    string // auth_token cookie
	TwitterCSRFToken    string // ct0 cookie
	TwitterUsername     string
	TwitterPassword     string
	TwitterEmail        string
	NitterInstances     []string
	TwitterPollInterval time.Duration

	LogLevel zerolog.Level
}

func LoadDashboard() (*Dashboard, error) {
	_ = godotenv.Load()

	cfg := &Dashboard{
		SocketURL:     envOr("SOCKET_URL", "ws://localhost:5002/ws"),
		APIURL:        strings.TrimRight(envOr("API_URL", "http://localhost:5002"), "/"),
		HTTPTimeout:   time.Duration(envInt("HTTP_TIMEOUT", 10)) * time.Second,
		WalletKeypair: os.Getenv("WALLET_KEYPAIR"),
		WalletPubkey:  os.Getenv("WALLET_PUBKEY"),
		MaxReconnects: envInt("SOCKET_RECONNECT_ATTEMPTS", 5),
		FeedLimit:     envInt("FEED_LIMIT", FeedLimit),
		LogFile:       envOr("LOG_FILE", "dashboard.log"),
		LogLevel:      envLevel("LOG_LEVEL", zerolog.InfoLevel),
	}
	cfg.SocketURL = socketURL(cfg.SocketURL)

	return cfg, cfg.Validate()
}

func (c *Dashboard) Validate() error {
	if err := checkURL("SOCKET_URL", c.SocketURL, "ws", "wss"); err != nil {
		return err
	}
	if err := checkURL("API_URL", c.APIURL, "http", "https"); err != nil {
		return err
	}
	if c.FeedLimit <= 0 || c.FeedLimit > FeedLimit {
		return fmt.Errorf("FEED_LIMIT must be between 1 and %d, got %d", FeedLimit, c.FeedLimit)
	}
	if c.MaxReconnects < 0 {
		return fmt.Errorf("SOCKET_RECONNECT_ATTEMPTS must not be negative")
	}
	return nil
}

func LoadBackend() (*Backend, error) {
	_ = godotenv.Load()

	cfg := &Backend{
		Port:               envInt("PORT", 5002),
		DBPath:             envOr("DB_PATH", "memesniper.db"),
		TopTradersURL:      envOr("TOP_TRADERS_URL", "https://api.dexscreener.com/latest/traders"),
		Simulate:           envBool("SIMULATE", false),
		SimulateTweetEvery: time.Duration(envInt("SIMULATE_TWEET_EVERY", 10)) * time.Second,
		SimulateWhaleEvery: time.Duration(envInt("SIMULATE_WHALE_EVERY", 15)) * time.Second,

		TwitterAuthToken:    os.Getenv("TWITTER_AUTH_TOKEN"),
		TwitterCSRFToken:    os.Getenv("TWITTER_CSRF_TOKEN"),
		TwitterUsername:     os.Getenv("TWITTER_USERNAME"),
		TwitterPassword:     os.Getenv("TWITTER_PASSWORD"),
		TwitterEmail:        os.Getenv("TWITTER_EMAIL"),
		TwitterPollInterval: time.Duration(envInt("TWITTER_POLL_INTERVAL", 60)) * time.Second,

		LogLevel: envLevel("LOG_LEVEL", zerolog.InfoLevel),
	}

	if v := os.Getenv("TRACKED_ACCOUNTS"); v != "" {
		cfg.TrackedAccounts = splitTrim(v)
	} else {
		cfg.TrackedAccounts = append([]string(nil), DefaultTrackedAccounts...)
	}
	cfg.NitterInstances = splitTrim(os.Getenv("NITTER_INSTANCES"))

	return cfg, cfg.Validate()
}

func (c *Backend) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.Simulate && (c.SimulateTweetEvery <= 0 || c.SimulateWhaleEvery <= 0) {
		return fmt.Errorf("simulation intervals must be positive")
	}
	return nil
}

// HasTwitterAuth reports whether the scraper can log in.
func (c *Backend) HasTwitterAuth() bool {
	return c.TwitterAuthToken != "" || (c.TwitterUsername != "" && c.TwitterPassword != "")
}

// socketURL maps http(s) base URLs to their ws(s) equivalent and appends the
// push path when none is given.
func socketURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String()
}

func checkURL(key, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: missing host in %q", key, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s: unsupported scheme %q", key, u.Scheme)
}

// helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envLevel(key string, fallback zerolog.Level) zerolog.Level {
	if v := os.Getenv(key); v != "" {
		if l, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			return l
		}
	}
	return fallback
}

func splitTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
