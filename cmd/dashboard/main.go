package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/meme-sniper/pkg/api"
	"github.com/meme-sniper/pkg/config"
	"github.com/meme-sniper/pkg/dashboard"
	"github.com/meme-sniper/pkg/db"
	"github.com/meme-sniper/pkg/push"
	"github.com/meme-sniper/pkg/wallet"
)

func main() {
	headless := flag.Bool("headless", false, "log the live feed instead of drawing the dashboard")
	snapshot := flag.Bool("snapshot", false, "print whale history, top traders, tracked accounts and settings, then exit")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()

	cfg, err := config.LoadDashboard()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := api.New(cfg.APIURL, cfg.HTTPTimeout)

	switch {
	case *snapshot:
		checkBackend(ctx, client, cfg.APIURL)
		if err := dashboard.WriteSnapshot(ctx, os.Stdout, client, cfg.FeedLimit); err != nil {
			log.Fatal().Err(err).Msg("snapshot failed")
		}
	case *headless:
		runHeadless(ctx, cfg, client)
	default:
		runTUI(ctx, cfg, client)
	}
}

func detector(cfg *config.Dashboard) dashboard.WalletDetector {
	return func() (wallet.Provider, error) {
		return wallet.Detect(cfg.WalletKeypair, cfg.WalletPubkey)
	}
}

func runTUI(ctx context.Context, cfg *config.Dashboard, client *api.Client) {
	// the terminal belongs to the TUI, logs go to a file
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.LogFile).Msg("cannot open log file")
	}
	defer f.Close()
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: f, TimeFormat: "15:04:05", NoColor: true}).With().Timestamp().Logger()
	log.Info().Str("api", cfg.APIURL).Str("socket", cfg.SocketURL).Msg("🎯 dashboard starting")

	notes := dashboard.NewNotices()
	view := dashboard.NewView(client, detector(cfg), notes, cfg.FeedLimit)
	session := dashboard.Mount(ctx, view, push.NewSubscriber(cfg.SocketURL, cfg.MaxReconnects))
	defer session.Close()

	p := tea.NewProgram(dashboard.NewModel(view, session, notes), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		log.Error().Err(err).Msg("dashboard exited")
	}
}

type healthChecker interface {
	Health(ctx context.Context) error
}

// checkBackend warns when the backend does not answer /health. Startup goes
// on regardless; the push channel keeps retrying.
func checkBackend(ctx context.Context, c healthChecker, apiURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Health(ctx); err != nil {
		log.Warn().Err(err).Str("api", apiURL).Msg("⚠️ backend is not responding")
		return false
	}
	log.Debug().Str("api", apiURL).Msg("backend healthy")
	return true
}

type logNotifier struct{}

func (logNotifier) Notify(title, message string) {
	log.Warn().Str("title", title).Msg(message)
}

func runHeadless(ctx context.Context, cfg *config.Dashboard, client *api.Client) {
	log.Info().Str("api", cfg.APIURL).Str("socket", cfg.SocketURL).Msg("🎯 dashboard starting (headless)")
	checkBackend(ctx, client, cfg.APIURL)

	view := dashboard.NewView(client, detector(cfg), logNotifier{}, cfg.FeedLimit)
	session := dashboard.Mount(ctx, view, push.NewSubscriber(cfg.SocketURL, cfg.MaxReconnects))
	defer session.Close()

	if cfg.WalletKeypair != "" || cfg.WalletPubkey != "" {
		view.ConnectWallet(ctx)
	}

	for u := range session.Updates() {
		view.Handle(u)
		switch m := u.(type) {
		case push.Event:
			logEvent(m)
		case dashboard.BootstrapResult:
			log.Info().Int("whales", len(view.WhaleActivity())).Strs("accounts", view.TrackedAccounts()).Msg("📥 bootstrap loaded")
		}
	}
	if err := session.Err(); err != nil {
		log.Fatal().Err(err).Msg("push channel closed")
	}
	log.Info().Msg("goodbye 👋")
}

func logEvent(ev push.Event) {
	switch ev.Kind {
	case push.Connected:
		log.Info().Msg("🟢 connected to backend")
	case push.Disconnected:
		log.Warn().AnErr("reason", ev.Err).Msg("🔴 disconnected from backend")
	case push.NewPost:
		if ev.Post == nil {
			return
		}
		e := log.Info().Str("author", "@"+ev.Post.Author).Str("text", ev.Post.Text)
		if ev.Post.HasSignal() {
			e = e.Bool("signal", true).Str("token", ev.Post.Signals.TokenAddress).Str("symbol", ev.Post.Signals.TokenSymbol)
		}
		e.Msg("🐦 tweet")
	case push.NewWhaleActivity:
		if ev.Whale == nil {
			return
		}
		e := log.Info().Str("wallet", ev.Whale.Wallet).Float64("amount", ev.Whale.Amount)
		if ev.Whale.Type == db.SideSell {
			e.Msg("🐋 whale sold")
		} else {
			e.Msg("🐋 whale bought")
		}
	}
}
