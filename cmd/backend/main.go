package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/meme-sniper/pkg/config"
	"github.com/meme-sniper/pkg/db"
	"github.com/meme-sniper/pkg/push"
	"github.com/meme-sniper/pkg/server"
	"github.com/meme-sniper/pkg/simulator"
	"github.com/meme-sniper/pkg/twitter"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	log.Info().Msg("🎯 MemeSniper backend starting...")

	cfg, err := config.LoadBackend()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	store, err := db.NewStore(cfg.DBPath, config.FeedLimit)
	if err != nil {
		log.Fatal().Err(err).Msg("database init failed")
	}
	defer store.Close()

	hub := push.NewHub()
	srv := server.New(store, hub, cfg.Port).WithTopTraders(cfg.TopTradersURL, nil)
	if err := srv.SeedAccounts(cfg.TrackedAccounts); err != nil {
		log.Fatal().Err(err).Msg("seeding tracked accounts failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return srv.Run(ctx) })

	sources := tweetSources(cfg, srv)
	if len(sources) > 0 {
		mon := twitter.NewMonitor(store.TrackedAccounts, cfg.TwitterPollInterval, srv.PublishPost, sources...)
		g.Go(func() error { return mon.Run(ctx) })
	}
	if cfg.Simulate {
		sim := simulator.New(srv, store.TrackedAccounts, cfg.SimulateTweetEvery, cfg.SimulateWhaleEvery)
		g.Go(func() error { return sim.Run(ctx) })
	}

	printSummary(cfg, store, sources)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("backend stopped")
	}
	log.Info().Msg("goodbye 👋")
}

// tweetSources picks the scraper when credentials are set, then any Nitter
// instances as fallback. Track requests are verified through the scraper.
func tweetSources(cfg *config.Backend, srv *server.Server) []twitter.Source {
	var sources []twitter.Source
	if cfg.HasTwitterAuth() {
		sc, err := twitter.NewScraper(cfg)
		if err != nil {
			log.Error().Err(err).Msg("twitter scraper unavailable")
		} else {
			sources = append(sources, sc)
			srv.WithVerifier(sc.Verify)
		}
	}
	if len(cfg.NitterInstances) > 0 {
		sources = append(sources, twitter.NewNitter(cfg.NitterInstances))
	}
	return sources
}

func printSummary(cfg *config.Backend, store *db.Store, sources []twitter.Source) {
	on := color.New(color.FgGreen).SprintFunc()
	off := color.New(color.FgRed).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	accounts, _ := store.TrackedAccounts()
	stats, _ := store.Stats()

	tweets := off("❌ Disabled (set TWITTER_AUTH_TOKEN or NITTER_INSTANCES)")
	if len(sources) > 0 {
		names := make([]string, len(sources))
		for i, s := range sources {
			names[i] = s.Name()
		}
		tweets = on("✅ " + strings.Join(names, " → "))
	}
	sim := off("off")
	if cfg.Simulate {
		sim = on(fmt.Sprintf("on (tweet every %s, whale every %s)", cfg.SimulateTweetEvery, cfg.SimulateWhaleEvery))
	}

	fmt.Println("\n" + strings.Repeat("═", 60))
	fmt.Println(bold("  🎯 MEMESNIPER BACKEND - RUNNING"))
	fmt.Println(strings.Repeat("═", 60))
	fmt.Printf("  API:       http://localhost:%d\n", cfg.Port)
	fmt.Printf("  Push:      ws://localhost:%d/ws\n", cfg.Port)
	fmt.Printf("  Tracking:  %v\n", accounts)
	fmt.Printf("  Tweets:    %s\n", tweets)
	fmt.Printf("  Traders:   %s\n", cfg.TopTradersURL)
	fmt.Printf("  Simulate:  %s\n", sim)
	if stats != nil {
		fmt.Printf("  DB: %d posts, %d whale events\n", stats["posts"], stats["whale_activity"])
	}
	fmt.Println(strings.Repeat("═", 60) + "\n")
}
