// Package simulator feeds the backend with synthetic tweets and whale trades
// so the dashboard can be exercised without live sources.
package simulator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/meme-sniper/pkg/db"
)

var tweetTexts = []string{
	"Check out this new meme coin!",
	"Market is about to explode!",
	"Warning: pump incoming!",
	"New listing on Raydium!",
}

// Publisher receives generated events.
type Publisher interface {
	PublishPost(p db.Post) error
	PublishWhaleActivity(w db.WhaleActivity) error
}

type Simulator struct {
	pub        Publisher
	accounts   func() ([]string, error)
	tweetEvery time.Duration
	whaleEvery time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

func New(pub Publisher, accounts func() ([]string, error), tweetEvery, whaleEvery time.Duration) *Simulator {
	return &Simulator{
		pub:        pub,
		accounts:   accounts,
		tweetEvery: tweetEvery,
		whaleEvery: whaleEvery,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		now:        time.Now,
	}
}

// Run schedules both generators until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.tweetEvery), s.emitTweet); err != nil {
		return fmt.Errorf("schedule tweets: %w", err)
	}
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.whaleEvery), s.emitWhale); err != nil {
		return fmt.Errorf("schedule whale activity: %w", err)
	}

	log.Info().Dur("tweets", s.tweetEvery).Dur("whales", s.whaleEvery).Msg("🎲 simulation started")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

func (s *Simulator) emitTweet() {
	accounts, err := s.accounts()
	if err != nil {
		log.Error().Err(err).Msg("simulator: failed to load tracked accounts")
		return
	}
	if len(accounts) == 0 {
		return
	}
	if err := s.pub.PublishPost(s.Tweet(accounts)); err != nil {
		log.Error().Err(err).Msg("simulator: publish tweet failed")
	}
}

func (s *Simulator) emitWhale() {
	if err := s.pub.PublishWhaleActivity(s.Whale()); err != nil {
		log.Error().Err(err).Msg("simulator: publish whale activity failed")
	}
}

// Tweet generates a post from one of accounts.
func (s *Simulator) Tweet(accounts []string) db.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return db.Post{
		ID:        uuid.NewString(),
		Text:      tweetTexts[s.rnd.Intn(len(tweetTexts))],
		Author:    accounts[s.rnd.Intn(len(accounts))],
		CreatedAt: s.now().UTC().Format(time.RFC3339),
		Signals:   &db.TradeSignal{ShouldTrade: s.rnd.Intn(2) == 1},
	}
}

// Whale generates a trade of 10 to 200 SOL from a random wallet.
func (s *Simulator) Whale() db.WhaleActivity {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw [common.AddressLength]byte
	s.rnd.Read(raw[:])
	side := db.SideBuy
	if s.rnd.Intn(2) == 1 {
		side = db.SideSell
	}
	return db.WhaleActivity{
		Time:   s.now().UTC().Format(db.WhaleTimeFormat),
		Wallet: strings.ToLower(common.BytesToAddress(raw[:]).Hex()),
		Amount: math.Round((10+s.rnd.Float64()*190)*100) / 100,
		Type:   side,
	}
}
