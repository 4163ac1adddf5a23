package twitter

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/meme-sniper/pkg/db"
	"github.com/meme-sniper/pkg/extractor"
)

type Tweet struct {
	ID        string
	Text      string
	Author    string
	CreatedAt time.Time
}

// Source fetches the latest tweets of one account, newest first or in any order.
type Source interface {
	Name() string
	Fetch(ctx context.Context, handle string) ([]Tweet, error)
}

// Monitor polls every tracked account and publishes new tweets with their
// trade signals attached.
type Monitor struct {
	accounts func() ([]string, error)
	sources  []Source
	interval time.Duration
	publish  func(db.Post) error

	mu           sync.Mutex
	lastTweetIDs map[string]string // handle -> newest tweet ID seen
}

// NewMonitor reads the account list through accounts on every poll, so
// track/untrack takes effect on the next cycle.
func NewMonitor(accounts func() ([]string, error), interval time.Duration, publish func(db.Post) error, sources ...Source) *Monitor {
	return &Monitor{
		accounts:     accounts,
		sources:      sources,
		interval:     interval,
		publish:      publish,
		lastTweetIDs: make(map[string]string),
	}
}

// Run starts monitoring all tracked accounts.
func (m *Monitor) Run(ctx context.Context) error {
	if len(m.sources) == 0 {
		return errors.New("twitter monitor: no tweet source configured")
	}
	names := make([]string, len(m.sources))
	for i, s := range m.sources {
		names[i] = s.Name()
	}
	log.Info().Strs("sources", names).Dur("interval", m.interval).Msg("starting twitter monitor")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}

// Poll runs one cycle over every tracked account.
func (m *Monitor) Poll(ctx context.Context) {
	handles, err := m.accounts()
	if err != nil {
		log.Error().Err(err).Msg("failed to load tracked accounts")
		return
	}

	for _, handle := range handles {
		if ctx.Err() != nil {
			return
		}
		tweets, err := m.fetch(ctx, handle)
		if err != nil {
			log.Error().Err(err).Str("handle", handle).Msg("failed to fetch tweets")
			continue
		}
		m.process(handle, tweets)
	}
}

func (m *Monitor) fetch(ctx context.Context, handle string) ([]Tweet, error) {
	var errs []error
	for _, s := range m.sources {
		tweets, err := s.Fetch(ctx, handle)
		if err == nil && len(tweets) > 0 {
			return tweets, nil
		}
		if err != nil {
			log.Debug().Err(err).Str("handle", handle).Str("source", s.Name()).Msg("source failed, trying next")
			errs = append(errs, err)
		}
	}
	return nil, errors.Join(errs...)
}

// process publishes tweets newer than the last one seen for handle. The first
// poll of a handle only records where its timeline stands.
func (m *Monitor) process(handle string, tweets []Tweet) {
	sort.Slice(tweets, func(i, j int) bool { return olderID(tweets[i].ID, tweets[j].ID) })

	key := strings.ToLower(handle)
	m.mu.Lock()
	last, seen := m.lastTweetIDs[key]
	if n := len(tweets); n > 0 && olderID(last, tweets[n-1].ID) {
		m.lastTweetIDs[key] = tweets[n-1].ID
	}
	m.mu.Unlock()

	if !seen {
		log.Debug().Str("handle", handle).Int("tweets", len(tweets)).Msg("timeline primed")
		return
	}

	for _, t := range tweets {
		if !olderID(last, t.ID) {
			continue
		}
		post := ToPost(handle, t)
		if post.Signals.ShouldTrade {
			log.Info().Str("handle", handle).Str("tweet_id", t.ID).
				Str("token", post.Signals.TokenAddress).Str("symbol", post.Signals.TokenSymbol).
				Msg("📱 trading signal detected")
		}
		if err := m.publish(post); err != nil {
			log.Error().Err(err).Str("tweet_id", t.ID).Msg("failed to publish tweet")
		}
	}
}

// ToPost converts a tweet into a feed post with its trade signals parsed.
func ToPost(handle string, t Tweet) db.Post {
	author := t.Author
	if author == "" {
		author = handle
	}
	created := t.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	sig := extractor.Signals(t.Text)
	return db.Post{
		ID:        t.ID,
		Text:      t.Text,
		Author:    author,
		CreatedAt: created.UTC().Format(time.RFC3339),
		Signals:   &sig,
	}
}

// olderID orders numeric tweet IDs without parsing them.
func olderID(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
