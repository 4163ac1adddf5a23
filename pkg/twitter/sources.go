package twitter

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	twitterscraper "github.com/imperatrona/twitter-scraper"
	"github.com/rs/zerolog/log"

	"github.com/meme-sniper/pkg/config"
)

const maxTweetsPerPoll = 20

// Scraper reads timelines through Twitter's private web API.
type Scraper struct {
	scraper *twitterscraper.Scraper
}

// NewScraper logs in with cookies when given, else with username and password.
func NewScraper(cfg *config.Backend) (*Scraper, error) {
	s := twitterscraper.New()
	switch {
	case cfg.TwitterAuthToken != "":
		s.SetAuthToken(twitterscraper.AuthToken{Token: cfg.TwitterAuthToken, CSRFToken: cfg.TwitterCSRFToken})
	case cfg.TwitterUsername != "" && cfg.TwitterPassword != "":
		var err error
		if cfg.TwitterEmail != "" {
			err = s.Login(cfg.TwitterUsername, cfg.TwitterPassword, cfg.TwitterEmail)
		} else {
			err = s.Login(cfg.TwitterUsername, cfg.TwitterPassword)
		}
		if err != nil {
			return nil, fmt.Errorf("twitter login: %w", err)
		}
	default:
		return nil, fmt.Errorf("twitter login: no credentials")
	}
	if !s.IsLoggedIn() {
		return nil, fmt.Errorf("twitter login: session not accepted")
	}
	log.Info().Msg("🐦 twitter scraper logged in")
	return &Scraper{scraper: s}, nil
}

func (s *Scraper) Name() string { return "scraper" }

func (s *Scraper) Fetch(ctx context.Context, handle string) ([]Tweet, error) {
	var tweets []Tweet
	for res := range s.scraper.GetTweets(ctx, handle, maxTweetsPerPoll) {
		if res.Error != nil {
			return tweets, res.Error
		}
		if res.IsRetweet {
			continue
		}
		tweets = append(tweets, Tweet{
			ID:        res.ID,
			Text:      res.Text,
			Author:    res.Username,
			CreatedAt: res.TimeParsed,
		})
	}
	return tweets, nil
}

// Verify checks that username resolves to a profile.
func (s *Scraper) Verify(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	profile, err := s.scraper.GetProfile(username)
	if err != nil {
		return err
	}
	if profile.Username == "" {
		return fmt.Errorf("user @%s not found", username)
	}
	return nil
}

// Nitter RSS fallback
type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	Creator     string `xml:"creator"`
}

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// Nitter reads timelines from the RSS feeds of public Nitter instances.
type Nitter struct {
	instances []string
	client    *http.Client
}

func NewNitter(instances []string) *Nitter {
	return &Nitter{instances: instances, client: &http.Client{Timeout: 30 * time.Second}}
}

func (n *Nitter) Name() string { return "nitter" }

// Fetch tries each instance in turn. An empty feed from a healthy instance
// is a quiet account, not a failure.
func (n *Nitter) Fetch(ctx context.Context, handle string) ([]Tweet, error) {
	answered := false
	for _, instance := range n.instances {
		tweets, err := n.fetchFrom(ctx, instance, handle)
		if err != nil {
			log.Debug().Err(err).Str("instance", instance).Str("handle", handle).Msg("nitter instance failed")
			continue
		}
		answered = true
		if len(tweets) > 0 {
			log.Debug().Str("handle", handle).Int("count", len(tweets)).Str("via", instance).Msg("fetched tweets via nitter")
			return tweets, nil
		}
	}
	if answered {
		return nil, nil
	}
	return nil, fmt.Errorf("all nitter instances failed for @%s", handle)
}

func (n *Nitter) fetchFrom(ctx context.Context, instance, handle string) ([]Tweet, error) {
	url := fmt.Sprintf("%s/%s/rss", strings.TrimRight(instance, "/"), handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, err
	}
	return parseItems(handle, feed.Channel.Items), nil
}

func parseItems(handle string, items []rssItem) []Tweet {
	var tweets []Tweet
	for _, item := range items {
		text := htmlTagRe.ReplaceAllString(item.Description, " ")
		text = strings.Join(strings.Fields(html.UnescapeString(text)), " ")
		if text == "" {
			text = strings.TrimSpace(item.Title)
		}
		if text == "" {
			continue
		}

		// https://nitter.net/user/status/1234567890#m
		id := item.Link
		if i := strings.Index(id, "#"); i >= 0 {
			id = id[:i]
		}
		parts := strings.Split(strings.TrimRight(id, "/"), "/")
		id = parts[len(parts)-1]
		if id == "" {
			continue
		}

		// retweets show up under the original author
		author := strings.TrimPrefix(strings.TrimSpace(item.Creator), "@")
		if author != "" && !strings.EqualFold(author, handle) {
			continue
		}

		ts, _ := time.Parse(time.RFC1123Z, item.PubDate)
		if ts.IsZero() {
			ts, _ = time.Parse(time.RFC1123, item.PubDate)
		}
		tweets = append(tweets, Tweet{ID: id, Text: text, Author: handle, CreatedAt: ts})
	}
	return tweets
}
