package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/meme-sniper/pkg/config"
	"github.com/meme-sniper/pkg/db"
	"github.com/meme-sniper/pkg/push"
)

func newTestServer(t *testing.T) (*Server, *db.Store, *httptest.Server) {
	t.Helper()
	store, err := db.NewStore(filepath.Join(t.TempDir(), "test.db"), config.FeedLimit)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	hub := push.NewHub()
	s := New(store, hub, 0)
	if err := s.SeedAccounts(config.DefaultTrackedAccounts); err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})
	return s, store, ts
}

func request(t *testing.T, ts *httptest.Server, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestIndexAndHealth(t *testing.T) {
	_, _, ts := newTestServer(t)

	code, body := request(t, ts, http.MethodGet, "/", "")
	if code != http.StatusOK || body["message"] != "MemeSniper backend active" {
		t.Fatalf("index: %d %v", code, body)
	}
	code, body = request(t, ts, http.MethodGet, "/health", "")
	if code != http.StatusOK || body["status"] != "healthy" {
		t.Fatalf("health: %d %v", code, body)
	}
}

func TestCORSPreflight(t *testing.T) {
	_, _, ts := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/save-settings", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight: %d %v", resp.StatusCode, resp.Header)
	}
}

func TestTrackedAccountsSeeded(t *testing.T) {
	s, _, ts := newTestServer(t)
	_, body := request(t, ts, http.MethodGet, "/api/twitter/tracked-accounts", "")
	accounts, _ := body["accounts"].([]interface{})
	if len(accounts) != 4 || accounts[0] != "elonmusk" || accounts[3] != "raydium_io" {
		t.Fatalf("accounts = %v", body)
	}

	// seeding a non-empty table is a no-op
	request(t, ts, http.MethodPost, "/api/twitter/untrack", `{"username":"solana"}`)
	if err := s.SeedAccounts(config.DefaultTrackedAccounts); err != nil {
		t.Fatal(err)
	}
	_, body = request(t, ts, http.MethodGet, "/api/twitter/tracked-accounts", "")
	if accounts, _ := body["accounts"].([]interface{}); len(accounts) != 3 {
		t.Fatalf("untracked account came back: %v", accounts)
	}
}

func TestTrackUntrack(t *testing.T) {
	_, store, ts := newTestServer(t)

	code, body := request(t, ts, http.MethodPost, "/api/twitter/track", `{"username":" @bonk_inu "}`)
	if code != http.StatusOK || body["message"] != "Now tracking @bonk_inu" || body["status"] != "success" {
		t.Fatalf("track: %d %v", code, body)
	}
	code, _ = request(t, ts, http.MethodPost, "/api/twitter/track", `{"username":"@"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("empty track: %d", code)
	}

	code, body = request(t, ts, http.MethodPost, "/api/twitter/untrack", `{"username":"BONK_INU"}`)
	if code != http.StatusOK || body["message"] != "Stopped tracking @BONK_INU" {
		t.Fatalf("untrack: %d %v", code, body)
	}
	code, body = request(t, ts, http.MethodPost, "/api/twitter/untrack", `{"username":"nobody"}`)
	if code != http.StatusNotFound || body["message"] != "Account not found" {
		t.Fatalf("untrack unknown: %d %v", code, body)
	}

	accounts, _ := store.TrackedAccounts()
	for _, a := range accounts {
		if strings.EqualFold(a, "bonk_inu") {
			t.Fatalf("still tracked: %v", accounts)
		}
	}
}

func TestTrackVerifier(t *testing.T) {
	s, _, ts := newTestServer(t)
	s.WithVerifier(func(_ context.Context, u string) error {
		if u == "ghost" {
			return errors.New("user not found")
		}
		return nil
	})

	code, body := request(t, ts, http.MethodPost, "/api/twitter/track", `{"username":"ghost"}`)
	if code != http.StatusBadRequest || body["message"] != "Error adding account: user not found" {
		t.Fatalf("track ghost: %d %v", code, body)
	}
	if code, _ := request(t, ts, http.MethodPost, "/api/twitter/track", `{"username":"real"}`); code != http.StatusOK {
		t.Fatalf("track real: %d", code)
	}
}

func TestSaveSettings(t *testing.T) {
	_, store, ts := newTestServer(t)

	_, body := request(t, ts, http.MethodGet, "/api/settings", "")
	if body["tradeAmount"] != 0.5 || body["stopLoss"] != 5.0 || body["riskReward"] != 3.0 {
		t.Fatalf("defaults = %v", body)
	}

	code, body := request(t, ts, http.MethodPost, "/api/save-settings", `{"tradeAmount":1.5,"stopLoss":"4"}`)
	if code != http.StatusOK || body["message"] != "Settings updated successfully." {
		t.Fatalf("save: %d %v", code, body)
	}
	got, _ := store.Settings()
	if want := (db.BotSettings{TradeAmount: 1.5, StopLoss: 4, RiskReward: 3}); got != want {
		t.Fatalf("stored = %+v, want %+v", got, want)
	}
}

func TestSaveSettingsRejects(t *testing.T) {
	_, store, ts := newTestServer(t)

	for _, body := range []string{"", "{}", "not json", "[1,2]"} {
		code, resp := request(t, ts, http.MethodPost, "/api/save-settings", body)
		if code != http.StatusBadRequest || resp["message"] != "Invalid settings data" {
			t.Errorf("body %q: %d %v", body, code, resp)
		}
	}

	code, _ := request(t, ts, http.MethodPost, "/api/save-settings", `{"tradeAmount":"lots"}`)
	if code != http.StatusInternalServerError {
		t.Fatalf("non-numeric: %d", code)
	}
	if got, _ := store.Settings(); got != db.DefaultSettings() {
		t.Fatalf("rejected save stored %+v", got)
	}
}

func TestWhaleActivityNewestFirst(t *testing.T) {
	s, _, ts := newTestServer(t)

	for i := 0; i < config.FeedLimit+5; i++ {
		err := s.PublishWhaleActivity(db.WhaleActivity{Time: "2024-01-20 12:00:00", Wallet: "0xabc", Amount: float64(i + 1), Type: db.SideBuy})
		if err != nil {
			t.Fatal(err)
		}
	}
	var resp db.WhaleActivityResponse
	r, err := http.Get(ts.URL + "/api/whale-activity")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Body.Close()
	json.NewDecoder(r.Body).Decode(&resp)
	if len(resp.Activities) != config.FeedLimit {
		t.Fatalf("len = %d", len(resp.Activities))
	}
	if resp.Activities[0].Amount != float64(config.FeedLimit+5) {
		t.Fatalf("first = %+v", resp.Activities[0])
	}
}

func TestIngestWhale(t *testing.T) {
	_, store, ts := newTestServer(t)

	code, _ := request(t, ts, http.MethodPost, "/api/whale-activity", `{"wallet":"0x52908400098527886e0f7030069857d2e4169ee7","amount":42.5,"type":"SELL"}`)
	if code != http.StatusCreated {
		t.Fatalf("ingest: %d", code)
	}
	code, _ = request(t, ts, http.MethodPost, "/api/whale-activity", `{"wallet":"So11111111111111111111111111111111111111112","amount":7,"type":"buy","time":"2024-01-20 12:00:00"}`)
	if code != http.StatusCreated {
		t.Fatalf("ingest solana wallet: %d", code)
	}
	got, _ := store.RecentWhaleActivity(10)
	if len(got) != 2 || got[1].Type != db.SideSell || got[1].Time == "" {
		t.Fatalf("stored = %+v", got)
	}
	if _, err := time.Parse(db.WhaleTimeFormat, got[1].Time); err != nil {
		t.Fatalf("time %q: %v", got[1].Time, err)
	}

	for _, body := range []string{
		`{"wallet":"","amount":1,"type":"buy"}`,
		`{"wallet":"0x52908400098527886e0f7030069857d2e4169ee7","amount":1,"type":"hold"}`,
		`{"wallet":"0xdef","amount":1,"type":"buy"}`,
		`{"wallet":"not-a-wallet","amount":1,"type":"sell"}`,
		`nope`,
	} {
		if code, _ := request(t, ts, http.MethodPost, "/api/whale-activity", body); code != http.StatusBadRequest {
			t.Errorf("body %s: %d", body, code)
		}
	}
	if after, _ := store.RecentWhaleActivity(10); len(after) != 2 {
		t.Fatalf("rejected bodies stored: %+v", after)
	}
}

func TestIngestWhaleUnknownWallet(t *testing.T) {
	_, _, ts := newTestServer(t)
	code, body := request(t, ts, http.MethodPost, "/api/whale-activity", `{"wallet":"0x1234","amount":5,"type":"buy"}`)
	if code != http.StatusBadRequest || body["message"] != "Invalid wallet address" {
		t.Fatalf("ingest: %d %v", code, body)
	}
}

func TestTopTradersUpstream(t *testing.T) {
	s, _, ts := newTestServer(t)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"traders":[{"wallet":"WhaleA","volume":5000},{"wallet":"WhaleB","volume":4200.5}]}`))
	}))
	defer upstream.Close()
	s.WithTopTraders(upstream.URL, upstream.Client())

	var resp db.TopTradersResponse
	r, err := http.Get(ts.URL + "/api/top-traders")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Body.Close()
	json.NewDecoder(r.Body).Decode(&resp)
	if r.StatusCode != http.StatusOK || len(resp.Traders) != 2 {
		t.Fatalf("top traders: %d %+v", r.StatusCode, resp)
	}
	if resp.Traders[0] != (db.TopTrader{Wallet: "WhaleA", Volume: 5000}) || resp.Traders[1].Volume != 4200.5 {
		t.Fatalf("traders = %+v", resp.Traders)
	}
}

func TestTopTradersFallback(t *testing.T) {
	s, _, ts := newTestServer(t)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer down.Close()

	for name, url := range map[string]string{"upstream error": down.URL, "no upstream": ""} {
		t.Run(name, func(t *testing.T) {
			s.WithTopTraders(url, down.Client())
			var resp db.TopTradersResponse
			r, err := http.Get(ts.URL + "/api/top-traders")
			if err != nil {
				t.Fatal(err)
			}
			defer r.Body.Close()
			json.NewDecoder(r.Body).Decode(&resp)
			if r.StatusCode != http.StatusOK || len(resp.Traders) != len(FallbackTopTraders) {
				t.Fatalf("top traders: %d %+v", r.StatusCode, resp)
			}
			for i, tr := range resp.Traders {
				if tr != FallbackTopTraders[i] {
					t.Fatalf("trader %d = %+v", i, tr)
				}
			}
		})
	}
}

func TestPublishPostBroadcastsOnce(t *testing.T) {
	s, _, ts := newTestServer(t)

	sub := push.NewSubscriber("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sub.Run(ctx)

	select {
	case ev := <-sub.Events():
		if ev.Kind != push.Connected {
			t.Fatalf("first event = %v", ev.Kind)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no connect")
	}
	deadline := time.Now().Add(5 * time.Second)
	for s.hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	p := db.Post{ID: "1", Text: "$WIF to the moon", Author: "solana", CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Signals: &db.TradeSignal{ShouldTrade: true, TokenSymbol: "WIF"}}
	if err := s.PublishPost(p); err != nil {
		t.Fatal(err)
	}
	if err := s.PublishPost(p); err != nil {
		t.Fatal(err)
	}
	p2 := p
	p2.ID = "2"
	s.PublishPost(p2)

	var ids []string
	for len(ids) < 2 {
		select {
		case ev := <-sub.Events():
			if ev.Kind == push.NewPost {
				ids = append(ids, ev.Post.ID)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("got %v", ids)
		}
	}
	if ids[0] != "1" || ids[1] != "2" {
		t.Fatalf("ids = %v", ids)
	}

	_, body := request(t, ts, http.MethodGet, "/api/tweets", "")
	if tweets, _ := body["tweets"].([]interface{}); len(tweets) != 2 {
		t.Fatalf("tweets = %v", body)
	}
}
