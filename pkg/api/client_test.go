package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meme-sniper/pkg/db"
)

func TestWhaleActivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/whale-activity" || r.Method != http.MethodGet {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"activities":[{"time":"2024-01-20 12:00:00","wallet":"0x1234...5678","amount":100,"type":"buy"}]}`))
	}))
	defer srv.Close()

	got, err := New(srv.URL+"/", time.Second).WhaleActivity(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Amount != 100 || got[0].Type != db.SideBuy || got[0].Wallet != "0x1234...5678" {
		t.Fatalf("activities = %+v", got)
	}
}

func TestTrackedAccounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"accounts":["elonmusk","cz_binance","solana"]}`))
	}))
	defer srv.Close()

	got, err := New(srv.URL, time.Second).TrackedAccounts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[2] != "solana" {
		t.Fatalf("accounts = %v", got)
	}
}

func TestTopTraders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/top-traders" || r.Method != http.MethodGet {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"traders":[{"wallet":"7Tz...dummy1","volume":1200},{"wallet":"9Xf...dummy2","volume":950}]}`))
	}))
	defer srv.Close()

	got, err := New(srv.URL, time.Second).TopTraders(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Wallet != "7Tz...dummy1" || got[1].Volume != 950 {
		t.Fatalf("traders = %+v", got)
	}
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	if _, err := New(srv.URL, time.Second).WhaleActivity(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSaveSettingsSendsJSON(t *testing.T) {
	var got db.BotSettings
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/save-settings" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var raw map[string]float64
		json.NewDecoder(r.Body).Decode(&raw)
		got = db.BotSettings{TradeAmount: raw["tradeAmount"], StopLoss: raw["stopLoss"], RiskReward: raw["riskReward"]}
		w.Write([]byte(`{"message":"Settings updated successfully."}`))
	}))
	defer srv.Close()

	want := db.BotSettings{TradeAmount: 0.7, StopLoss: 4, RiskReward: 2.5}
	if err := New(srv.URL, time.Second).SaveSettings(context.Background(), want); err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("server got %+v", got)
	}
}

func TestSaveSettingsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Invalid settings data"}`))
	}))
	defer srv.Close()

	err := New(srv.URL, time.Second).SaveSettings(context.Background(), db.DefaultSettings())
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusBadRequest || se.Body != "Invalid settings data" {
		t.Fatalf("status error = %+v", se)
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := New(url, time.Second).Health(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var se *StatusError
	if errors.As(err, &se) {
		t.Fatal("transport failure reported as status error")
	}
}

func TestTrackUntrack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		switch r.URL.Path {
		case "/api/twitter/track":
			w.Write([]byte(`{"status":"success","message":"Now tracking @` + body["username"] + `"}`))
		case "/api/twitter/untrack":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status":"error","message":"Account not found"}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	msg, err := c.Track(context.Background(), "bonk_inu")
	if err != nil || msg != "Now tracking @bonk_inu" {
		t.Fatalf("track: %q %v", msg, err)
	}
	if _, err := c.Untrack(context.Background(), "nobody"); err == nil {
		t.Fatal("expected untrack error")
	}
}
