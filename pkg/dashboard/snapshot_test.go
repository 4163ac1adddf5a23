package dashboard

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/meme-sniper/pkg/db"
)

type snapshotBackend struct {
	fakeBackend
	settings db.BotSettings
	traders  []db.TopTrader
	err      error
}

func (s *snapshotBackend) Settings(context.Context) (db.BotSettings, error) {
	return s.settings, s.err
}

func (s *snapshotBackend) TopTraders(context.Context) ([]db.TopTrader, error) {
	return s.traders, s.err
}

func TestWriteSnapshot(t *testing.T) {
	color.NoColor = true

	src := &snapshotBackend{
		fakeBackend: fakeBackend{
			whales:   []db.WhaleActivity{{Time: "2024-01-20 12:00:00", Wallet: "0xabc", Amount: 120.5, Type: db.SideSell}, whale(1)},
			accounts: []string{"elonmusk", "raydium_io"},
		},
		settings: db.BotSettings{TradeAmount: 0.75, StopLoss: 5, RiskReward: 3},
		traders:  []db.TopTrader{{Wallet: "7Tz...dummy1", Volume: 1200}, {Wallet: "9Xf...dummy2", Volume: 950}},
	}
	var buf bytes.Buffer
	if err := WriteSnapshot(context.Background(), &buf, src, 1); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"0xabc", "SELL", "120.50", "@elonmusk, @raydium_io", "Trade Amount (SOL)", "0.75", "Top Traders", "7Tz...dummy1", "1200", "9Xf...dummy2"} {
		if !strings.Contains(out, want) {
			t.Errorf("snapshot missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "w1") {
		t.Errorf("snapshot ignored the row limit:\n%s", out)
	}
}

func TestWriteSnapshotNoTraders(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	if err := WriteSnapshot(context.Background(), &buf, &snapshotBackend{}, 50); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No data available") {
		t.Errorf("empty ranking not shown:\n%s", buf.String())
	}
}

func TestWriteSnapshotError(t *testing.T) {
	src := &snapshotBackend{err: errors.New("boom")}
	if err := WriteSnapshot(context.Background(), &bytes.Buffer{}, src, 50); err == nil {
		t.Fatal("expected error")
	}
}
