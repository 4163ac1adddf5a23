package dashboard

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/meme-sniper/pkg/db"
)

// SnapshotSource is what a one-shot snapshot reads from the backend.
type SnapshotSource interface {
	WhaleActivity(ctx context.Context) ([]db.WhaleActivity, error)
	TrackedAccounts(ctx context.Context) ([]string, error)
	Settings(ctx context.Context) (db.BotSettings, error)
	TopTraders(ctx context.Context) ([]db.TopTrader, error)
}

// WriteSnapshot prints the backend's current state as plain tables.
func WriteSnapshot(ctx context.Context, w io.Writer, src SnapshotSource, limit int) error {
	whales, err := src.WhaleActivity(ctx)
	if err != nil {
		return fmt.Errorf("fetch whale activity: %w", err)
	}
	accounts, err := src.TrackedAccounts(ctx)
	if err != nil {
		return fmt.Errorf("fetch tracked accounts: %w", err)
	}
	settings, err := src.Settings(ctx)
	if err != nil {
		return fmt.Errorf("fetch settings: %w", err)
	}
	traders, err := src.TopTraders(ctx)
	if err != nil {
		return fmt.Errorf("fetch top traders: %w", err)
	}

	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintln(w, bold("🐋 Whale Activity"))
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"Time", "Wallet", "Type", "Amount (SOL)"})
	t.SetAutoFormatHeaders(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	for i, a := range whales {
		if i >= limit {
			break
		}
		t.Append([]string{a.Time, a.Wallet, sideLabel(a.Type), strconv.FormatFloat(a.Amount, 'f', 2, 64)})
	}
	t.Render()

	fmt.Fprintln(w)
	fmt.Fprintln(w, bold("🏆 Top Traders"))
	tt := tablewriter.NewWriter(w)
	tt.SetAutoFormatHeaders(false)
	tt.SetHeader([]string{"Rank", "Wallet", "Volume"})
	if len(traders) == 0 {
		tt.Append([]string{"-", "No data available", "-"})
	}
	for i, tr := range traders {
		tt.Append([]string{strconv.Itoa(i + 1), tr.Wallet, formatNumber(tr.Volume)})
	}
	tt.Render()

	fmt.Fprintln(w)
	fmt.Fprintln(w, bold("👀 Tracked Accounts"))
	if len(accounts) == 0 {
		fmt.Fprintln(w, "  none")
	} else {
		fmt.Fprintln(w, "  @"+strings.Join(accounts, ", @"))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, bold("⚙️  Bot Settings"))
	st := tablewriter.NewWriter(w)
	st.SetAutoFormatHeaders(false)
	st.SetHeader([]string{"Setting", "Value"})
	for _, f := range Fields {
		st.Append([]string{f.Label(), formatNumber(f.Value(settings))})
	}
	st.Render()
	return nil
}

func sideLabel(s db.Side) string {
	label := strings.ToUpper(string(s))
	switch s {
	case db.SideBuy:
		return color.GreenString(label)
	case db.SideSell:
		return color.RedString(label)
	}
	return label
}
