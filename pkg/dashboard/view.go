// Package dashboard is the trading-bot dashboard: view state, the actions a
// user can take on it, and its terminal rendering.
//
// View is owned by a single goroutine. Blocking work (HTTP, wallet handshake)
// runs elsewhere through the package-level functions returning *Result values,
// which the owner feeds back through View.Handle.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/meme-sniper/pkg/api"
	"github.com/meme-sniper/pkg/db"
	"github.com/meme-sniper/pkg/feed"
	"github.com/meme-sniper/pkg/push"
	"github.com/meme-sniper/pkg/wallet"
)

// Backend is the request/response side of the backend.
type Backend interface {
	WhaleActivity(ctx context.Context) ([]db.WhaleActivity, error)
	TrackedAccounts(ctx context.Context) ([]string, error)
	SaveSettings(ctx context.Context, s db.BotSettings) error
	Track(ctx context.Context, username string) (string, error)
	Untrack(ctx context.Context, username string) (string, error)
}

// Notifier raises a blocking notification the user must acknowledge.
type Notifier interface {
	Notify(title, message string)
}

// WalletDetector looks for a wallet capability.
type WalletDetector func() (wallet.Provider, error)

type View struct {
	posts    *feed.List[db.Post]
	whales   *feed.List[db.WhaleActivity]
	accounts []string

	draft db.BotSettings
	saved db.BotSettings

	wallet          db.WalletSession
	socketConnected bool
	saving          bool

	backend Backend
	detect  WalletDetector
	notify  Notifier
}

func NewView(backend Backend, detect WalletDetector, notify Notifier, limit int) *View {
	return &View{
		posts:   feed.New[db.Post](limit),
		whales:  feed.New[db.WhaleActivity](limit),
		draft:   db.DefaultSettings(),
		saved:   db.DefaultSettings(),
		backend: backend,
		detect:  detect,
		notify:  notify,
	}
}

func (v *View) Posts() []db.Post                  { return v.posts.Items() }
func (v *View) WhaleActivity() []db.WhaleActivity { return v.whales.Items() }
func (v *View) TrackedAccounts() []string         { return append([]string(nil), v.accounts...) }
func (v *View) Draft() db.BotSettings             { return v.draft }
func (v *View) Saved() db.BotSettings             { return v.saved }
func (v *View) Wallet() db.WalletSession          { return v.wallet }
func (v *View) SocketConnected() bool             { return v.socketConnected }
func (v *View) Saving() bool                      { return v.saving }

// Handle applies a push event or an action result. Unknown values are ignored.
func (v *View) Handle(msg interface{}) {
	switch m := msg.(type) {
	case push.Event:
		v.applyEvent(m)
	case BootstrapResult:
		v.applyBootstrap(m)
	case SaveResult:
		v.applySave(m)
	case WalletResult:
		v.applyWallet(m)
	case AccountResult:
		v.applyAccount(m)
	}
}

func (v *View) applyEvent(ev push.Event) {
	switch ev.Kind {
	case push.Connected:
		v.socketConnected = true
	case push.Disconnected:
		v.socketConnected = false
	case push.NewPost:
		if ev.Post != nil {
			log.Debug().Str("id", ev.Post.ID).Str("author", ev.Post.Author).Msg("new tweet received")
			v.posts.Push(*ev.Post)
		}
	case push.NewWhaleActivity:
		if ev.Whale != nil {
			log.Debug().Str("wallet", ev.Whale.Wallet).Float64("amount", ev.Whale.Amount).Msg("new whale activity received")
			v.whales.Push(*ev.Whale)
		}
	}
}

// ---- Bootstrap ----

type BootstrapResult struct {
	Whales      []db.WhaleActivity
	WhalesErr   error
	Accounts    []string
	AccountsErr error
}

// FetchBootstrap loads whale history and the tracked account list.
func FetchBootstrap(ctx context.Context, b Backend) BootstrapResult {
	var r BootstrapResult
	r.Whales, r.WhalesErr = b.WhaleActivity(ctx)
	r.Accounts, r.AccountsErr = b.TrackedAccounts(ctx)
	return r
}

func (v *View) applyBootstrap(r BootstrapResult) {
	if r.WhalesErr != nil {
		log.Error().Err(r.WhalesErr).Msg("error fetching whale activity")
	} else {
		v.whales.Backfill(r.Whales)
	}
	if r.AccountsErr != nil {
		log.Error().Err(r.AccountsErr).Msg("error fetching tracked accounts")
	} else {
		v.accounts = append(v.accounts[:0], r.Accounts...)
	}
}

func (v *View) Bootstrap(ctx context.Context) {
	v.Handle(FetchBootstrap(ctx, v.backend))
}

// ---- Settings ----

type Field int

const (
	FieldTradeAmount Field = iota
	FieldStopLoss
	FieldRiskReward
)

var Fields = []Field{FieldTradeAmount, FieldStopLoss, FieldRiskReward}

func (f Field) Label() string {
	switch f {
	case FieldTradeAmount:
		return "Trade Amount (SOL)"
	case FieldStopLoss:
		return "Stop Loss (%)"
	case FieldRiskReward:
		return "Risk/Reward Ratio"
	}
	return "?"
}

// Value reads the field from s.
func (f Field) Value(s db.BotSettings) float64 {
	switch f {
	case FieldTradeAmount:
		return s.TradeAmount
	case FieldStopLoss:
		return s.StopLoss
	case FieldRiskReward:
		return s.RiskReward
	}
	return 0
}

var ErrNotANumber = errors.New("not a number")

// SetField parses raw into the draft. A rejected edit leaves the draft as is.
func (v *View) SetField(f Field, raw string) error {
	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("%s: %q: %w", f.Label(), raw, ErrNotANumber)
	}
	switch f {
	case FieldTradeAmount:
		v.draft.TradeAmount = n
	case FieldStopLoss:
		v.draft.StopLoss = n
	case FieldRiskReward:
		v.draft.RiskReward = n
	default:
		return fmt.Errorf("unknown field %d", int(f))
	}
	return nil
}

type SaveResult struct {
	Settings db.BotSettings
	Err      error
}

// SaveSettings posts s. Safe to call from any goroutine.
func SaveSettings(ctx context.Context, b Backend, s db.BotSettings) SaveResult {
	return SaveResult{Settings: s, Err: b.SaveSettings(ctx, s)}
}

// BeginSave snapshots the draft for an asynchronous save.
func (v *View) BeginSave() db.BotSettings {
	v.saving = true
	return v.draft
}

func (v *View) applySave(r SaveResult) {
	v.saving = false
	if r.Err != nil {
		log.Error().Err(r.Err).Msg("error saving settings")
		var se *api.StatusError
		if errors.As(r.Err, &se) {
			v.notify.Notify("Error", "Failed to save settings")
		} else {
			v.notify.Notify("Error", "Error saving settings")
		}
		return
	}
	v.saved = r.Settings
	log.Info().Float64("trade_amount", r.Settings.TradeAmount).Float64("stop_loss", r.Settings.StopLoss).
		Float64("risk_reward", r.Settings.RiskReward).Msg("settings saved")
	v.notify.Notify("Saved", "Settings saved successfully!")
}

// SaveSettings saves the draft synchronously.
func (v *View) SaveSettings(ctx context.Context) error {
	r := SaveSettings(ctx, v.backend, v.BeginSave())
	v.Handle(r)
	return r.Err
}

// ---- Wallet ----

type WalletResult struct {
	Provider string
	Address  string
	Err      error
}

// ConnectWallet runs the wallet handshake. Safe to call from any goroutine.
func ConnectWallet(ctx context.Context, detect WalletDetector) WalletResult {
	p, err := detect()
	if err != nil {
		return WalletResult{Err: err}
	}
	pk, err := p.Connect(ctx)
	if err != nil {
		return WalletResult{Provider: p.Name(), Err: err}
	}
	return WalletResult{Provider: p.Name(), Address: pk.String()}
}

func (v *View) applyWallet(r WalletResult) {
	if errors.Is(r.Err, wallet.ErrNotInstalled) {
		log.Warn().Msg("wallet connect requested but no wallet is available")
		v.notify.Notify("Wallet", "Please install a Solana wallet! Set WALLET_KEYPAIR or WALLET_PUBKEY.")
		return
	}
	if r.Err != nil {
		log.Error().Err(r.Err).Str("provider", r.Provider).Msg("error connecting wallet")
		v.notify.Notify("Wallet", "Wallet connection failed!")
		return
	}
	v.wallet = db.WalletSession{Connected: true, Address: r.Address}
	log.Info().Str("provider", r.Provider).Str("address", v.wallet.ShortAddress()).Msg("wallet connected")
}

func (v *View) ConnectWallet(ctx context.Context) error {
	r := ConnectWallet(ctx, v.detect)
	v.Handle(r)
	return r.Err
}

// ---- Tracked accounts ----

type AccountResult struct {
	Username string
	Track    bool // false for untrack
	Message  string
	Err      error
}

// ChangeTracking tracks or untracks username. Safe to call from any goroutine.
func ChangeTracking(ctx context.Context, b Backend, username string, track bool) AccountResult {
	username = db.NormalizeHandle(username)
	r := AccountResult{Username: username, Track: track}
	if username == "" {
		r.Err = errors.New("invalid username")
		return r
	}
	if track {
		r.Message, r.Err = b.Track(ctx, username)
	} else {
		r.Message, r.Err = b.Untrack(ctx, username)
	}
	return r
}

func (v *View) applyAccount(r AccountResult) {
	if r.Err != nil {
		log.Error().Err(r.Err).Str("username", r.Username).Bool("track", r.Track).Msg("error updating tracked accounts")
		reason := r.Err.Error()
		var se *api.StatusError
		if errors.As(r.Err, &se) && se.Body != "" {
			reason = se.Body
		}
		v.notify.Notify("Accounts", fmt.Sprintf("Could not update @%s: %s", r.Username, reason))
		return
	}
	idx := -1
	for i, a := range v.accounts {
		if strings.EqualFold(a, r.Username) {
			idx = i
			break
		}
	}
	switch {
	case r.Track && idx < 0:
		v.accounts = append(v.accounts, r.Username)
	case !r.Track && idx >= 0:
		v.accounts = append(v.accounts[:idx], v.accounts[idx+1:]...)
	}
	if r.Message != "" {
		v.notify.Notify("Accounts", r.Message)
	}
}
