package db

import "time"

// ---- Wire Models ----
// JSON names match what the dashboard and the push channel exchange.

// TradeSignal is the backend's verdict on a post.
type TradeSignal struct {
	ShouldTrade  bool   `json:"should_trade"`
	TokenAddress string `json:"token_address,omitempty"`
	TokenSymbol  string `json:"token_symbol,omitempty"`
}

type Post struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Author    string       `json:"author"`
	CreatedAt string       `json:"created_at"` // RFC3339
	Signals   *TradeSignal `json:"signals,omitempty"`
}

// CreatedTime parses CreatedAt, returning the zero time when it is malformed.
func (p Post) CreatedTime() time.Time {
	t, err := time.Parse(time.RFC3339Nano, p.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// HasSignal reports whether the backend flagged the post for a trade.
func (p Post) HasSignal() bool {
	return p.Signals != nil && p.Signals.ShouldTrade
}

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// WhaleTimeFormat is the layout of WhaleActivity.Time.
const WhaleTimeFormat = "2006-01-02 15:04:05"

type WhaleActivity struct {
	Time   string  `json:"time"`
	Wallet string  `json:"wallet"`
	Amount float64 `json:"amount"` // SOL
	Type   Side    `json:"type"`
}

type BotSettings struct {
	TradeAmount float64 `json:"tradeAmount"` // SOL
	StopLoss    float64 `json:"stopLoss"`    // percent
	RiskReward  float64 `json:"riskReward"`  // ratio
}

func DefaultSettings() BotSettings {
	return BotSettings{TradeAmount: 0.5, StopLoss: 5, RiskReward: 3}
}

// WalletSession mirrors the wallet handshake. Never persisted.
type WalletSession struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address"`
}

// ShortAddress renders "ABCD...WXYZ" for the status bar.
func (w WalletSession) ShortAddress() string {
	if len(w.Address) <= 8 {
		return w.Address
	}
	return w.Address[:4] + "..." + w.Address[len(w.Address)-4:]
}

// ---- API Envelopes ----

type WhaleActivityResponse struct {
	Activities []WhaleActivity `json:"activities"`
}

type TrackedAccountsResponse struct {
	Accounts []string `json:"accounts"`
}

// TopTrader is a wallet ranked by trading volume.
type TopTrader struct {
	Wallet string  `json:"wallet"`
	Volume float64 `json:"volume"`
}

type TopTradersResponse struct {
	Traders []TopTrader `json:"traders"`
}

type MessageResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
}
