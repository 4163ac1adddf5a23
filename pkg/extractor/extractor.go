package extractor

import (
	"regexp"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"github.com/meme-sniper/pkg/db"
)

type Chain string

const (
	ChainSolana  Chain = "solana"
	ChainEVM     Chain = "evm"
	ChainUnknown Chain = "unknown"
)

var (
	// Address patterns
	solanaAddrRe = regexp.MustCompile(`[1-9A-HJ-NP-Za-km-z]{32,44}`)
	evmAddrRe    = regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`)
	cashtagRe    = regexp.MustCompile(`\$([A-Za-z0-9]+)`)
)

// Extraction is everything of interest found in a post body.
type Extraction struct {
	SolanaAddresses []string
	EVMAddresses    []string
	TokenSymbols    []string
}

// Extract scans post text for on-chain addresses and $CASHTAG mentions,
// preserving first-seen order.
func Extract(text string) *Extraction {
	r := &Extraction{}

	for _, addr := range evmAddrRe.FindAllString(text, -1) {
		r.EVMAddresses = appendUnique(r.EVMAddresses, addr)
	}

	for _, addr := range solanaAddrRe.FindAllString(text, -1) {
		if isSolanaAddress(addr) {
			r.SolanaAddresses = appendUnique(r.SolanaAddresses, addr)
		}
	}

	for _, m := range cashtagRe.FindAllStringSubmatch(text, -1) {
		r.TokenSymbols = appendUnique(r.TokenSymbols, m[1])
	}

	return r
}

// Signals derives the trade signal for a post: a Solana token address or a
// cashtag marks it tradeable, the first of each is reported.
func Signals(text string) db.TradeSignal {
	r := Extract(text)

	var s db.TradeSignal
	if len(r.SolanaAddresses) > 0 {
		s.TokenAddress = r.SolanaAddresses[0]
		s.ShouldTrade = true
	}
	if len(r.TokenSymbols) > 0 {
		s.TokenSymbol = r.TokenSymbols[0]
		s.ShouldTrade = true
	}
	return s
}

// ClassifyWallet determines the chain a wallet identifier belongs to.
func ClassifyWallet(addr string) Chain {
	if common.IsHexAddress(addr) {
		return ChainEVM
	}
	if isSolanaAddress(addr) {
		return ChainSolana
	}
	return ChainUnknown
}

// isSolanaAddress accepts base58 strings that decode to a 32-byte key.
func isSolanaAddress(addr string) bool {
	if len(addr) < 32 || len(addr) > 44 {
		return false
	}
	_, err := solana.PublicKeyFromBase58(addr)
	return err == nil
}

func appendUnique(slice []string, val string) []string {
	for _, v := range slice {
		if v == val {
			return slice
		}
	}
	return append(slice, val)
}
