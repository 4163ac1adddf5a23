package extractor

import "testing"

const (
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	wsolMint = "So11111111111111111111111111111111111111112"
)

func TestSignals(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		trade  bool
		addr   string
		symbol string
	}{
		{"plain text", "Market is about to explode!", false, "", ""},
		{"cashtag", "New listing on Raydium! $WIF and $BONK", true, "", "WIF"},
		{"address", "CA: " + usdcMint + " lfg", true, usdcMint, ""},
		{"both", "$PEPE " + wsolMint, true, wsolMint, "PEPE"},
		{"lookalike too short", "ticket 1234567890abcdefghijkmnopqrs", false, "", ""},
		{"evm address is not a solana token", "0x4E5B2e1dc63F6b91cb6Cd759936495434C7e972F", false, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Signals(tc.text)
			if s.ShouldTrade != tc.trade || s.TokenAddress != tc.addr || s.TokenSymbol != tc.symbol {
				t.Fatalf("Signals(%q) = %+v", tc.text, s)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	text := "$BONK $bonk $BONK " + usdcMint + " " + usdcMint + " from 0x4E5B2e1dc63F6b91cb6Cd759936495434C7e972F"
	r := Extract(text)

	if len(r.TokenSymbols) != 2 || r.TokenSymbols[0] != "BONK" || r.TokenSymbols[1] != "bonk" {
		t.Errorf("symbols = %v", r.TokenSymbols)
	}
	if len(r.SolanaAddresses) != 1 || r.SolanaAddresses[0] != usdcMint {
		t.Errorf("solana = %v", r.SolanaAddresses)
	}
	if len(r.EVMAddresses) != 1 {
		t.Errorf("evm = %v", r.EVMAddresses)
	}
}

func TestClassifyWallet(t *testing.T) {
	for addr, want := range map[string]Chain{
		"0x4E5B2e1dc63F6b91cb6Cd759936495434C7e972F": ChainEVM,
		usdcMint:        ChainSolana,
		"0x1234...5678": ChainUnknown,
		"":              ChainUnknown,
	} {
		if got := ClassifyWallet(addr); got != want {
			t.Errorf("ClassifyWallet(%q) = %s, want %s", addr, got, want)
		}
	}
}
