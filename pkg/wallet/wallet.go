// Package wallet provides the dashboard's wallet capability: something that,
// when present, hands over a Solana public key on request.
package wallet

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
)

// ErrNotInstalled means no wallet capability is available.
var ErrNotInstalled = errors.New("no wallet found: set WALLET_KEYPAIR or WALLET_PUBKEY")

type Provider interface {
	Name() string
	Connect(ctx context.Context) (solana.PublicKey, error)
}

// Detect returns the first available provider: a solana-keygen keypair file,
// then a watch-only public key.
func Detect(keypairPath, pubkey string) (Provider, error) {
	if keypairPath != "" {
		if _, err := os.Stat(keypairPath); err == nil {
			return &KeygenFile{Path: keypairPath}, nil
		}
	}
	if pubkey != "" {
		return &WatchOnly{Address: pubkey}, nil
	}
	return nil, ErrNotInstalled
}

// KeygenFile reads a solana-keygen JSON keypair and exposes its public half.
type KeygenFile struct {
	Path string
}

func (k *KeygenFile) Name() string { return "keypair" }

func (k *KeygenFile) Connect(ctx context.Context) (solana.PublicKey, error) {
	if err := ctx.Err(); err != nil {
		return solana.PublicKey{}, err
	}
	priv, err := solana.PrivateKeyFromSolanaKeygenFile(k.Path)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("load keypair %s: %w", k.Path, err)
	}
	if len(priv) != ed25519.PrivateKeySize {
		return solana.PublicKey{}, fmt.Errorf("load keypair %s: invalid key", k.Path)
	}
	return priv.PublicKey(), nil
}

// WatchOnly connects to a known address without any signing capability.
type WatchOnly struct {
	Address string
}

func (w *WatchOnly) Name() string { return "watch-only" }

func (w *WatchOnly) Connect(ctx context.Context) (solana.PublicKey, error) {
	if err := ctx.Err(); err != nil {
		return solana.PublicKey{}, err
	}
	pk, err := solana.PublicKeyFromBase58(w.Address)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("parse wallet pubkey: %w", err)
	}
	return pk, nil
}
