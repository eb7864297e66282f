package wallet

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrUserRejected is returned when the user declines a signature request.
var ErrUserRejected = errors.New("wallet: user rejected the request")

// Signer asks the wallet owner to sign a human-readable message.
type Signer interface {
	SignMessage(ctx context.Context, address, message string) (string, error)
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(ctx context.Context, address, message string) (string, error)

// SignMessage calls f.
func (f SignerFunc) SignMessage(ctx context.Context, address, message string) (string, error) {
	return f(ctx, address, message)
}

// StaticSigner simulates a wallet that approves every request. Signatures
// are deterministic HMACs over the address and message, which is enough for
// the development backend that does not recover signers.
type StaticSigner struct {
	key []byte
}

// NewStaticSigner builds a development signer keyed by key.
func NewStaticSigner(key string) StaticSigner {
	if key == "" {
		key = "walletgate-dev"
	}
	return StaticSigner{key: []byte(key)}
}

// SignMessage returns a 0x-prefixed hex signature.
func (s StaticSigner) SignMessage(ctx context.Context, address, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(strings.ToLower(address)))
	mac.Write([]byte{0})
	mac.Write([]byte(message))
	return "0x" + hex.EncodeToString(mac.Sum(nil)), nil
}
