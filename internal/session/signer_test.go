package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/walletgate/internal/credential"
	"github.com/congo-pay/walletgate/internal/notification"
	"github.com/congo-pay/walletgate/internal/siwe"
	"github.com/congo-pay/walletgate/internal/wallet"
)

var readyA = wallet.Connection{Address: addrA, ChainID: 100, Connections: 1}

func TestSignPersistsCredential(t *testing.T) {
	f := newFixture(t, nil, Options{})
	ctx := context.Background()

	token, err := f.signer.Sign(ctx, readyA)
	require.NoError(t, err)
	assert.False(t, f.signer.InFlight())

	stored, err := f.store.Load(ctx, addrA)
	require.NoError(t, err)
	assert.Equal(t, token, stored)

	require.Len(t, f.api.messages, 1)
	msg, err := siwe.Parse(f.api.messages[0])
	require.NoError(t, err)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", msg.Address)
	assert.Equal(t, "abc123", msg.Nonce)
	assert.Equal(t, int64(100), msg.ChainID)
	assert.Equal(t, testParams.Domain, msg.Domain)
	assert.Equal(t, testParams.URI, msg.URI)
	assert.Equal(t, testParams.Statement, msg.Statement)
	assert.Equal(t, "1", msg.Version)
	assert.Empty(t, f.notes.Messages())
}

func TestSignPreconditions(t *testing.T) {
	f := newFixture(t, nil, Options{})
	ctx := context.Background()

	for _, conn := range []wallet.Connection{
		{},
		{Address: addrA, Connections: 1},
		{Address: addrA, ChainID: 100},
	} {
		_, err := f.signer.Sign(ctx, conn)
		assert.ErrorIs(t, err, ErrWalletNotReady)
	}
	nonces, _ := f.api.counts()
	assert.Zero(t, nonces)
	assert.Empty(t, f.notes.Messages())
}

func TestSignMalformedAddressMakesNoNetworkCall(t *testing.T) {
	f := newFixture(t, nil, Options{})

	_, err := f.signer.Sign(context.Background(), wallet.Connection{Address: "0xnothex", ChainID: 100, Connections: 1})
	assert.ErrorIs(t, err, siwe.ErrInvalidAddress)

	nonces, _ := f.api.counts()
	assert.Zero(t, nonces)
	assert.Equal(t, []string{"Invalid wallet address format"}, f.notes.Titles(notification.KindError))
	assert.False(t, f.signer.InFlight())
}

func TestSignNonceFailure(t *testing.T) {
	f := newFixture(t, nil, Options{})
	f.api.nonceErr = errBoom
	ctx := context.Background()

	_, err := f.signer.Sign(ctx, readyA)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, []string{"Error getting nonce"}, f.notes.Titles(notification.KindError))

	_, challenges := f.api.counts()
	assert.Zero(t, challenges)
	_, err = f.store.Load(ctx, addrA)
	assert.ErrorIs(t, err, credential.ErrNotFound)
	assert.False(t, f.signer.InFlight())
}

func TestSignUserRejectionIsSilent(t *testing.T) {
	rejecting := wallet.SignerFunc(func(context.Context, string, string) (string, error) {
		return "", wallet.ErrUserRejected
	})
	f := newFixture(t, rejecting, Options{})

	_, err := f.signer.Sign(context.Background(), readyA)
	assert.ErrorIs(t, err, wallet.ErrUserRejected)
	assert.Empty(t, f.notes.Messages())
	_, challenges := f.api.counts()
	assert.Zero(t, challenges)
}

func TestSignEmptySignature(t *testing.T) {
	empty := wallet.SignerFunc(func(context.Context, string, string) (string, error) { return "", nil })
	f := newFixture(t, empty, Options{})

	_, err := f.signer.Sign(context.Background(), readyA)
	assert.ErrorIs(t, err, ErrNoSignature)
}

func TestSignChallengeFailureDoesNotPersist(t *testing.T) {
	f := newFixture(t, nil, Options{})
	f.api.challengeErr = errBoom
	ctx := context.Background()

	_, err := f.signer.Sign(ctx, readyA)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, []string{"Error validating message"}, f.notes.Titles(notification.KindError))
	_, err = f.store.Load(ctx, addrA)
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestSignSecondCallerIsNoOp(t *testing.T) {
	gated := newGatedSigner()
	f := newFixture(t, gated, Options{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := f.signer.Sign(ctx, readyA)
		done <- err
	}()
	<-gated.entered
	assert.True(t, f.signer.InFlight())

	_, err := f.signer.Sign(ctx, readyA)
	assert.ErrorIs(t, err, ErrRenewalInFlight)

	close(gated.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, gated.Calls())
	assert.False(t, f.signer.InFlight())
}
