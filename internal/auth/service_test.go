package auth

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/walletgate/internal/credential"
	"github.com/congo-pay/walletgate/internal/identity"
	"github.com/congo-pay/walletgate/internal/logging"
	"github.com/congo-pay/walletgate/internal/siwe"
)

const wallet = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func signIn(nonce string, at time.Time) string {
	return siwe.Message{
		Domain:    "app.gnosispay.com",
		Address:   wallet,
		Statement: "Sign in with Ethereum to the app.",
		URI:       "https://app.gnosispay.com",
		Version:   siwe.Version,
		ChainID:   100,
		Nonce:     nonce,
		IssuedAt:  at,
	}.String()
}

func newTestService(t *testing.T) (*Service, *clock) {
	t.Helper()
	clk := &clock{now: epoch}
	issuer := NewIssuer("secret", 7*24*time.Hour, clk.Now)
	users := identity.NewService(identity.NewMemoryRepository(), identity.Options{Now: clk.Now})
	return NewService(issuer, NewMemoryNonces(time.Minute, clk.Now), users, "app.gnosispay.com", logging.Discard()), clk
}

func TestIssuerRoundTrip(t *testing.T) {
	clk := &clock{now: epoch}
	issuer := NewIssuer("secret", time.Hour, clk.Now)

	token, err := issuer.Issue(Identity{UserID: "u1", Email: "a@b.c", Address: wallet})
	require.NoError(t, err)

	id, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", Email: "a@b.c", Address: wallet}, id)

	// The client reads the same claims without the secret.
	claims, err := credential.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, epoch.Add(time.Hour), claims.ExpiresAt.UTC())

	_, err = NewIssuer("other", time.Hour, clk.Now).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	clk.now = epoch.Add(time.Hour)
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuerRejectsForeignAlgorithms(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour, nil)
	_, err := issuer.Verify("eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiIweGFiYyJ9.")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = issuer.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMemoryNoncesAreSingleUse(t *testing.T) {
	clk := &clock{now: epoch}
	store := NewMemoryNonces(time.Minute, clk.Now)
	ctx := context.Background()

	nonce, err := store.Issue(ctx)
	require.NoError(t, err)
	assert.Len(t, nonce, 32)

	ok, err := store.Consume(ctx, nonce)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = store.Consume(ctx, nonce)
	assert.False(t, ok)

	stale, _ := store.Issue(ctx)
	clk.now = clk.now.Add(time.Minute)
	ok, _ = store.Consume(ctx, stale)
	assert.False(t, ok, "expired")
}

func TestRedisNoncesAreSingleUse(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := NewRedisNonces(client, time.Minute)
	ctx := context.Background()

	nonce, err := store.Issue(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL(noncePrefix+nonce))

	ok, err := store.Consume(ctx, nonce)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Consume(ctx, nonce)
	require.NoError(t, err)
	assert.False(t, ok)

	stale, _ := store.Issue(ctx)
	mr.FastForward(time.Minute)
	ok, _ = store.Consume(ctx, stale)
	assert.False(t, ok)
}

func TestChallengeThenSignup(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	nonce, err := svc.Nonce(ctx)
	require.NoError(t, err)
	token, err := svc.Challenge(ctx, signIn(nonce, epoch), "0xsig")
	require.NoError(t, err)

	id, err := svc.issuer.Verify(token)
	require.NoError(t, err)
	assert.False(t, id.Registered())
	assert.Equal(t, wallet, id.Address)
	assert.False(t, credential.HasUserID(token))

	signedUp, err := svc.Signup(ctx, id, "a@b.c", "")
	require.NoError(t, err)
	assert.True(t, credential.HasUserID(signedUp))

	_, err = svc.Signup(ctx, id, "other@b.c", "")
	assert.ErrorIs(t, err, identity.ErrAddressTaken)

	// A later sign-in of the same wallet carries the user id.
	nonce, _ = svc.Nonce(ctx)
	token, err = svc.Challenge(ctx, signIn(nonce, epoch), "0xsig")
	require.NoError(t, err)
	assert.True(t, credential.HasUserID(token))
}

func TestChallengeRejections(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	_, err := svc.Challenge(ctx, "", "0xsig")
	assert.ErrorIs(t, err, ErrMissingFields)
	_, err = svc.Challenge(ctx, "hello", "0xsig")
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = svc.Challenge(ctx, signIn("unknownnonce1", epoch), "0xsig")
	assert.ErrorIs(t, err, ErrInvalidNonce)

	nonce, _ := svc.Nonce(ctx)
	_, err = svc.Challenge(ctx, signIn(nonce, epoch), "0xsig")
	require.NoError(t, err)
	_, err = svc.Challenge(ctx, signIn(nonce, epoch), "0xsig")
	assert.ErrorIs(t, err, ErrInvalidNonce, "replay")

	nonce, _ = svc.Nonce(ctx)
	expires := epoch.Add(time.Minute)
	msg := siwe.Message{
		Domain: "app.gnosispay.com", Address: wallet, URI: "https://app.gnosispay.com", Version: siwe.Version,
		ChainID: 100, Nonce: nonce, IssuedAt: epoch, ExpirationTime: &expires,
	}
	clk.now = expires
	_, err = svc.Challenge(ctx, msg.String(), "0xsig")
	assert.ErrorIs(t, err, ErrMessageExpired)

	msg.Domain = "evil.example"
	clk.now = epoch
	_, err = svc.Challenge(ctx, msg.String(), "0xsig")
	assert.ErrorIs(t, err, ErrInvalidMessage)
}
