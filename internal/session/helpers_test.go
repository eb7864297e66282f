package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/congo-pay/walletgate/internal/credential"
	"github.com/congo-pay/walletgate/internal/logging"
	"github.com/congo-pay/walletgate/internal/notification"
	"github.com/congo-pay/walletgate/internal/siwe"
	"github.com/congo-pay/walletgate/internal/storage"
	"github.com/congo-pay/walletgate/internal/wallet"
)

const (
	addrA = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	addrB = "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"
)

var testSecret = []byte("session-test")

var testParams = MessageParams{
	Domain:    "app.gnosispay.com",
	URI:       "https://app.gnosispay.com",
	Statement: "Sign in with Ethereum to the app.",
}

// fakeAPI issues tokens for whichever address the signed message names.
type fakeAPI struct {
	mu           sync.Mutex
	nonce        string
	nonceErr     error
	challengeErr error
	userID       string
	nonces       int
	challenges   int
	messages     []string
}

func (f *fakeAPI) Nonce(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonces++
	if f.nonceErr != nil {
		return "", f.nonceErr
	}
	if f.nonce == "" {
		return "abc123", nil
	}
	return f.nonce, nil
}

func (f *fakeAPI) Challenge(_ context.Context, message, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.challenges++
	f.messages = append(f.messages, message)
	if f.challengeErr != nil {
		return "", f.challengeErr
	}
	parsed, err := siwe.Parse(message)
	if err != nil {
		return "", err
	}
	now := time.Now()
	return credential.Mint(testSecret, f.userID, "", parsed.Address, now, now.Add(time.Hour))
}

func (f *fakeAPI) counts() (nonces, challenges int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces, f.challenges
}

// gatedSigner blocks every signature until release is closed.
type gatedSigner struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
	reject  bool
}

func newGatedSigner() *gatedSigner {
	return &gatedSigner{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gatedSigner) SignMessage(ctx context.Context, address, message string) (string, error) {
	g.mu.Lock()
	g.calls++
	reject := g.reject
	g.mu.Unlock()
	g.entered <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if reject {
		return "", wallet.ErrUserRejected
	}
	return wallet.NewStaticSigner("t").SignMessage(ctx, address, message)
}

func (g *gatedSigner) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type bearerRecorder struct {
	mu     sync.Mutex
	tokens []string
}

func (b *bearerRecorder) SetBearer(token string) {
	b.mu.Lock()
	b.tokens = append(b.tokens, token)
	b.mu.Unlock()
}

func (b *bearerRecorder) Last() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.tokens) == 0 {
		return ""
	}
	return b.tokens[len(b.tokens)-1]
}

type fixture struct {
	api      *fakeAPI
	kv       storage.KV
	store    *credential.Store
	notes    *notification.Recorder
	provider *wallet.Provider
	bearer   *bearerRecorder
	signer   *ChallengeSigner
	session  *Session
}

func newFixture(t *testing.T, s wallet.Signer, opts Options) *fixture {
	t.Helper()
	logger := logging.Discard()
	f := &fixture{
		api:      &fakeAPI{},
		kv:       storage.NewMemory(),
		notes:    &notification.Recorder{},
		provider: wallet.NewProvider(),
		bearer:   &bearerRecorder{},
	}
	if s == nil {
		s = wallet.NewStaticSigner("t")
	}
	f.store = credential.NewStore(f.kv, logger)
	f.signer = NewChallengeSigner(f.api, s, f.store, f.notes, testParams, logger)
	f.session = New(f.provider, f.store, f.signer, f.bearer, logger, opts)
	t.Cleanup(f.session.Close)
	return f
}

func (f *fixture) seed(t *testing.T, address, userID string) string {
	t.Helper()
	now := time.Now()
	token, err := credential.Mint(testSecret, userID, "", address, now, now.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.store.Save(context.Background(), address, token))
	return token
}

var errBoom = errors.New("boom")
