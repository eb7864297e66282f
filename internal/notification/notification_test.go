package notification

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/congo-pay/walletgate/internal/logging"
)

func TestRecorderAndHelpers(t *testing.T) {
	ctx := context.Background()
	var r Recorder

	Error(ctx, &r, "Error getting nonce", errors.New("boom"))
	Success(ctx, &r, "Code sent")

	msgs := r.Messages()
	assert.Len(t, msgs, 2)
	assert.Equal(t, Message{Kind: KindError, Title: "Error getting nonce", Detail: "boom"}, msgs[0])
	assert.Equal(t, []string{"Code sent"}, r.Titles(KindSuccess))
}

func TestLoggerNotifierWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	n := NewLoggerNotifier(logging.NewWithWriter(&buf, "info", "json"))

	assert.NoError(t, n.Send(context.Background(), Message{Kind: KindError, Title: "Invalid wallet address format"}))
	assert.Contains(t, buf.String(), `"title":"Invalid wallet address format"`)
	assert.Contains(t, buf.String(), `"level":"WARN"`)

	var nilNotifier *LoggerNotifier
	assert.NoError(t, nilNotifier.Send(context.Background(), Message{}))
}

func TestMultiDeliversToAll(t *testing.T) {
	var a, b Recorder
	m := Multi{&a, &b}
	assert.NoError(t, m.Send(context.Background(), Message{Kind: KindInfo, Title: "hi"}))
	assert.Len(t, a.Messages(), 1)
	assert.Len(t, b.Messages(), 1)
}
