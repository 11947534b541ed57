package messagebroker

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := LogPublisher{Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	var _ Publisher = p
	err := p.Publish(context.Background(), "seller.authorized", []byte(`{"partner_id":"A1"}`))

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "subject=seller.authorized")
	assert.NotContains(t, buf.String(), "A1", "payloads are not logged")
}

func TestNewNatsClient_Unreachable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	_, err := NewNatsClient("nats://127.0.0.1:1", "test", logger)
	assert.Error(t, err)
}

func TestNATSClient_PublishCancelled(t *testing.T) {
	c := &NATSClient{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Publish(ctx, "reports.job.completed", nil), context.Canceled)
}
