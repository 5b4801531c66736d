package messagebroker

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNATSClient_UnreachableKeepsRetrying(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := NewNATSClient("nats://127.0.0.1:1", "test", logger)
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.False(t, client.conn.IsConnected())
	client.Close()
}

func TestNewNATSClient_InvalidURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := NewNATSClient("://bad", "test", logger)
	assert.Error(t, err)
}

func TestPublish_WithoutConnection(t *testing.T) {
	client := &NATSClient{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	err := client.Publish(context.Background(), "subject", []byte("x"))
	assert.ErrorIs(t, err, ErrNotConnected)
	client.Close()
}
