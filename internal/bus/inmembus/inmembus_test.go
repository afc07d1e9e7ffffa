package inmembus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendSubscribe_DeliversPayload(t *testing.T) {
	b := New(4)
	var mu sync.Mutex
	var got []byte
	done := make(chan struct{})

	require.NoError(t, b.Subscribe("topic-a", func(ctx context.Context, key string, payload []byte, ack func() error) error {
		mu.Lock()
		got = payload
		mu.Unlock()
		close(done)
		return ack()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, b.Start(ctx))
	defer b.Stop(context.Background())

	require.NoError(t, b.Send(context.Background(), "topic-a", "k1", []byte("hello")))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []byte("hello"), got)
}

func TestSubscribe_OnlyOneHandlerPerTopic(t *testing.T) {
	b := New(4)
	require.NoError(t, b.Subscribe("topic-a", func(context.Context, string, []byte, func() error) error { return nil }))
	require.NoError(t, b.Subscribe("topic-a", func(context.Context, string, []byte, func() error) error { return nil }))

	b.mu.Lock()
	n := len(b.handlers)
	b.mu.Unlock()
	assert.Equal(t, 1, n)
}

func TestStop_HaltsDelivery(t *testing.T) {
	b := New(4)
	delivered := make(chan struct{}, 1)
	require.NoError(t, b.Subscribe("topic-a", func(context.Context, string, []byte, func() error) error {
		delivered <- struct{}{}
		return nil
	}))

	ctx := context.Background()
	require.NoError(t, b.Start(ctx))
	require.NoError(t, b.Stop(ctx))

	err := b.Send(context.Background(), "topic-a", "k", []byte("after stop"))
	require.NoError(t, err)

	select {
	case <-delivered:
		t.Fatal("message delivered after Stop")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSend_HonorsContextCancellation(t *testing.T) {
	b := New(1)
	require.NoError(t, b.Send(context.Background(), "full-topic", "k1", []byte("first")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Send(ctx, "full-topic", "k2", []byte("second"))
	assert.ErrorIs(t, err, context.Canceled)
}
