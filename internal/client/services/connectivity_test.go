package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/manisoft/subman/internal/client/client"
	"github.com/manisoft/subman/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectivityWatcher_CheckFlipsState(t *testing.T) {
	ctx := context.Background()
	fc := &fakeClient{PingErr: errors.New("dial tcp: connection refused")}
	store := newStore(t)
	notifier := &recordingNotifier{}
	svc := newSync(t, fc, store, true, WithSyncNotifier(notifier))
	w := NewConnectivityWatcher(fc, svc, time.Hour, nil)

	assert.False(t, w.Check(ctx))
	assert.False(t, svc.IsOnline())

	queueOp(t, store, models.OpDelete, "a", nil)

	fc.mu.Lock()
	fc.PingErr = nil
	fc.mu.Unlock()
	assert.True(t, w.Check(ctx))
	assert.True(t, svc.IsOnline())

	assert.Equal(t, []bool{false, true}, notifier.states())
	assert.Equal(t, []string{"a"}, fc.Deleted, "reconnect flushes the queue")
}

func TestConnectivityWatcher_RunStopsWithContext(t *testing.T) {
	fc := &fakeClient{PingErr: client.ErrUnavailable}
	svc := newSync(t, fc, newStore(t), false)
	w := NewConnectivityWatcher(fc, svc, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		n := 0
		for _, c := range fc.calls() {
			if c == "ping" {
				n++
			}
		}
		return n >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestConnectivityWatcher_NonPositiveIntervalUsesDefault(t *testing.T) {
	fc := &fakeClient{}
	svc := newSync(t, fc, newStore(t), true)

	for _, interval := range []time.Duration{0, -time.Second} {
		w := NewConnectivityWatcher(fc, svc, interval, nil)
		assert.Equal(t, DefaultCheckInterval, w.interval)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NotPanics(t, func() { require.NoError(t, w.Run(ctx)) })
	}
}
