package services

import (
	"context"
	"strings"
	"testing"

	"github.com/manisoft/subman/internal/client/client"
	"github.com/manisoft/subman/internal/client/models"
	"github.com/manisoft/subman/internal/common"
	"github.com/manisoft/subman/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSync(t *testing.T, fc *fakeClient, store *client.Store, online bool, opts ...SyncOption) SyncService {
	t.Helper()
	opts = append([]SyncOption{WithSyncClock(clock), WithInitialOnline(online)}, opts...)
	return NewSyncService(fc, store, opts...)
}

// queueCreate stores a pending record under a temporary id with its CREATE.
func queueCreate(t *testing.T, store *client.Store, name string) *models.Subscription {
	t.Helper()
	ctx := context.Background()
	s := subscription(models.TempIDPrefix+strings.ToLower(name), "42", name)
	s.State = models.StatePendingSync
	require.NoError(t, store.Subscriptions.Insert(ctx, s))
	op, err := models.NewSyncOperation(models.OpCreate, models.EntitySubscription, s.ID, s, now)
	require.NoError(t, err)
	require.NoError(t, store.Queue.Append(ctx, op))
	return s
}

func queueOp(t *testing.T, store *client.Store, kind models.OperationKind, target string, payload any) {
	t.Helper()
	op, err := models.NewSyncOperation(kind, models.EntitySubscription, target, payload, now)
	require.NoError(t, err)
	require.NoError(t, store.Queue.Append(context.Background(), op))
}

func TestEnqueueOffline_KeepsFIFO(t *testing.T) {
	ctx := context.Background()
	fc := &fakeClient{}
	store := newStore(t)
	svc := newSync(t, fc, store, false)

	targets := []string{"a", "b", "c", "d"}
	for _, id := range targets {
		op, err := models.NewSyncOperation(models.OpDelete, models.EntitySubscription, id, nil, now)
		require.NoError(t, err)
		require.NoError(t, svc.Enqueue(ctx, op))
	}

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, len(targets))
	for i, op := range pending {
		assert.Equal(t, targets[i], op.TargetID)
	}
	assert.Empty(t, fc.calls(), "nothing is sent while offline")
}

func TestFlush_CreateAdoptsServerID(t *testing.T) {
	ctx := context.Background()
	fc := &fakeClient{CreateFn: func(s *models.Subscription) (*models.Subscription, error) {
		out := *s
		out.ID = "srv-1"
		return &out, nil
	}}
	store := newStore(t)
	notifier := &recordingNotifier{}
	svc := newSync(t, fc, store, false, WithSyncNotifier(notifier))

	temp := queueCreate(t, store, "Netflix")

	svc.SetOnline(ctx, true)

	got, err := store.Subscriptions.GetByID(ctx, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, "Netflix", got.Name)
	assert.Equal(t, models.StateConfirmed, got.State)

	_, err = store.Subscriptions.GetByID(ctx, temp.ID)
	require.ErrorIs(t, err, common.ErrorNotFound)

	all, err := store.Subscriptions.ListByUser(ctx, "42")
	require.NoError(t, err)
	assert.Len(t, all, 1, "exactly one copy after sync")

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	last, err := svc.LastSync(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, now.Equal(*last))

	assert.Equal(t, []bool{true}, notifier.states())
}

func TestFlush_UpdateQueuedAgainstTempIDUsesServerID(t *testing.T) {
	ctx := context.Background()
	fc := &fakeClient{}
	store := newStore(t)
	svc := newSync(t, fc, store, true)

	temp := queueCreate(t, store, "Netflix")
	edited := *temp
	edited.Name = "Netflix Premium"
	require.NoError(t, store.Subscriptions.Update(ctx, &edited))
	queueOp(t, store, models.OpUpdate, temp.ID, &edited)

	rep, err := svc.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Applied)
	assert.Equal(t, 0, rep.Remaining)

	require.Len(t, fc.Updated, 1)
	assert.Equal(t, "srv-1", fc.Updated[0].ID)
	assert.Equal(t, "Netflix Premium", fc.Updated[0].Name)

	got, err := store.Subscriptions.GetByID(ctx, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, "Netflix Premium", got.Name)
	assert.Equal(t, models.StateConfirmed, got.State)
}

func TestFlush_RetainsFailedOperationAndHoldsLaterOnSameRecord(t *testing.T) {
	ctx := context.Background()
	fc := &fakeClient{DeleteFn: func(id string) error {
		if id == "a" {
			return apiError(client.ErrServer)
		}
		return nil
	}}
	store := newStore(t)
	svc := newSync(t, fc, store, true)

	queueOp(t, store, models.OpDelete, "a", nil)
	queueOp(t, store, models.OpDelete, "b", nil)
	queueOp(t, store, models.OpUpdate, "a", subscription("a", "42", "A"))

	rep, err := svc.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, FlushReport{Applied: 1, Failed: 1, Held: 1, Remaining: 2}, rep)

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, models.OpDelete, pending[0].Kind)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, "server error")
	assert.Equal(t, models.OpUpdate, pending[1].Kind)
	assert.Equal(t, 0, pending[1].Attempts)

	assert.Empty(t, fc.Updated, "held update is not sent")

	last, err := svc.LastSync(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestFlush_DeleteNotFoundCountsAsApplied(t *testing.T) {
	ctx := context.Background()
	fc := &fakeClient{DeleteFn: func(string) error { return apiError(client.ErrNotFound) }}
	store := newStore(t)
	svc := newSync(t, fc, store, true)

	require.NoError(t, store.Subscriptions.Insert(ctx, subscription("x", "42", "X")))
	queueOp(t, store, models.OpDelete, "x", nil)

	rep, err := svc.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Applied)

	_, err = store.Subscriptions.GetByID(ctx, "x")
	require.ErrorIs(t, err, common.ErrorNotFound)
	n, err := store.Queue.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFlush_UpdateNotFoundIsDropped(t *testing.T) {
	ctx := context.Background()
	fc := &fakeClient{UpdateFn: func(*models.Subscription) (*models.Subscription, error) {
		return nil, apiError(client.ErrNotFound)
	}}
	store := newStore(t)
	svc := newSync(t, fc, store, true)

	s := subscription("gone", "42", "Gone")
	s.State = models.StatePendingSync
	require.NoError(t, store.Subscriptions.Insert(ctx, s))
	queueOp(t, store, models.OpUpdate, "gone", s)

	rep, err := svc.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Dropped)
	assert.Equal(t, 0, rep.Remaining)

	got, err := store.Subscriptions.GetByID(ctx, "gone")
	require.NoError(t, err)
	assert.Equal(t, models.StateConfirmed, got.State)
}

func TestFlush_UnavailableGoesOfflineAndStops(t *testing.T) {
	ctx := context.Background()
	fc := &fakeClient{CreateFn: func(*models.Subscription) (*models.Subscription, error) {
		return nil, apiError(client.ErrUnavailable)
	}}
	store := newStore(t)
	notifier := &recordingNotifier{}
	svc := newSync(t, fc, store, false, WithSyncNotifier(notifier))

	queueCreate(t, store, "A")
	queueCreate(t, store, "B")

	svc.SetOnline(ctx, true)

	assert.False(t, svc.IsOnline())
	assert.Equal(t, []bool{true, false}, notifier.states())
	assert.Equal(t, []string{"create"}, fc.calls(), "pass stops at the first unreachable call")

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 1, pending[0].Attempts)
}

func TestFlush_UnauthorizedEndsPass(t *testing.T) {
	ctx := context.Background()
	fc := &fakeClient{DeleteFn: func(string) error { return apiError(client.ErrUnauthorized) }}
	store := newStore(t)
	svc := newSync(t, fc, store, true)

	queueOp(t, store, models.OpDelete, "a", nil)
	queueOp(t, store, models.OpDelete, "b", nil)

	rep, err := svc.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 2, rep.Remaining)
	assert.True(t, svc.IsOnline())
	assert.Equal(t, []string{"delete"}, fc.calls())
}

func TestFlush_MalformedPayloadIsDropped(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := newSync(t, &fakeClient{}, store, true)

	op := &models.SyncOperation{ID: "bad", Kind: models.OpCreate, Entity: models.EntitySubscription, TargetID: "tmp-1", CreatedAt: now}
	require.NoError(t, store.Queue.Append(ctx, op))

	rep, err := svc.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Dropped)
}

func TestFlush_RequestedWhileRunningRunsAgain(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	first := true
	fc := &fakeClient{}
	fc.DeleteFn = func(id string) error {
		if first {
			first = false
			close(started)
			<-release
		}
		return nil
	}
	store := newStore(t)
	svc := newSync(t, fc, store, true)

	queueOp(t, store, models.OpDelete, "a", nil)

	done := make(chan FlushReport)
	go func() {
		rep, err := svc.Flush(ctx)
		assert.NoError(t, err)
		done <- rep
	}()

	<-started
	op, err := models.NewSyncOperation(models.OpDelete, models.EntitySubscription, "b", nil, now)
	require.NoError(t, err)
	// Enqueue while online asks for a flush, which is folded into the running one.
	require.NoError(t, svc.Enqueue(ctx, op))

	again, err := svc.Flush(ctx)
	require.NoError(t, err)
	assert.True(t, again.Deferred)

	close(release)
	rep := <-done
	assert.Equal(t, 2, rep.Applied)
	assert.Equal(t, 0, rep.Remaining)
	assert.Equal(t, []string{"a", "b"}, fc.Deleted)
}

func TestSyncMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	store := newStore(t)
	svc := newSync(t, &fakeClient{}, store, false, WithSyncMetrics(metrics.NewSyncMetrics(reg)))

	op, err := models.NewSyncOperation(models.OpDelete, models.EntitySubscription, "a", nil, now)
	require.NoError(t, err)
	require.NoError(t, svc.Enqueue(ctx, op))

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP subman_sync_pending_operations Operations waiting in the sync queue.
# TYPE subman_sync_pending_operations gauge
subman_sync_pending_operations 1
`), "subman_sync_pending_operations"))

	svc.SetOnline(ctx, true)

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP subman_sync_pending_operations Operations waiting in the sync queue.
# TYPE subman_sync_pending_operations gauge
subman_sync_pending_operations 0
# HELP subman_sync_replayed_total Replayed sync operations by kind and result.
# TYPE subman_sync_replayed_total counter
subman_sync_replayed_total{kind="DELETE",result="applied"} 1
`), "subman_sync_pending_operations", "subman_sync_replayed_total"))
}
