package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/manisoft/subman/internal/client/client"
	"github.com/manisoft/subman/internal/client/models"
	"github.com/manisoft/subman/internal/common"
	"github.com/manisoft/subman/internal/logging"
	"github.com/manisoft/subman/internal/metrics"
)

// SyncService buffers mutations that could not reach the server and replays
// them, oldest first, once the server is reachable.
//
// Replay failures never surface to the caller of Enqueue or Flush: they are
// logged and recorded on the queued operation, which stays queued. Only a
// failure of the local store is returned.
type SyncService interface {
	// Enqueue durably appends op and, when online, runs a flush.
	Enqueue(ctx context.Context, op *models.SyncOperation) error
	// Flush replays the queue. A flush requested while another one runs is
	// folded into the running one.
	Flush(ctx context.Context) (FlushReport, error)
	// SetOnline records the connectivity state; going online triggers a flush.
	SetOnline(ctx context.Context, online bool)
	IsOnline() bool
	Pending(ctx context.Context) ([]models.SyncOperation, error)
	// LastSync returns the end of the last pass that emptied the queue, or
	// nil if there was none.
	LastSync(ctx context.Context) (*time.Time, error)
}

// FlushReport summarizes one Flush call.
type FlushReport struct {
	Applied   int
	Dropped   int
	Failed    int
	Held      int
	Remaining int
	// Deferred is set when another flush was already running.
	Deferred bool
}

func (r *FlushReport) add(o FlushReport) {
	r.Applied += o.Applied
	r.Dropped += o.Dropped
	r.Failed += o.Failed
	r.Held += o.Held
	r.Remaining = o.Remaining
}

// SyncOption customizes the sync service.
type SyncOption func(*syncService)

func WithSyncLogger(l logging.Logger) SyncOption {
	return func(s *syncService) { s.log = l }
}

func WithSyncNotifier(n Notifier) SyncOption {
	return func(s *syncService) { s.notifier = n }
}

func WithSyncMetrics(m *metrics.SyncMetrics) SyncOption {
	return func(s *syncService) { s.metrics = m }
}

func WithSyncClock(now func() time.Time) SyncOption {
	return func(s *syncService) { s.now = now }
}

// WithInitialOnline sets the connectivity state assumed before the first ping.
func WithInitialOnline(online bool) SyncOption {
	return func(s *syncService) { s.online = online }
}

type syncService struct {
	client   client.Client
	store    *client.Store
	log      logging.Logger
	notifier Notifier
	metrics  *metrics.SyncMetrics
	now      func() time.Time

	mu         sync.Mutex
	online     bool
	inProgress bool
	rerun      bool
}

// NewSyncService builds the queue over the local store. The service starts
// offline unless WithInitialOnline says otherwise.
func NewSyncService(c client.Client, store *client.Store, opts ...SyncOption) SyncService {
	s := &syncService{
		client:   c,
		store:    store,
		log:      logging.Nop(),
		notifier: nopNotifier{},
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *syncService) IsOnline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *syncService) SetOnline(ctx context.Context, online bool) {
	if !s.setOnline(online) {
		return
	}
	s.notifier.Connectivity(online)
	if !online {
		s.log.Info(ctx, "connection lost, working offline")
		return
	}
	s.log.Info(ctx, "connection restored, flushing sync queue")
	if _, err := s.Flush(ctx); err != nil {
		s.log.Error(ctx, "sync flush failed", logging.Err(err)...)
	}
}

// setOnline stores the state and reports whether it changed.
func (s *syncService) setOnline(online bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.online == online {
		return false
	}
	s.online = online
	return true
}

func (s *syncService) Enqueue(ctx context.Context, op *models.SyncOperation) error {
	if err := s.store.Queue.Append(ctx, op); err != nil {
		return fmt.Errorf("failed to enqueue %s %s: %w", op.Kind, op.Entity, err)
	}
	s.log.Debug(ctx, "operation queued", "op", op.ID, "kind", op.Kind, "target", op.TargetID)
	s.reportPending(ctx)

	if s.IsOnline() {
		if _, err := s.Flush(ctx); err != nil {
			s.log.Error(ctx, "sync flush failed", logging.Err(err)...)
		}
	}
	return nil
}

func (s *syncService) Pending(ctx context.Context) ([]models.SyncOperation, error) {
	return s.store.Queue.List(ctx)
}

func (s *syncService) LastSync(ctx context.Context) (*time.Time, error) {
	return s.store.Metadata.GetTime(ctx, common.MetaLastSync)
}

func (s *syncService) Flush(ctx context.Context) (FlushReport, error) {
	s.mu.Lock()
	if s.inProgress {
		s.rerun = true
		s.mu.Unlock()
		return FlushReport{Deferred: true}, nil
	}
	s.inProgress = true
	s.mu.Unlock()

	var total FlushReport
	for {
		rep, err := s.pass(ctx)
		total.add(rep)

		s.mu.Lock()
		again := s.rerun && s.online && err == nil
		s.rerun = false
		if !again {
			s.inProgress = false
		}
		s.mu.Unlock()

		if !again {
			return total, err
		}
	}
}

// pass replays the queue once in FIFO order.
func (s *syncService) pass(ctx context.Context) (FlushReport, error) {
	var rep FlushReport

	ops, err := s.store.Queue.List(ctx)
	if err != nil {
		return rep, fmt.Errorf("failed to load sync queue: %w", err)
	}
	if len(ops) == 0 {
		return rep, nil
	}

	// Operations behind a failed one on the same record wait for the next pass.
	blocked := make(map[string]bool)
	// Server ids adopted during this pass, by temporary id.
	renamed := make(map[string]string)
	// Queued operations left per record.
	left := make(map[string]int)
	for _, op := range ops {
		left[opKey(op.Entity, op.TargetID)]++
	}

	stopped := false
	for i := range ops {
		op := ops[i]
		if id, ok := renamed[op.TargetID]; ok {
			op.TargetID = id
		}
		key := opKey(op.Entity, op.TargetID)
		left[key]--

		if !s.IsOnline() {
			stopped = true
			break
		}
		if blocked[key] {
			rep.Held++
			continue
		}

		err := s.replay(ctx, &op, left[key] > 0, renamed)
		switch {
		case err == nil:
			rep.Applied++
			s.metrics.ObserveReplay(string(op.Kind), metrics.ResultApplied)
			if id, ok := renamed[op.TargetID]; ok && op.Kind == models.OpCreate {
				left[opKey(op.Entity, id)] += left[key]
				left[key] = 0
			}
			continue
		case errors.Is(err, errDropped):
			rep.Dropped++
			s.metrics.ObserveReplay(string(op.Kind), metrics.ResultDropped)
			continue
		case errors.Is(err, errLocal):
			return rep, err
		}

		rep.Failed++
		blocked[key] = true
		s.metrics.ObserveReplay(string(op.Kind), metrics.ResultFailed)
		s.log.Warn(ctx, "sync operation failed", "op", op.ID, "kind", op.Kind, "target", op.TargetID, "error", err.Error())
		if ferr := s.store.Queue.RecordFailure(ctx, op.ID, err.Error()); ferr != nil && !errors.Is(ferr, common.ErrorNotFound) {
			return rep, fmt.Errorf("failed to record sync failure: %w", ferr)
		}

		if errors.Is(err, client.ErrUnavailable) {
			s.SetOnline(ctx, false)
			stopped = true
			break
		}
		if errors.Is(err, client.ErrUnauthorized) {
			stopped = true
			break
		}
	}

	count, err := s.store.Queue.Count(ctx)
	if err != nil {
		return rep, fmt.Errorf("failed to count sync queue: %w", err)
	}
	rep.Remaining = count
	s.metrics.SetPending(count)
	s.metrics.IncFlush()

	if count == 0 && !stopped {
		if err := s.store.Metadata.SetTime(ctx, common.MetaLastSync, s.now().UTC()); err != nil {
			return rep, fmt.Errorf("failed to save last sync time: %w", err)
		}
	}
	s.log.Info(ctx, "sync pass finished",
		"applied", rep.Applied, "dropped", rep.Dropped, "failed", rep.Failed, "held", rep.Held, "remaining", count)
	return rep, nil
}

var (
	// errDropped marks an operation removed without being applied.
	errDropped = errors.New("operation dropped")
	// errLocal marks a local store failure, which aborts the pass.
	errLocal = errors.New("local store failure")
)

func opKey(entity models.EntityKind, target string) string {
	return string(entity) + ":" + target
}

// replay sends one operation and reconciles the result into the local store.
// more reports whether later operations target the same record; their
// content is newer than op, so the local record is left for them.
func (s *syncService) replay(ctx context.Context, op *models.SyncOperation, more bool, renamed map[string]string) error {
	if op.Entity != models.EntitySubscription {
		s.log.Warn(ctx, "dropping operation for unsupported entity", "op", op.ID, "entity", op.Entity)
		return s.drop(ctx, op)
	}

	switch op.Kind {
	case models.OpCreate:
		return s.replayCreate(ctx, op, renamed)
	case models.OpUpdate:
		return s.replayUpdate(ctx, op, more)
	case models.OpDelete:
		return s.replayDelete(ctx, op)
	default:
		s.log.Warn(ctx, "dropping operation of unknown kind", "op", op.ID, "kind", op.Kind)
		return s.drop(ctx, op)
	}
}

func (s *syncService) drop(ctx context.Context, op *models.SyncOperation) error {
	if err := s.store.Queue.Remove(ctx, op.ID); err != nil {
		return fmt.Errorf("%w: %v", errLocal, err)
	}
	return errDropped
}

func (s *syncService) replayCreate(ctx context.Context, op *models.SyncOperation, renamed map[string]string) error {
	sub, err := op.DecodeSubscription()
	if err != nil {
		s.log.Warn(ctx, "dropping malformed operation", "op", op.ID, "error", err.Error())
		return s.drop(ctx, op)
	}
	tempID := op.TargetID
	sub.ID = tempID

	created, err := s.client.CreateSubscription(ctx, sub)
	if err != nil {
		return err
	}
	created.State = models.StateConfirmed

	err = s.store.InTx(ctx, func(ctx context.Context, r *client.Repositories) error {
		if _, err := r.Subscriptions.GetByID(ctx, tempID); err == nil {
			if err := r.Subscriptions.ReplaceID(ctx, tempID, created.ID); err != nil {
				return err
			}
		} else if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		n, err := r.Queue.Retarget(ctx, op.Entity, tempID, created.ID)
		if err != nil {
			return err
		}
		// Queued edits are newer than the create payload; keep the local copy.
		if n > 1 {
			if err := r.Subscriptions.SetState(ctx, created.ID, models.StatePendingSync); err != nil && !errors.Is(err, common.ErrorNotFound) {
				return err
			}
		} else if err := r.Subscriptions.CreateOrUpdate(ctx, created); err != nil {
			return err
		}
		return r.Queue.Remove(ctx, op.ID)
	})
	if err != nil {
		return fmt.Errorf("%w: adopting server id %s for %s: %v", errLocal, created.ID, tempID, err)
	}
	renamed[tempID] = created.ID
	s.log.Info(ctx, "subscription created on server", "temp_id", tempID, "id", created.ID)
	return nil
}

func (s *syncService) replayUpdate(ctx context.Context, op *models.SyncOperation, more bool) error {
	sub, err := op.DecodeSubscription()
	if err != nil {
		s.log.Warn(ctx, "dropping malformed operation", "op", op.ID, "error", err.Error())
		return s.drop(ctx, op)
	}
	if models.IsTemporaryID(op.TargetID) {
		return fmt.Errorf("record %s is not created on the server yet", op.TargetID)
	}
	sub.ID = op.TargetID

	updated, err := s.client.UpdateSubscription(ctx, sub)
	if errors.Is(err, client.ErrNotFound) {
		s.log.Warn(ctx, "dropping update of a record the server does not have", "op", op.ID, "target", op.TargetID)
		if !more {
			if err := s.store.Subscriptions.SetState(ctx, op.TargetID, models.StateConfirmed); err != nil && !errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("%w: %v", errLocal, err)
			}
		}
		return s.drop(ctx, op)
	}
	if err != nil {
		return err
	}
	updated.State = models.StateConfirmed

	err = s.store.InTx(ctx, func(ctx context.Context, r *client.Repositories) error {
		if !more {
			if _, err := r.Subscriptions.GetByID(ctx, updated.ID); err == nil {
				if err := r.Subscriptions.Update(ctx, updated); err != nil {
					return err
				}
			} else if !errors.Is(err, common.ErrorNotFound) {
				return err
			}
		}
		return r.Queue.Remove(ctx, op.ID)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errLocal, err)
	}
	return nil
}

func (s *syncService) replayDelete(ctx context.Context, op *models.SyncOperation) error {
	err := s.client.DeleteSubscription(ctx, op.TargetID)
	if err != nil && !errors.Is(err, client.ErrNotFound) {
		return err
	}
	if errors.Is(err, client.ErrNotFound) {
		s.log.Debug(ctx, "record already deleted on server", "target", op.TargetID)
	}

	err = s.store.InTx(ctx, func(ctx context.Context, r *client.Repositories) error {
		if err := r.Subscriptions.Delete(ctx, op.TargetID); err != nil {
			return err
		}
		if err := r.Payments.DeleteBySubscription(ctx, op.TargetID); err != nil {
			return err
		}
		return r.Queue.Remove(ctx, op.ID)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errLocal, err)
	}
	return nil
}

func (s *syncService) reportPending(ctx context.Context) {
	n, err := s.store.Queue.Count(ctx)
	if err != nil {
		s.log.Warn(ctx, "failed to count sync queue", logging.Err(err)...)
		return
	}
	s.metrics.SetPending(n)
}
