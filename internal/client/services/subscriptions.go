package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/manisoft/subman/internal/client/client"
	"github.com/manisoft/subman/internal/client/models"
	"github.com/manisoft/subman/internal/common"
	"github.com/manisoft/subman/internal/logging"
	"github.com/shopspring/decimal"
)

// DefaultReminderWindow is how far ahead Summary looks for upcoming charges.
const DefaultReminderWindow = 7 * 24 * time.Hour

// SubscriptionService is the single CRUD surface over subscriptions. It
// prefers the server, falls back to the local store and buffers mutations in
// the sync queue while the server cannot be reached.
type SubscriptionService interface {
	// Fetch returns the user's subscriptions, from the server when possible.
	Fetch(ctx context.Context, userID string) ([]models.Subscription, error)
	Get(ctx context.Context, id string) (*models.Subscription, error)
	Create(ctx context.Context, s *models.Subscription) (*models.Subscription, error)
	Update(ctx context.Context, s *models.Subscription) (*models.Subscription, error)
	Delete(ctx context.Context, id string) error

	Summary(ctx context.Context, userID string) (*models.Summary, error)
	// Reminders lists active subscriptions due within the window and passes
	// each one to the notifier.
	Reminders(ctx context.Context, userID string, within time.Duration) ([]models.PaymentDue, error)

	RecordPayment(ctx context.Context, p *models.Payment) (*models.Payment, error)
	Payments(ctx context.Context, subscriptionID string) ([]models.Payment, error)

	Categories(ctx context.Context) ([]models.Category, error)
	AddCategory(ctx context.Context, name, description string) (*models.Category, error)
}

// SubscriptionOption customizes the subscription service.
type SubscriptionOption func(*subscriptionService)

func WithSubscriptionLogger(l logging.Logger) SubscriptionOption {
	return func(s *subscriptionService) { s.log = l }
}

func WithSubscriptionNotifier(n Notifier) SubscriptionOption {
	return func(s *subscriptionService) { s.notifier = n }
}

func WithSubscriptionClock(now func() time.Time) SubscriptionOption {
	return func(s *subscriptionService) { s.now = now }
}

func WithReminderWindow(d time.Duration) SubscriptionOption {
	return func(s *subscriptionService) {
		if d > 0 {
			s.window = d
		}
	}
}

type subscriptionService struct {
	client   client.Client
	store    *client.Store
	sync     SyncService
	log      logging.Logger
	notifier Notifier
	now      func() time.Time
	window   time.Duration
}

func NewSubscriptionService(c client.Client, store *client.Store, sync SyncService, opts ...SubscriptionOption) SubscriptionService {
	s := &subscriptionService{
		client:   c,
		store:    store,
		sync:     sync,
		log:      logging.Nop(),
		notifier: nopNotifier{},
		now:      time.Now,
		window:   DefaultReminderWindow,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *subscriptionService) clock() time.Time {
	return s.now().UTC()
}

// noteFailure flips the sync service offline when the server is unreachable.
func (s *subscriptionService) noteFailure(ctx context.Context, err error) {
	if errors.Is(err, client.ErrUnavailable) {
		s.sync.SetOnline(ctx, false)
	}
}

func (s *subscriptionService) Fetch(ctx context.Context, userID string) ([]models.Subscription, error) {
	if userID == "" {
		return nil, common.ErrorNoSession
	}

	var remoteErr error = client.ErrUnavailable
	if s.sync.IsOnline() {
		remote, err := s.client.ListSubscriptions(ctx, userID)
		if err == nil {
			return s.reconcile(ctx, userID, remote)
		}
		s.noteFailure(ctx, err)
		remoteErr = err
	}

	s.log.Info(ctx, "serving subscriptions from local store", "user", userID, "reason", remoteErr.Error())
	local, err := s.local(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(local) == 0 {
		return nil, remoteErr
	}
	return local, nil
}

// reconcile stores the server set and merges in records still pending.
func (s *subscriptionService) reconcile(ctx context.Context, userID string, remote []models.Subscription) ([]models.Subscription, error) {
	now := s.clock()

	pending, err := s.store.Subscriptions.ListPending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending subscriptions: %w", err)
	}
	pendingIDs := make(map[string]bool, len(pending))
	for _, p := range pending {
		pendingIDs[p.ID] = true
	}

	queued, err := s.store.Queue.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync queue: %w", err)
	}
	// Deleted locally, still on the server until the DELETE is replayed.
	deleting := make(map[string]bool)
	for _, op := range queued {
		if op.Kind == models.OpDelete && op.Entity == models.EntitySubscription {
			deleting[op.TargetID] = true
		}
	}

	result := make([]models.Subscription, 0, len(remote)+len(pending))
	keep := make([]string, 0, len(remote))
	err = s.store.InTx(ctx, func(ctx context.Context, r *client.Repositories) error {
		for i := range remote {
			sub := remote[i]
			keep = append(keep, sub.ID)
			// A local edit not yet replayed wins over the server copy.
			if pendingIDs[sub.ID] || deleting[sub.ID] {
				continue
			}
			sub.AdvanceBillingDate(now)
			if err := r.Subscriptions.CreateOrUpdate(ctx, &sub); err != nil {
				return err
			}
			result = append(result, sub)
		}
		// Records with queued operations may not be on the server yet.
		if len(queued) == 0 {
			n, err := r.Subscriptions.PruneConfirmed(ctx, userID, keep)
			if err != nil {
				return err
			}
			if n > 0 {
				s.log.Debug(ctx, "pruned subscriptions removed on server", "user", userID, "count", n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store fetched subscriptions: %w", err)
	}

	for _, p := range pending {
		p.AdvanceBillingDate(now)
		result = append(result, p)
	}
	sortSubscriptions(result)
	return result, nil
}

func (s *subscriptionService) local(ctx context.Context, userID string) ([]models.Subscription, error) {
	subs, err := s.store.Subscriptions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read local subscriptions: %w", err)
	}
	now := s.clock()
	for i := range subs {
		subs[i].AdvanceBillingDate(now)
	}
	sortSubscriptions(subs)
	return subs, nil
}

func sortSubscriptions(subs []models.Subscription) {
	sort.SliceStable(subs, func(i, j int) bool {
		if !subs[i].NextBillingDate.Equal(subs[j].NextBillingDate) {
			return subs[i].NextBillingDate.Before(subs[j].NextBillingDate)
		}
		return subs[i].Name < subs[j].Name
	})
}

func (s *subscriptionService) Get(ctx context.Context, id string) (*models.Subscription, error) {
	sub, err := s.store.Subscriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sub.AdvanceBillingDate(s.clock())
	return sub, nil
}

// prepare normalizes and validates a record before it is written anywhere.
func (s *subscriptionService) prepare(sub *models.Subscription, now time.Time) error {
	sub.Name = strings.TrimSpace(sub.Name)
	if sub.Name == "" {
		return fmt.Errorf("%w: name is required", common.ErrorValidation)
	}
	sub.ApplyDefaults(now)
	if err := sub.Validate(); err != nil {
		return err
	}
	sub.AdvanceBillingDate(now)
	return nil
}

func (s *subscriptionService) Create(ctx context.Context, in *models.Subscription) (*models.Subscription, error) {
	now := s.clock()
	sub := *in
	sub.ID = ""
	sub.State = ""
	sub.CreatedAt, sub.UpdatedAt = now, now
	if err := s.prepare(&sub, now); err != nil {
		return nil, err
	}

	if s.sync.IsOnline() {
		created, err := s.client.CreateSubscription(ctx, &sub)
		if err == nil {
			created.State = models.StateConfirmed
			if err := s.store.Subscriptions.CreateOrUpdate(ctx, created); err != nil {
				return nil, fmt.Errorf("failed to save subscription: %w", err)
			}
			return created, nil
		}
		s.noteFailure(ctx, err)
		if !client.IsRetryable(err) {
			return nil, err
		}
		s.log.Warn(ctx, "create failed, queued for sync", logging.Err(err)...)
	}

	sub.ID = models.NewTemporaryID(now)
	sub.State = models.StatePendingSync
	if err := s.store.Subscriptions.Insert(ctx, &sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}
	if err := s.enqueue(ctx, models.OpCreate, sub.ID, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *subscriptionService) Update(ctx context.Context, in *models.Subscription) (*models.Subscription, error) {
	if in.ID == "" {
		return nil, fmt.Errorf("%w: id is required", common.ErrorValidation)
	}
	now := s.clock()
	sub := *in
	sub.UpdatedAt = now
	if err := s.prepare(&sub, now); err != nil {
		return nil, err
	}

	queued, err := s.hasQueued(ctx, sub.ID)
	if err != nil {
		return nil, err
	}

	var remoteErr error = client.ErrUnavailable
	// Earlier queued operations on this record must reach the server first.
	if !queued && !models.IsTemporaryID(sub.ID) && s.sync.IsOnline() {
		updated, err := s.client.UpdateSubscription(ctx, &sub)
		if err == nil {
			updated.State = models.StateConfirmed
			if err := s.store.Subscriptions.CreateOrUpdate(ctx, updated); err != nil {
				return nil, fmt.Errorf("failed to save subscription: %w", err)
			}
			return updated, nil
		}
		s.noteFailure(ctx, err)
		remoteErr = err
	}

	if errors.Is(remoteErr, client.ErrNotFound) {
		sub.State = models.StateConfirmed
		if err := s.store.Subscriptions.CreateOrUpdate(ctx, &sub); err != nil {
			return nil, fmt.Errorf("failed to save subscription: %w", err)
		}
		return nil, remoteErr
	}
	if errors.Is(remoteErr, client.ErrRejected) {
		return nil, remoteErr
	}

	sub.State = models.StatePendingSync
	if err := s.store.Subscriptions.CreateOrUpdate(ctx, &sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}
	if err := s.enqueue(ctx, models.OpUpdate, sub.ID, &sub); err != nil {
		return nil, err
	}
	if errors.Is(remoteErr, client.ErrUnauthorized) {
		return nil, remoteErr
	}
	return &sub, nil
}

func (s *subscriptionService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", common.ErrorValidation)
	}

	// Never reached the server: forget it together with its queued operations.
	if models.IsTemporaryID(id) {
		return s.store.InTx(ctx, func(ctx context.Context, r *client.Repositories) error {
			if _, err := r.Queue.RemoveByTarget(ctx, models.EntitySubscription, id); err != nil {
				return err
			}
			if err := r.Payments.DeleteBySubscription(ctx, id); err != nil {
				return err
			}
			return r.Subscriptions.Delete(ctx, id)
		})
	}

	var remoteErr error = client.ErrUnavailable
	if s.sync.IsOnline() {
		remoteErr = s.client.DeleteSubscription(ctx, id)
		s.noteFailure(ctx, remoteErr)
	}
	if errors.Is(remoteErr, client.ErrUnauthorized) {
		return remoteErr
	}
	applied := remoteErr == nil || errors.Is(remoteErr, client.ErrNotFound)
	if !applied && !client.IsRetryable(remoteErr) {
		return remoteErr
	}

	err := s.store.InTx(ctx, func(ctx context.Context, r *client.Repositories) error {
		// Queued edits of a deleted record are moot.
		if _, err := r.Queue.RemoveByTarget(ctx, models.EntitySubscription, id); err != nil {
			return err
		}
		if err := r.Payments.DeleteBySubscription(ctx, id); err != nil {
			return err
		}
		return r.Subscriptions.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("failed to delete subscription locally: %w", err)
	}
	if applied {
		return nil
	}
	return s.enqueue(ctx, models.OpDelete, id, nil)
}

func (s *subscriptionService) enqueue(ctx context.Context, kind models.OperationKind, target string, sub *models.Subscription) error {
	var payload any
	if sub != nil {
		payload = sub
	}
	op, err := models.NewSyncOperation(kind, models.EntitySubscription, target, payload, s.clock())
	if err != nil {
		return err
	}
	return s.sync.Enqueue(ctx, op)
}

func (s *subscriptionService) hasQueued(ctx context.Context, id string) (bool, error) {
	ops, err := s.store.Queue.List(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read sync queue: %w", err)
	}
	for _, op := range ops {
		if op.Entity == models.EntitySubscription && op.TargetID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *subscriptionService) Summary(ctx context.Context, userID string) (*models.Summary, error) {
	subs, err := s.local(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum := models.Summarize(subs, s.clock(), s.window)
	return &sum, nil
}

func (s *subscriptionService) Reminders(ctx context.Context, userID string, within time.Duration) ([]models.PaymentDue, error) {
	if within <= 0 {
		within = s.window
	}
	subs, err := s.local(ctx, userID)
	if err != nil {
		return nil, err
	}
	due := models.UpcomingPayments(subs, s.clock(), within)
	for _, d := range due {
		s.notifier.PaymentDue(d.Subscription, d.DaysUntil)
	}
	return due, nil
}

func (s *subscriptionService) RecordPayment(ctx context.Context, in *models.Payment) (*models.Payment, error) {
	sub, err := s.store.Subscriptions.GetByID(ctx, in.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription %q: %w", in.SubscriptionID, err)
	}

	p := *in
	if p.Amount.IsZero() {
		p.Amount = sub.Cost
	}
	if p.Amount.LessThan(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must not be negative", common.ErrorValidation)
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = s.clock()
	}
	p.Status = models.ParsePaymentStatus(string(p.Status))

	if err := s.store.Payments.Insert(ctx, &p); err != nil {
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}
	return &p, nil
}

func (s *subscriptionService) Payments(ctx context.Context, subscriptionID string) ([]models.Payment, error) {
	return s.store.Payments.ListBySubscription(ctx, subscriptionID)
}

func (s *subscriptionService) Categories(ctx context.Context) ([]models.Category, error) {
	return s.store.Categories.List(ctx)
}

func (s *subscriptionService) AddCategory(ctx context.Context, name, description string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: category name is required", common.ErrorValidation)
	}
	return s.store.Categories.CreateOrUpdate(ctx, &models.Category{Name: name, Description: strings.TrimSpace(description)})
}
