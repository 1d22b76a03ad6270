package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/manisoft/subman/internal/client/client"
	"github.com/manisoft/subman/internal/client/models"
	"github.com/manisoft/subman/internal/client/storetest"
	"github.com/shopspring/decimal"
)

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func newStore(t *testing.T) *client.Store {
	t.Helper()
	return client.NewStore(storetest.NewDB(t))
}

// fakeClient is an in-memory client.Client. Hooks left nil succeed.
type fakeClient struct {
	mu sync.Mutex

	PingErr error

	LoginRes    *client.AuthResult
	LoginErr    error
	RegisterRes *client.AuthResult
	RegisterErr error

	ListRes []models.Subscription
	ListErr error

	CreateFn func(s *models.Subscription) (*models.Subscription, error)
	UpdateFn func(s *models.Subscription) (*models.Subscription, error)
	DeleteFn func(id string) error

	Token   string
	Calls   []string
	Created []models.Subscription
	Updated []models.Subscription
	Deleted []string
	nextID  int
}

func (f *fakeClient) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, call)
}

func (f *fakeClient) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Token = token
}

func (f *fakeClient) token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Token
}

func (f *fakeClient) Ping(ctx context.Context) error {
	f.record("ping")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PingErr
}

func (f *fakeClient) Login(ctx context.Context, email, password string) (*client.AuthResult, error) {
	f.record("login")
	return f.LoginRes, f.LoginErr
}

func (f *fakeClient) Register(ctx context.Context, email, password, name string) (*client.AuthResult, error) {
	f.record("register")
	return f.RegisterRes, f.RegisterErr
}

func (f *fakeClient) ListSubscriptions(ctx context.Context, userID string) ([]models.Subscription, error) {
	f.record("list")
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]models.Subscription(nil), f.ListRes...), nil
}

func (f *fakeClient) CreateSubscription(ctx context.Context, s *models.Subscription) (*models.Subscription, error) {
	f.record("create")
	f.mu.Lock()
	f.Created = append(f.Created, *s)
	fn := f.CreateFn
	f.mu.Unlock()
	if fn != nil {
		return fn(s)
	}
	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("srv-%d", f.nextID)
	f.mu.Unlock()
	out := *s
	out.ID = id
	out.State = models.StateConfirmed
	return &out, nil
}

func (f *fakeClient) UpdateSubscription(ctx context.Context, s *models.Subscription) (*models.Subscription, error) {
	f.record("update")
	f.mu.Lock()
	f.Updated = append(f.Updated, *s)
	fn := f.UpdateFn
	f.mu.Unlock()
	if fn != nil {
		return fn(s)
	}
	out := *s
	out.State = models.StateConfirmed
	return &out, nil
}

func (f *fakeClient) DeleteSubscription(ctx context.Context, id string) error {
	f.record("delete")
	f.mu.Lock()
	f.Deleted = append(f.Deleted, id)
	fn := f.DeleteFn
	f.mu.Unlock()
	if fn != nil {
		return fn(id)
	}
	return nil
}

var _ client.Client = (*fakeClient)(nil)

// recordingNotifier captures notifications.
type recordingNotifier struct {
	mu           sync.Mutex
	connectivity []bool
	due          map[string]int
}

func (n *recordingNotifier) Connectivity(online bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connectivity = append(n.connectivity, online)
}

func (n *recordingNotifier) PaymentDue(sub models.Subscription, days int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.due == nil {
		n.due = map[string]int{}
	}
	n.due[sub.Name] = days
}

func (n *recordingNotifier) states() []bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]bool(nil), n.connectivity...)
}

func subscription(id, userID, name string) *models.Subscription {
	return &models.Subscription{
		ID:              id,
		UserID:          userID,
		CategoryID:      "1",
		Name:            name,
		Cost:            decimal.RequireFromString("15.99"),
		BillingCycle:    models.BillingMonthly,
		StartDate:       now.AddDate(0, -2, 0),
		Status:          models.StatusActive,
		NextBillingDate: now.AddDate(0, 0, 10),
		CreatedAt:       now,
		UpdatedAt:       now,
		State:           models.StateConfirmed,
	}
}

func apiError(kind error) error {
	return fmt.Errorf("%w: injected", kind)
}
