package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/manisoft/subman/internal/client/config"
	"github.com/manisoft/subman/internal/client/models"
	"github.com/manisoft/subman/internal/client/services"
	"github.com/manisoft/subman/internal/common"
	"github.com/manisoft/subman/internal/logging"
)

var testNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

// captureOutput replaces printlnFn for the duration of the test and returns
// a function yielding everything printed so far.
func captureOutput(t *testing.T) func() string {
	t.Helper()
	var b strings.Builder
	orig := printlnFn
	printlnFn = func(args ...any) (int, error) { return fmt.Fprintln(&b, args...) }
	t.Cleanup(func() { printlnFn = orig })
	return b.String
}

type fakeAuth struct {
	services.AuthService

	user *models.User

	loginEmail, loginPass string
	regEmail, regPass     string
	regName               string
	err                   error
	logoutCalled          bool
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (*models.User, error) {
	f.loginEmail, f.loginPass = email, password
	if f.err != nil {
		return nil, f.err
	}
	f.user = &models.User{ID: "u1", Email: email}
	return f.user, nil
}

func (f *fakeAuth) Register(_ context.Context, email, password, name string) (*models.User, error) {
	f.regEmail, f.regPass, f.regName = email, password, name
	if f.err != nil {
		return nil, f.err
	}
	f.user = &models.User{ID: "u1", Email: email, Name: name}
	return f.user, nil
}

func (f *fakeAuth) Logout(context.Context) error {
	f.logoutCalled = true
	if f.err != nil {
		return f.err
	}
	f.user = nil
	return nil
}

func (f *fakeAuth) CurrentUser() *models.User   { return f.user }
func (f *fakeAuth) Close(context.Context) error { return nil }

type fakeSubs struct {
	services.SubscriptionService

	list     []models.Subscription
	fetchErr error
	byID     map[string]*models.Subscription

	created  *models.Subscription
	updated  *models.Subscription
	deleted  string
	payment  *models.Payment
	category string
	within   time.Duration
	err      error
	// offline makes Create answer like the service does without a server.
	offline bool
}

func (f *fakeSubs) Fetch(context.Context, string) ([]models.Subscription, error) {
	return f.list, f.fetchErr
}

func (f *fakeSubs) Get(_ context.Context, id string) (*models.Subscription, error) {
	if s, ok := f.byID[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, fmt.Errorf("failed to get subscription: %w", common.ErrorNotFound)
}

func (f *fakeSubs) Create(_ context.Context, s *models.Subscription) (*models.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	cp := *s
	switch {
	case f.offline:
		cp.ID, cp.State = "tmp-1", models.StatePendingSync
	case cp.ID == "":
		cp.ID = "srv-1"
	}
	f.created = &cp
	return &cp, nil
}

func (f *fakeSubs) Update(_ context.Context, s *models.Subscription) (*models.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	cp := *s
	f.updated = &cp
	return &cp, nil
}

func (f *fakeSubs) Delete(_ context.Context, id string) error {
	f.deleted = id
	return f.err
}

func (f *fakeSubs) RecordPayment(_ context.Context, p *models.Payment) (*models.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	cp := *p
	cp.PaidAt = testNow
	f.payment = &cp
	return &cp, nil
}

func (f *fakeSubs) Payments(context.Context, string) ([]models.Payment, error) {
	if f.payment == nil {
		return nil, nil
	}
	return []models.Payment{*f.payment}, nil
}

func (f *fakeSubs) Categories(context.Context) ([]models.Category, error) {
	return models.DefaultCategories, nil
}

func (f *fakeSubs) AddCategory(_ context.Context, name, _ string) (*models.Category, error) {
	f.category = name
	return &models.Category{ID: "6", Name: name}, nil
}

func (f *fakeSubs) Summary(context.Context, string) (*models.Summary, error) {
	sum := models.Summarize(f.list, testNow, 7*24*time.Hour)
	return &sum, nil
}

func (f *fakeSubs) Reminders(_ context.Context, _ string, within time.Duration) ([]models.PaymentDue, error) {
	f.within = within
	return models.UpcomingPayments(f.list, testNow, within), nil
}

type fakeSync struct {
	services.SyncService

	online  bool
	pending []models.SyncOperation
	last    *time.Time
	report  services.FlushReport
	flushes int
}

func (f *fakeSync) IsOnline() bool                       { return f.online }
func (f *fakeSync) SetOnline(_ context.Context, on bool) { f.online = on }
func (f *fakeSync) Pending(context.Context) ([]models.SyncOperation, error) {
	return f.pending, nil
}
func (f *fakeSync) LastSync(context.Context) (*time.Time, error) { return f.last, nil }
func (f *fakeSync) Flush(context.Context) (services.FlushReport, error) {
	f.flushes++
	return f.report, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type testApp struct {
	*App
	auth *fakeAuth
	subs *fakeSubs
	sync *fakeSync
}

// newTestApp builds an App over fakes; input feeds the interactive prompts.
func newTestApp(t *testing.T, input string, pingErr error) *testApp {
	t.Helper()
	auth := &fakeAuth{}
	subs := &fakeSubs{byID: map[string]*models.Subscription{}}
	syn := &fakeSync{}

	cfg := &config.Config{ReminderWindow: 7 * 24 * time.Hour}
	app := &App{
		config:      cfg,
		log:         logging.Nop(),
		authService: auth,
		subService:  subs,
		syncService: syn,
		watcher:     services.NewConnectivityWatcher(fakePinger{err: pingErr}, syn, time.Second, logging.Nop()),
		reader:      bufio.NewReader(strings.NewReader(input)),
		out:         io.Discard,
	}
	return &testApp{App: app, auth: auth, subs: subs, sync: syn}
}

func (ta *testApp) login() {
	ta.auth.user = &models.User{ID: "u1", Email: "ann@example.com", Name: "Ann"}
}
