package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/manisoft/subman/internal/client/client"
	"github.com/manisoft/subman/internal/client/config"
	"github.com/manisoft/subman/internal/client/services"
	"github.com/manisoft/subman/internal/logging"
	"github.com/manisoft/subman/internal/metrics"
)

type Mode string

const (
	ModeOffline   Mode = "offline"
	ModeOnline    Mode = "online"
	ModeLoggedOut Mode = "logged out"
)

// App is the composition root of the terminal client. Every service is built
// once in NewApp and shared by reference.
type App struct {
	config *config.Config
	log    logging.Logger

	store    *client.Store
	registry *prometheus.Registry

	authService services.AuthService
	subService  services.SubscriptionService
	syncService services.SyncService
	watcher     *services.ConnectivityWatcher
	notifier    *consoleNotifier

	reader *bufio.Reader
	out    io.Writer

	closers []io.Closer
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	logOut, closeLog, err := openLogOutput(c.LogFile)
	if err != nil {
		return nil, err
	}
	log := logging.New(logOut, c.LogFormat, c.LogLevel)

	store, err := client.OpenStore(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", logging.Err(err)...)
		return nil, multierr.Append(err, closeLog.Close())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	api := client.NewHTTPClient(c.APIBaseURL, c.RequestTimeout)
	notifier := newConsoleNotifier(os.Stdout)

	syncService := services.NewSyncService(api, store,
		services.WithSyncLogger(log.With("component", "sync")),
		services.WithSyncNotifier(notifier),
		services.WithSyncMetrics(metrics.NewSyncMetrics(reg)),
	)
	subService := services.NewSubscriptionService(api, store, syncService,
		services.WithSubscriptionLogger(log.With("component", "subscriptions")),
		services.WithSubscriptionNotifier(notifier),
		services.WithReminderWindow(c.ReminderWindow),
	)
	authService := services.NewAuthService(api, store, log.With("component", "auth"))
	watcher := services.NewConnectivityWatcher(api, syncService, c.OnlineCheckInterval, log.With("component", "watcher"))

	return &App{
		config:      c,
		log:         log,
		store:       store,
		registry:    reg,
		authService: authService,
		subService:  subService,
		syncService: syncService,
		watcher:     watcher,
		notifier:    notifier,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		closers:     []io.Closer{store, closeLog},
	}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openLogOutput(path string) (io.Writer, io.Closer, error) {
	if path == "" {
		return os.Stderr, nopCloser{}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening log file: %w", err)
	}
	return f, f, nil
}

// Run restores the previous session, starts the connectivity watcher and the
// optional metrics endpoint, and blocks in the REPL until the user exits.
func (a *App) Run(ctx context.Context) (err error) {
	defer func() {
		err = multierr.Append(err, a.Close(context.Background()))
	}()

	if u, rerr := a.authService.RestoreSession(ctx); rerr == nil {
		printlnFn("Welcome back,", displayName(u))
	} else {
		a.log.Debug(ctx, "no session restored", logging.Err(rerr)...)
	}

	a.watcher.Check(ctx)

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.watcher.Run(gctx) })
	if a.config.MetricsAddr != "" {
		g.Go(func() error { return a.serveMetrics(gctx) })
	}

	if a.currentUserID() != "" {
		_ = a.Reminders(ctx, nil)
	}

	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader))
	cancel()

	return g.Wait()
}

func (a *App) serveMetrics(ctx context.Context) error {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              a.config.MetricsAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	a.log.Info(ctx, "metrics endpoint listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server error: %w", err)
	}
	return nil
}

// Close releases the API client, the local store and the log file.
func (a *App) Close(ctx context.Context) error {
	err := a.authService.Close(ctx)
	for _, c := range a.closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}

func (a *App) isLoggedIn() bool {
	return a.authService.CurrentUser() != nil
}

func (a *App) currentUserID() string {
	if u := a.authService.CurrentUser(); u != nil {
		return u.ID
	}
	return ""
}

func (a *App) mode() Mode {
	switch {
	case !a.isLoggedIn():
		return ModeLoggedOut
	case a.syncService.IsOnline():
		return ModeOnline
	default:
		return ModeOffline
	}
}

// status renders the prompt prefix.
func (a *App) status() string {
	u := a.authService.CurrentUser()
	if u == nil {
		return string(a.mode())
	}
	return fmt.Sprintf("%s [%s]", u.Email, a.mode())
}
