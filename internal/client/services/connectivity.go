package services

import (
	"context"
	"time"

	"github.com/manisoft/subman/internal/logging"
)

const (
	// DefaultPingTimeout bounds a single connectivity check.
	DefaultPingTimeout = 3 * time.Second
	// DefaultCheckInterval is used when no positive interval is configured.
	DefaultCheckInterval = 3 * time.Second
)

// Pinger checks that the remote API answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectivityWatcher polls the API and feeds the result into the sync
// service, which flushes on the offline to online transition.
type ConnectivityWatcher struct {
	pinger   Pinger
	sync     SyncService
	interval time.Duration
	timeout  time.Duration
	log      logging.Logger
}

func NewConnectivityWatcher(p Pinger, s SyncService, interval time.Duration, log logging.Logger) *ConnectivityWatcher {
	if log == nil {
		log = logging.Nop()
	}
	if interval <= 0 {
		log.Warn(context.Background(), "invalid online check interval, using default",
			"interval", interval.String(), "default", DefaultCheckInterval.String())
		interval = DefaultCheckInterval
	}
	return &ConnectivityWatcher{
		pinger:   p,
		sync:     s,
		interval: interval,
		timeout:  DefaultPingTimeout,
		log:      log,
	}
}

// Check pings once and returns the observed state.
func (w *ConnectivityWatcher) Check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, w.timeout)
	err := w.pinger.Ping(pctx)
	cancel()

	online := err == nil
	if !online {
		w.log.Debug(ctx, "api ping failed", logging.Err(err)...)
	}
	w.sync.SetOnline(ctx, online)
	return online
}

// Run pings immediately and then every interval until ctx is done.
func (w *ConnectivityWatcher) Run(ctx context.Context) error {
	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Check(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}
