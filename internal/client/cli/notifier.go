package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/manisoft/subman/internal/client/models"
)

const (
	bannerOnline  = "Back online, syncing changes"
	bannerOffline = "Offline mode, changes are saved locally"
)

// consoleNotifier prints connectivity banners and payment reminders. It is
// called from the watcher goroutine as well as from the REPL.
type consoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func newConsoleNotifier(w io.Writer) *consoleNotifier {
	return &consoleNotifier{w: w}
}

func (n *consoleNotifier) Connectivity(online bool) {
	if online {
		n.println("*", bannerOnline)
		return
	}
	n.println("*", bannerOffline)
}

func (n *consoleNotifier) PaymentDue(sub models.Subscription, days int) {
	when := fmt.Sprintf("in %d days", days)
	switch days {
	case 0:
		when = "today"
	case 1:
		when = "tomorrow"
	}
	n.println("Reminder:", sub.Name, "payment of", sub.Cost.StringFixed(2), "is due", when)
}

func (n *consoleNotifier) println(args ...any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, args...)
}
