package services

import "github.com/manisoft/subman/internal/client/models"

// Notifier receives user-facing events raised by the services.
type Notifier interface {
	// Connectivity reports a change between online and offline.
	Connectivity(online bool)
	// PaymentDue reports a charge of sub due in days.
	PaymentDue(sub models.Subscription, days int)
}

type nopNotifier struct{}

func (nopNotifier) Connectivity(bool)                   {}
func (nopNotifier) PaymentDue(models.Subscription, int) {}
