package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the outcome of a recorded charge.
type PaymentStatus string

const (
	PaymentSuccessful PaymentStatus = "SUCCESSFUL"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentPending    PaymentStatus = "PENDING"
)

// ParsePaymentStatus defaults to SUCCESSFUL.
func ParsePaymentStatus(s string) PaymentStatus {
	switch PaymentStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case PaymentFailed:
		return PaymentFailed
	case PaymentPending:
		return PaymentPending
	default:
		return PaymentSuccessful
	}
}

// Payment is one entry of a subscription's payment history.
type Payment struct {
	ID             string          `json:"id"`
	SubscriptionID string          `json:"subscription_id"`
	Amount         decimal.Decimal `json:"amount"`
	PaidAt         time.Time       `json:"paid_at"`
	Status         PaymentStatus   `json:"status"`
}
