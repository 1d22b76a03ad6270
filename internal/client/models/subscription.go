// Package models defines the client-side data model of SubMan: subscriptions,
// users, categories, payments and the sync operations that carry offline
// mutations to the server.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/manisoft/subman/internal/common"
	"github.com/shopspring/decimal"
)

// BillingCycle is the recurrence period of a subscription charge.
type BillingCycle string

const (
	BillingMonthly   BillingCycle = "MONTHLY"
	BillingQuarterly BillingCycle = "QUARTERLY"
	BillingYearly    BillingCycle = "YEARLY"
)

// ParseBillingCycle accepts any letter case; unknown values map to monthly.
func ParseBillingCycle(s string) BillingCycle {
	switch BillingCycle(strings.ToUpper(strings.TrimSpace(s))) {
	case BillingQuarterly:
		return BillingQuarterly
	case BillingYearly:
		return BillingYearly
	default:
		return BillingMonthly
	}
}

// Status is the lifecycle status of a subscription.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCancelled Status = "CANCELLED"
	StatusInactive  Status = "INACTIVE"
)

// ParseStatus accepts any letter case. EXPIRED is folded into INACTIVE and
// unknown values default to ACTIVE.
func ParseStatus(s string) Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CANCELLED", "CANCELED":
		return StatusCancelled
	case "INACTIVE", "EXPIRED":
		return StatusInactive
	default:
		return StatusActive
	}
}

// RecordState tells whether a locally stored record has been acknowledged
// by the server.
type RecordState string

const (
	StateConfirmed   RecordState = "confirmed"
	StatePendingSync RecordState = "pending_sync"
)

// TempIDPrefix marks identifiers assigned on the client while the server
// has not yet accepted the record.
const TempIDPrefix = "tmp-"

// DefaultName is used when the server sends a subscription without a name.
const DefaultName = "Untitled Subscription"

// DefaultCategoryID is the category assigned when none is given.
const DefaultCategoryID = "1"

// NewTemporaryID returns a timestamp based temporary identifier.
func NewTemporaryID(now time.Time) string {
	return fmt.Sprintf("%s%d", TempIDPrefix, now.UnixNano())
}

// IsTemporaryID reports whether id was assigned locally.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Subscription is a recurring charge tracked by a user.
type Subscription struct {
	ID              string          `json:"id"`
	Name            string          `json:"name" validate:"required,max=200"`
	Description     string          `json:"description" validate:"max=2000"`
	Cost            decimal.Decimal `json:"cost"`
	BillingCycle    BillingCycle    `json:"billing_cycle" validate:"required,oneof=MONTHLY QUARTERLY YEARLY"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         *time.Time      `json:"end_date,omitempty"`
	Status          Status          `json:"status" validate:"required,oneof=ACTIVE CANCELLED INACTIVE"`
	CategoryID      string          `json:"category_id"`
	UserID          string          `json:"user_id" validate:"required"`
	NextBillingDate time.Time       `json:"next_billing_date"`
	Color           string          `json:"color,omitempty"`
	Logo            string          `json:"logo,omitempty"`
	Website         string          `json:"website,omitempty" validate:"omitempty,url"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	State           RecordState     `json:"state"`
}

// IsPending reports whether the record still waits for server confirmation.
func (s *Subscription) IsPending() bool {
	return s.State == StatePendingSync
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints. Failures wrap common.ErrorValidation.
func (s *Subscription) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", common.ErrorValidation, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %s", common.ErrorValidation, err.Error())
	}
	if s.Cost.IsNegative() {
		return fmt.Errorf("%w: Cost must not be negative", common.ErrorValidation)
	}
	if s.EndDate != nil && !s.StartDate.IsZero() && s.EndDate.Before(s.StartDate) {
		return fmt.Errorf("%w: EndDate before StartDate", common.ErrorValidation)
	}
	return nil
}

// ApplyDefaults fills fields left empty by the user or the server.
func (s *Subscription) ApplyDefaults(now time.Time) {
	if strings.TrimSpace(s.Name) == "" {
		s.Name = DefaultName
	}
	s.BillingCycle = ParseBillingCycle(string(s.BillingCycle))
	s.Status = ParseStatus(string(s.Status))
	if s.CategoryID == "" {
		s.CategoryID = DefaultCategoryID
	}
	if s.StartDate.IsZero() {
		s.StartDate = now
	}
	if s.NextBillingDate.IsZero() {
		s.NextBillingDate = now
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}
	if s.State == "" {
		s.State = StateConfirmed
	}
}
