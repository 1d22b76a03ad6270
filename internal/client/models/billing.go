package models

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Months returns the length of the cycle in months.
func (c BillingCycle) Months() int {
	switch c {
	case BillingQuarterly:
		return 3
	case BillingYearly:
		return 12
	default:
		return 1
	}
}

// NextBillingDate advances date by whole billing periods until it is strictly
// after now. A date already in the future is returned unchanged; a zero date
// starts from now. Each step is computed from the original date so month-end
// dates do not drift.
func NextBillingDate(date time.Time, cycle BillingCycle, now time.Time) time.Time {
	if date.IsZero() {
		date = now
	}
	if date.After(now) {
		return date
	}

	step := cycle.Months()
	elapsed := (now.Year()-date.Year())*12 + int(now.Month()) - int(date.Month())
	n := elapsed/step - 1
	if n < 1 {
		n = 1
	}
	next := date.AddDate(0, n*step, 0)
	for !next.After(now) {
		n++
		next = date.AddDate(0, n*step, 0)
	}
	return next
}

// AdvanceBillingDate moves s.NextBillingDate forward if it has lapsed and
// reports whether it changed.
func (s *Subscription) AdvanceBillingDate(now time.Time) bool {
	next := NextBillingDate(s.NextBillingDate, s.BillingCycle, now)
	if next.Equal(s.NextBillingDate) {
		return false
	}
	s.NextBillingDate = next
	return true
}

// MonthlyCost is the cost normalized to one month.
func (s *Subscription) MonthlyCost() decimal.Decimal {
	return s.Cost.Div(decimal.NewFromInt(int64(s.BillingCycle.Months())))
}

// YearlyCost is the cost normalized to one year.
func (s *Subscription) YearlyCost() decimal.Decimal {
	return s.Cost.Mul(decimal.NewFromInt(int64(12 / s.BillingCycle.Months())))
}

// DaysUntil returns the number of days from now until date, rounded up.
// Past dates yield zero or a negative number.
func DaysUntil(date, now time.Time) int {
	return int(math.Ceil(date.Sub(now).Hours() / 24))
}

// PaymentDue is an upcoming charge of an active subscription.
type PaymentDue struct {
	Subscription Subscription
	DaysUntil    int
}

// Summary aggregates a user's subscriptions.
type Summary struct {
	Total        int
	Active       int
	MonthlySpend decimal.Decimal
	YearlySpend  decimal.Decimal
	Upcoming     []PaymentDue
}

// UpcomingPayments returns active subscriptions billed within the window,
// soonest first.
func UpcomingPayments(subs []Subscription, now time.Time, within time.Duration) []PaymentDue {
	limit := int(math.Ceil(within.Hours() / 24))
	out := make([]PaymentDue, 0)
	for _, s := range subs {
		if s.Status != StatusActive {
			continue
		}
		d := DaysUntil(s.NextBillingDate, now)
		if d >= 0 && d <= limit {
			out = append(out, PaymentDue{Subscription: s, DaysUntil: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Subscription.NextBillingDate.Before(out[j].Subscription.NextBillingDate)
	})
	return out
}

// Summarize computes spend totals over active subscriptions.
func Summarize(subs []Subscription, now time.Time, within time.Duration) Summary {
	sum := Summary{
		Total:        len(subs),
		MonthlySpend: decimal.Zero,
		YearlySpend:  decimal.Zero,
	}
	for i := range subs {
		if subs[i].Status != StatusActive {
			continue
		}
		sum.Active++
		sum.MonthlySpend = sum.MonthlySpend.Add(subs[i].MonthlyCost())
		sum.YearlySpend = sum.YearlySpend.Add(subs[i].YearlyCost())
	}
	sum.MonthlySpend = sum.MonthlySpend.Round(2)
	sum.YearlySpend = sum.YearlySpend.Round(2)
	sum.Upcoming = UpcomingPayments(subs, now, within)
	return sum
}
