package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/manisoft/subman/internal/client/client"
	"github.com/manisoft/subman/internal/client/models"
)

const dateLayout = time.DateOnly

// List prints the user's subscriptions, soonest billing first. Records not
// yet confirmed by the server are flagged.
func (a *App) List(ctx context.Context, _ []string) error {
	subs, err := a.subService.Fetch(ctx, a.currentUserID())
	if err != nil {
		if errors.Is(err, client.ErrUnavailable) {
			printlnFn("No subscriptions cached on this device and the server is unreachable")
			return nil
		}
		printlnFn("Error:", describeError(err))
		return err
	}

	if len(subs) == 0 {
		printlnFn("No subscriptions yet, use 'add' to create one")
		return nil
	}
	for _, s := range subs {
		printlnFn(formatRow(s))
	}
	return nil
}

func formatRow(s models.Subscription) string {
	flag := ""
	if s.IsPending() {
		flag = " (not synced)"
	}
	return fmt.Sprintf("%-20s %-28s %10s %-9s next %s %s%s",
		s.ID, s.Name, s.Cost.StringFixed(2), s.BillingCycle, s.NextBillingDate.Format(dateLayout), s.Status, flag)
}

// idArg returns the first argument or prompts for it.
func (a *App) idArg(args []string, prompt string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return getSimpleText(a.reader, prompt, a.out)
}

// Show prints one subscription in full.
func (a *App) Show(ctx context.Context, args []string) error {
	id, err := a.idArg(args, "Enter subscription id")
	if err != nil {
		return err
	}

	s, err := a.subService.Get(ctx, id)
	if err != nil {
		printlnFn("Error:", describeError(err))
		return err
	}

	printlnFn("ID:          ", s.ID)
	printlnFn("Name:        ", s.Name)
	if s.Description != "" {
		printlnFn("Description: ", s.Description)
	}
	printlnFn("Cost:        ", s.Cost.StringFixed(2), s.BillingCycle)
	printlnFn("Monthly:     ", s.MonthlyCost().StringFixed(2))
	printlnFn("Status:      ", s.Status)
	printlnFn("Category:    ", s.CategoryID)
	printlnFn("Started:     ", s.StartDate.Format(dateLayout))
	if s.EndDate != nil {
		printlnFn("Ends:        ", s.EndDate.Format(dateLayout))
	}
	printlnFn("Next billing:", s.NextBillingDate.Format(dateLayout))
	for _, kv := range [][2]string{{"Website:     ", s.Website}, {"Notes:       ", s.Notes}} {
		if kv[1] != "" {
			printlnFn(kv[0], kv[1])
		}
	}
	if s.IsPending() {
		printlnFn("Sync:         waiting for the server")
	}
	return nil
}

// Add prompts for a new subscription and saves it. Offline the record is kept
// locally and queued for the server.
func (a *App) Add(ctx context.Context, _ []string) error {
	s := &models.Subscription{UserID: a.currentUserID()}
	if err := a.editForm(s); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	created, err := a.subService.Create(ctx, s)
	if err != nil {
		printlnFn("Error:", describeError(err))
		return err
	}

	if created.IsPending() {
		printlnFn("Saved locally as", created.ID, "- it will be sent to the server when online")
	} else {
		printlnFn("Created", created.ID)
	}
	return nil
}

// Edit updates an existing subscription. Empty answers keep the current value.
func (a *App) Edit(ctx context.Context, args []string) error {
	id, err := a.idArg(args, "Enter subscription id")
	if err != nil {
		return err
	}

	s, err := a.subService.Get(ctx, id)
	if err != nil {
		printlnFn("Error:", describeError(err))
		return err
	}
	if err := a.editForm(s); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	updated, err := a.subService.Update(ctx, s)
	if err != nil {
		printlnFn("Error:", describeError(err))
		return err
	}
	if updated.IsPending() {
		printlnFn("Updated locally, waiting for the server")
	} else {
		printlnFn("Updated")
	}
	return nil
}

// editForm fills s from the terminal, offering current values as defaults.
func (a *App) editForm(s *models.Subscription) error {
	var err error

	if s.Name, err = GetTextOr(a.reader, "Name", s.Name, a.out); err != nil {
		return err
	}

	cost := ""
	if s.ID != "" {
		cost = s.Cost.StringFixed(2)
	}
	if cost, err = GetTextOr(a.reader, "Cost", cost, a.out); err != nil {
		return err
	}
	if s.Cost, err = ParseAmount(cost); err != nil {
		return err
	}

	cycle, err := GetTextOr(a.reader, "Billing cycle (monthly, quarterly, yearly)", strings.ToLower(string(s.BillingCycle)), a.out)
	if err != nil {
		return err
	}
	s.BillingCycle = models.ParseBillingCycle(cycle)

	start := ""
	if !s.StartDate.IsZero() {
		start = s.StartDate.Format(dateLayout)
	}
	if start, err = GetTextOr(a.reader, "Start date (YYYY-MM-DD, empty for today)", start, a.out); err != nil {
		return err
	}
	startDate, err := ParseDate(start)
	if err != nil {
		return err
	}
	if !startDate.Equal(s.StartDate) {
		s.StartDate = startDate
		// recomputed from the new start date
		s.NextBillingDate = startDate
	}

	if s.CategoryID, err = GetTextOr(a.reader, "Category id", s.CategoryID, a.out); err != nil {
		return err
	}
	if s.ID != "" {
		status, err := GetTextOr(a.reader, "Status (active, cancelled, inactive)", strings.ToLower(string(s.Status)), a.out)
		if err != nil {
			return err
		}
		s.Status = models.ParseStatus(status)
	}
	if s.Description, err = GetTextOr(a.reader, "Description", s.Description, a.out); err != nil {
		return err
	}
	return nil
}

// Delete removes a subscription locally and on the server.
func (a *App) Delete(ctx context.Context, args []string) error {
	id, err := a.idArg(args, "Enter subscription id to delete")
	if err != nil {
		return err
	}

	if err := a.subService.Delete(ctx, id); err != nil {
		printlnFn("Error:", describeError(err))
		return err
	}
	printlnFn("Deleted", id)
	return nil
}

// Pay records a payment for a subscription. The amount defaults to its cost.
func (a *App) Pay(ctx context.Context, args []string) error {
	id, err := a.idArg(args, "Enter subscription id")
	if err != nil {
		return err
	}

	amount, err := getSimpleText(a.reader, "Amount (empty for the subscription cost)", a.out)
	if err != nil {
		return err
	}
	p := &models.Payment{SubscriptionID: id}
	if amount != "" {
		if p.Amount, err = ParseAmount(amount); err != nil {
			printlnFn("Error:", err.Error())
			return err
		}
	}

	saved, err := a.subService.RecordPayment(ctx, p)
	if err != nil {
		printlnFn("Error:", describeError(err))
		return err
	}
	printlnFn("Recorded payment of", saved.Amount.StringFixed(2), "on", saved.PaidAt.Format(dateLayout))
	return nil
}

// Payments prints the payment history of a subscription.
func (a *App) Payments(ctx context.Context, args []string) error {
	id, err := a.idArg(args, "Enter subscription id")
	if err != nil {
		return err
	}

	list, err := a.subService.Payments(ctx, id)
	if err != nil {
		printlnFn("Error:", describeError(err))
		return err
	}
	if len(list) == 0 {
		printlnFn("No payments recorded")
		return nil
	}
	for _, p := range list {
		printlnFn(p.PaidAt.Format(dateLayout), p.Amount.StringFixed(2), p.Status)
	}
	return nil
}

func (a *App) Categories(ctx context.Context, _ []string) error {
	list, err := a.subService.Categories(ctx)
	if err != nil {
		printlnFn("Error:", describeError(err))
		return err
	}
	for _, c := range list {
		if c.Description != "" {
			printlnFn(c.ID, c.Name, "-", c.Description)
			continue
		}
		printlnFn(c.ID, c.Name)
	}
	return nil
}

func (a *App) AddCategory(ctx context.Context, args []string) error {
	name := strings.Join(args, " ")
	var err error
	if name == "" {
		if name, err = getSimpleText(a.reader, "Category name", a.out); err != nil {
			return err
		}
	}
	desc, err := getSimpleText(a.reader, "Description", a.out)
	if err != nil {
		return err
	}

	c, err := a.subService.AddCategory(ctx, name, desc)
	if err != nil {
		printlnFn("Error:", describeError(err))
		return err
	}
	printlnFn("Added category", c.ID, c.Name)
	return nil
}

// Summary prints spend totals and upcoming payments.
func (a *App) Summary(ctx context.Context, _ []string) error {
	sum, err := a.subService.Summary(ctx, a.currentUserID())
	if err != nil {
		printlnFn("Error:", describeError(err))
		return err
	}

	printlnFn("Subscriptions:", sum.Total, "active:", sum.Active)
	printlnFn("Monthly spend:", sum.MonthlySpend.StringFixed(2))
	printlnFn("Yearly spend: ", sum.YearlySpend.StringFixed(2))
	for _, due := range sum.Upcoming {
		printlnFn("  due in", due.DaysUntil, "days:", due.Subscription.Name, due.Subscription.Cost.StringFixed(2))
	}
	return nil
}

// Reminders lists payments due within the configured window, or within the
// number of days given as the first argument. The notifier prints each one.
func (a *App) Reminders(ctx context.Context, args []string) error {
	within := a.config.ReminderWindow
	if len(args) > 0 {
		days, err := strconv.Atoi(args[0])
		if err != nil || days < 0 {
			printlnFn("Usage: reminders [days]")
			return fmt.Errorf("invalid number of days %q", args[0])
		}
		within = dayDuration(days)
	}

	due, err := a.subService.Reminders(ctx, a.currentUserID(), within)
	if err != nil {
		printlnFn("Error:", describeError(err))
		return err
	}
	if len(due) == 0 && len(args) > 0 {
		printlnFn("Nothing due")
	}
	return nil
}
