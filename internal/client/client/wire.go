package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/manisoft/subman/internal/client/models"
	"github.com/shopspring/decimal"
)

// subscriptionPayload is the request body for create and update.
type subscriptionPayload struct {
	ID              string  `json:"id,omitempty"`
	Name            string  `json:"name"`
	Price           string  `json:"price"`
	BillingCycle    string  `json:"billing_cycle"`
	UserID          string  `json:"user_id"`
	Category        string  `json:"category"`
	Description     string  `json:"description"`
	StartDate       string  `json:"start_date"`
	EndDate         *string `json:"end_date,omitempty"`
	NextBillingDate string  `json:"next_billing_date"`
	Status          string  `json:"status"`
	Color           string  `json:"color,omitempty"`
	Logo            string  `json:"logo,omitempty"`
	Website         string  `json:"website,omitempty"`
	Notes           string  `json:"notes,omitempty"`
}

func encodeSubscription(s *models.Subscription) subscriptionPayload {
	p := subscriptionPayload{
		Name:            s.Name,
		Price:           s.Cost.String(),
		BillingCycle:    strings.ToLower(string(s.BillingCycle)),
		UserID:          s.UserID,
		Category:        s.CategoryID,
		Description:     s.Description,
		StartDate:       isoTime(s.StartDate),
		NextBillingDate: isoTime(s.NextBillingDate),
		Status:          string(s.Status),
		Color:           s.Color,
		Logo:            s.Logo,
		Website:         s.Website,
		Notes:           s.Notes,
	}
	if !models.IsTemporaryID(s.ID) {
		p.ID = s.ID
	}
	if s.EndDate != nil {
		end := isoTime(*s.EndDate)
		p.EndDate = &end
	}
	return p
}

func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// record is a loosely typed server object. The API has used both snake_case
// and camelCase keys, and numbers may arrive as strings.
type record map[string]any

func parseRecord(raw []byte) (record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var r record
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: malformed record: %v", ErrServer, err)
	}
	return r, nil
}

// str returns the first non-empty value among keys rendered as a string.
func (r record) str(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case json.Number:
			s = t.String()
		case bool:
			s = strconv.FormatBool(t)
		case map[string]any:
			if id, ok := t["id"]; ok {
				s = record{"id": id}.str("id")
			}
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func (r record) decimal(keys ...string) decimal.Decimal {
	s := r.str(keys...)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (r record) time(keys ...string) time.Time {
	s := r.str(keys...)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

func (r record) optionalTime(keys ...string) *time.Time {
	t := r.time(keys...)
	if t.IsZero() {
		return nil
	}
	return &t
}

// decodeSubscription normalizes a server subscription. userID is used when
// the record carries no owner; now fills missing dates.
func decodeSubscription(raw []byte, userID string, now time.Time) (*models.Subscription, error) {
	r, err := parseRecord(raw)
	if err != nil {
		return nil, err
	}
	return r.subscription(userID, now)
}

func (r record) subscription(userID string, now time.Time) (*models.Subscription, error) {
	id := r.str("id", "_id")
	if id == "" {
		return nil, errNoRecord
	}
	s := &models.Subscription{
		ID:              id,
		Name:            r.str("name"),
		Description:     r.str("description"),
		Cost:            r.decimal("price", "cost"),
		BillingCycle:    models.BillingCycle(r.str("billing_cycle", "billingCycle")),
		StartDate:       r.time("start_date", "startDate"),
		EndDate:         r.optionalTime("end_date", "endDate"),
		Status:          models.Status(r.str("status")),
		CategoryID:      r.str("category_id", "categoryId", "category"),
		UserID:          r.str("user_id", "userId"),
		NextBillingDate: r.time("next_billing_date", "nextBillingDate"),
		Color:           r.str("color"),
		Logo:            r.str("logo"),
		Website:         r.str("website"),
		Notes:           r.str("notes"),
		CreatedAt:       r.time("created_at", "createdAt"),
		UpdatedAt:       r.time("updated_at", "updatedAt"),
		State:           models.StateConfirmed,
	}
	if s.UserID == "" {
		s.UserID = userID
	}
	s.ApplyDefaults(now.UTC())
	return s, nil
}

// mergeResponse builds the confirmed record answered for a create or update.
// The body is either {"subscription": {...}} or the record itself; fields the
// server omitted are taken from the submitted record.
func mergeResponse(sent *models.Subscription, raw []byte, now time.Time) (*models.Subscription, error) {
	out := *sent
	out.State = models.StateConfirmed
	if len(bytes.TrimSpace(raw)) == 0 {
		if models.IsTemporaryID(out.ID) || out.ID == "" {
			return nil, fmt.Errorf("%w: %w", ErrServer, errNoRecord)
		}
		return &out, nil
	}

	r, err := parseRecord(raw)
	if err != nil {
		return nil, err
	}
	if inner, ok := r["subscription"].(map[string]any); ok {
		r = record(inner)
	}

	id := r.str("id", "_id")
	if id == "" {
		if models.IsTemporaryID(out.ID) || out.ID == "" {
			return nil, fmt.Errorf("%w: %w", ErrServer, errNoRecord)
		}
		return &out, nil
	}
	out.ID = id

	// Overlay only what the server actually sent.
	if v := r.str("name"); v != "" {
		out.Name = v
	}
	if v := r.str("description"); v != "" {
		out.Description = v
	}
	if r.str("price", "cost") != "" {
		out.Cost = r.decimal("price", "cost")
	}
	if v := r.str("billing_cycle", "billingCycle"); v != "" {
		out.BillingCycle = models.ParseBillingCycle(v)
	}
	if v := r.str("status"); v != "" {
		out.Status = models.ParseStatus(v)
	}
	if v := r.str("category_id", "categoryId", "category"); v != "" {
		out.CategoryID = v
	}
	if v := r.str("user_id", "userId"); v != "" {
		out.UserID = v
	}
	if t := r.time("start_date", "startDate"); !t.IsZero() {
		out.StartDate = t
	}
	if t := r.optionalTime("end_date", "endDate"); t != nil {
		out.EndDate = t
	}
	if t := r.time("next_billing_date", "nextBillingDate"); !t.IsZero() {
		out.NextBillingDate = t
	}
	if t := r.time("created_at", "createdAt"); !t.IsZero() {
		out.CreatedAt = t
	}
	if t := r.time("updated_at", "updatedAt"); !t.IsZero() {
		out.UpdatedAt = t
	}
	out.ApplyDefaults(now.UTC())
	return &out, nil
}

func decodeUser(raw []byte, now time.Time) (*models.User, error) {
	r, err := parseRecord(raw)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:        r.str("id", "_id"),
		Email:     strings.ToLower(r.str("email")),
		Name:      r.str("name"),
		Role:      models.Role(strings.ToLower(r.str("role"))),
		AvatarURL: r.str("avatar_url", "avatarUrl", "avatar"),
		CreatedAt: r.time("created_at", "createdAt"),
		UpdatedAt: r.time("updated_at", "updatedAt"),
	}
	if u.ID == "" {
		return nil, fmt.Errorf("%w: user without id", ErrServer)
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now.UTC()
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	return u, nil
}
