package models

import "time"

// Role is the authorization role of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is an authenticated account as cached on the device.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      Role       `json:"role"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	LastSync  *time.Time `json:"last_sync,omitempty"`
	Version   int64      `json:"version"`
}

// Category groups subscriptions. Categories live only on the device.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// DefaultCategories are seeded by the initial migration.
var DefaultCategories = []Category{
	{ID: "1", Name: "Entertainment"},
	{ID: "2", Name: "Productivity"},
	{ID: "3", Name: "Utilities"},
	{ID: "4", Name: "Health"},
	{ID: "5", Name: "Other"},
}
