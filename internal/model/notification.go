package model

import "time"

// Notification types.
const (
	NotificationDebtCleared = "debt_cleared"
)

// Notification is a message addressed to a single user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}
