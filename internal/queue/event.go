// Package queue defines message payloads exchanged over the message broker.
package queue

// DebtClearedQueue is the durable queue carrying DebtClearedEvent.
const DebtClearedQueue = "debt.cleared"

// DebtClearedEvent is published after an admin clears a user's debt and the
// transaction has committed.  It carries enough for downstream consumers to
// log or forward the notification without querying the primary database.
type DebtClearedEvent struct {
	UserID         string `json:"user_id"`
	AdminID        string `json:"admin_id"`
	AdminName      string `json:"admin_name"`
	ClearedCount   int64  `json:"cleared_count"`
	NotificationID string `json:"notification_id"`
	Message        string `json:"message"`
	ClearedAt      string `json:"cleared_at"`
}
