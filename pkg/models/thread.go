package models

import "time"

// Message roles accepted by the session store.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in a conversation thread.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Thread is a conversation session scoped to one company and one user.
// Messages are append-only and ordered by insertion.
type Thread struct {
	ID          string    `json:"thread_id"`
	CompanyID   int64     `json:"company_id"`
	UserID      int64     `json:"user_id"`
	Messages    []Message `json:"messages"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// Recent returns up to limit of the most recent messages.
func (t Thread) Recent(limit int) []Message {
	if limit <= 0 || len(t.Messages) <= limit {
		return t.Messages
	}
	return t.Messages[len(t.Messages)-limit:]
}
