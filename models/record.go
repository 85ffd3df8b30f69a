package models

import (
	"encoding/json"
	"time"
)

const (
	KindCall    = "call"
	KindMessage = "message"
)

const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// Call statuses
const (
	CallAnswered = "answered"
	CallDeclined = "declined"
	CallMissed   = "missed"
)

// Message statuses
const (
	MessageSent      = "sent"
	MessageDelivered = "delivered"
	MessageRead      = "read"
	MessageFailed    = "failed"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Identity is the resolved caller of a request or connection.
type Identity struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Record is a synced call or message log entry, discriminated by Kind.
// ExternalID is the client-side identifier used only to match records
// during sync; ID is assigned by the store and never supplied by clients.
type Record struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	ExternalID  string     `json:"externalId,omitempty"`
	Kind        string     `json:"kind" validate:"required,oneof=call message"`
	PhoneNumber string     `json:"phoneNumber" validate:"required,phonenumber"`
	Direction   string     `json:"direction" validate:"required,oneof=incoming outgoing"`
	Status      string     `json:"status"`
	Duration    int        `json:"duration"`
	Content     string     `json:"content,omitempty"`
	Attachments []string   `json:"attachments,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	OccurredAt  time.Time  `json:"occurredAt"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ApplyDefaults fills in fields clients may omit: message status defaults
// to sent, a zero OccurredAt becomes now.
func (r *Record) ApplyDefaults() {
	if r.Kind == KindMessage && r.Status == "" {
		r.Status = MessageSent
	}
	if r.OccurredAt.IsZero() {
		r.OccurredAt = time.Now().UTC()
	}
}

// View renders the record as a response item, trimmed to the given
// projection. The record id is always included. An empty projection
// returns the full record.
func (r *Record) View(fields []string) map[string]any {
	raw, _ := json.Marshal(r)
	var full map[string]any
	_ = json.Unmarshal(raw, &full)

	if len(fields) == 0 {
		return full
	}

	view := map[string]any{"id": full["id"]}
	for _, f := range fields {
		if v, ok := full[f]; ok {
			view[f] = v
		}
	}
	return view
}

// SyncResult reports the outcome of one sync batch. Sync is at-least-once:
// on a mid-batch failure, records reconciled before the failure stay
// written and the batch reports a server error.
type SyncResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Total   int `json:"total"`
}
