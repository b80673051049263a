// Package domain contains core domain types for the leadchat application.
package domain

import (
	"time"
)

// Intake represents a prospective customer's contact and classification
// details, captured at most once per chat session. Records are write-once:
// nothing in the system updates an intake after creation.
type Intake struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email,omitempty"`
	BusinessType string    `json:"business_type"`
	Location     string    `json:"location"`
	Purpose      string    `json:"purpose"`
	DaysNeeded   string    `json:"days_needed,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ChatMessage is one persisted turn of a conversation. IntakeID is nil for
// messages recorded before the session produced an intake record.
type ChatMessage struct {
	ID        int64     `json:"id"`
	IntakeID  *string   `json:"intake_id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
