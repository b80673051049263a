// Package store provides transcript and intake persistence interfaces and
// implementations.
package store

import (
	"context"
	"fmt"

	"github.com/avylis/leadchat/internal/domain"
)

// Repository defines the interface for persisting intake records and chat
// transcripts.
type Repository interface {
	// CreateIntake validates and durably stores a new intake record,
	// returning its assigned ID. Name and phone are required; a missing
	// required field yields a *ValidationError.
	CreateIntake(ctx context.Context, intake *domain.Intake) (string, error)

	// GetIntake retrieves an intake record by ID. Returns nil, nil when no
	// record exists.
	GetIntake(ctx context.Context, id string) (*domain.Intake, error)

	// DeleteIntake removes an intake record. Messages referencing it are
	// removed by cascade.
	DeleteIntake(ctx context.Context, id string) error

	// AppendMessage durably stores one message turn. intakeID may be nil for
	// turns recorded before the session produced an intake record. Structured
	// content is serialized to text before it reaches the row.
	AppendMessage(ctx context.Context, intakeID *string, role domain.Role, content domain.Content) error

	// ListMessages returns all messages for an intake in creation order.
	// A nil intakeID lists messages with no intake reference.
	ListMessages(ctx context.Context, intakeID *string) ([]domain.ChatMessage, error)

	// CountMessages returns the total number of stored messages.
	CountMessages(ctx context.Context) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// ValidationError reports malformed intake input. It is surfaced to the
// caller and never fatal.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("intake field %q is required", e.Field)
}

// StorageError reports a failed durable write or read, typically database
// connectivity loss or a constraint violation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
