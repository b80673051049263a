package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/avylis/leadchat/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL for better concurrency; foreign keys on so intake deletion
	// cascades to its messages.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

// initSchema ensures the backing tables exist. Safe to run any number of
// times against the same database; an already-initialized store is logged,
// not treated as an error.
func (s *SQLiteStore) initSchema() error {
	var existing int
	row := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('intakes', 'messages')`)
	if err := row.Scan(&existing); err != nil {
		return fmt.Errorf("inspect schema: %w", err)
	}
	if existing > 0 {
		slog.Info("Schema already initialized", "tables_present", existing)
	}

	query := `
	CREATE TABLE IF NOT EXISTS intakes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		email TEXT,
		business_type TEXT NOT NULL,
		location TEXT NOT NULL,
		purpose TEXT NOT NULL,
		days_needed TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		intake_id TEXT REFERENCES intakes(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_intake ON messages(intake_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateIntake validates and stores a new intake record.
func (s *SQLiteStore) CreateIntake(ctx context.Context, intake *domain.Intake) (string, error) {
	if intake.Name == "" {
		return "", &ValidationError{Field: "name"}
	}
	if intake.Phone == "" {
		return "", &ValidationError{Field: "phone"}
	}

	id := uuid.NewString()
	createdAt := intake.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
	INSERT INTO intakes (id, name, phone, email, business_type, location, purpose, days_needed, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		id, intake.Name, intake.Phone, nullable(intake.Email),
		intake.BusinessType, intake.Location, intake.Purpose,
		nullable(intake.DaysNeeded), createdAt.Unix(),
	)
	if err != nil {
		return "", &StorageError{Op: "create intake", Err: err}
	}
	return id, nil
}

// GetIntake retrieves an intake record by ID.
func (s *SQLiteStore) GetIntake(ctx context.Context, id string) (*domain.Intake, error) {
	query := `
		SELECT id, name, phone, email, business_type, location, purpose, days_needed, created_at
		FROM intakes WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)

	var intake domain.Intake
	var email, daysNeeded sql.NullString
	var createdAt int64

	err := row.Scan(
		&intake.ID, &intake.Name, &intake.Phone, &email,
		&intake.BusinessType, &intake.Location, &intake.Purpose,
		&daysNeeded, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "get intake", Err: err}
	}

	intake.Email = email.String
	intake.DaysNeeded = daysNeeded.String
	intake.CreatedAt = time.Unix(createdAt, 0)

	return &intake, nil
}

// DeleteIntake removes an intake record; its messages go with it by cascade.
func (s *SQLiteStore) DeleteIntake(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM intakes WHERE id = ?`, id); err != nil {
		return &StorageError{Op: "delete intake", Err: err}
	}
	return nil
}

// AppendMessage stores one message turn.
func (s *SQLiteStore) AppendMessage(ctx context.Context, intakeID *string, role domain.Role, content domain.Content) error {
	if !role.Valid() {
		return &ValidationError{Field: "role"}
	}

	var metadata interface{}
	if content.IsStructured() {
		metadata = content.Text()
	}

	query := `
	INSERT INTO messages (intake_id, role, content, metadata, created_at)
	VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		nullableRef(intakeID), string(role), content.Text(), metadata, time.Now().Unix(),
	)
	if err != nil {
		return &StorageError{Op: "append message", Err: err}
	}
	return nil
}

// ListMessages returns messages for an intake in creation order.
func (s *SQLiteStore) ListMessages(ctx context.Context, intakeID *string) ([]domain.ChatMessage, error) {
	query := `
		SELECT id, intake_id, role, content, created_at
		FROM messages
		WHERE intake_id IS ?
		ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, nullableRef(intakeID))
	if err != nil {
		return nil, &StorageError{Op: "list messages", Err: err}
	}
	defer rows.Close()

	var out []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var rowIntakeID sql.NullString
		var role string
		var createdAt int64
		if err := rows.Scan(&m.ID, &rowIntakeID, &role, &m.Content, &createdAt); err != nil {
			return nil, &StorageError{Op: "scan message row", Err: err}
		}
		if rowIntakeID.Valid {
			v := rowIntakeID.String
			m.IntakeID = &v
		}
		m.Role = domain.Role(role)
		m.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list messages", Err: err}
	}
	return out, nil
}

// CountMessages returns the total number of stored messages.
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, &StorageError{Op: "count messages", Err: err}
	}
	return n, nil
}

func nullable(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

func nullableRef(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
