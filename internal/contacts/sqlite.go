package contacts

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store is a SQLite-backed contact directory
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the contact database at path
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory opens an in-memory store, used by tests
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const migrationContacts = `
CREATE TABLE IF NOT EXISTS contacts (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT,
    phone TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'new',
    properties JSON,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_contacts_phone ON contacts(phone);
CREATE INDEX IF NOT EXISTS idx_contacts_status ON contacts(status);
`

func (s *Store) migrate() error {
	if _, err := s.db.Exec(migrationContacts); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Create inserts a new contact, assigning an id when empty
func (s *Store) Create(ctx context.Context, c *Contact) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = StatusNew
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt

	props, err := json.Marshal(c.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal properties: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, name, email, phone, status, properties, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Email, c.Phone, c.Status, string(props), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

// Get returns a contact by id
func (s *Store) Get(ctx context.Context, id string) (*Contact, error) {
	c := &Contact{}
	var props sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, status, properties, created_at, updated_at
		FROM contacts WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Status, &props, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if props.Valid && props.String != "" && props.String != "null" {
		if err := json.Unmarshal([]byte(props.String), &c.Properties); err != nil {
			return nil, fmt.Errorf("failed to parse properties: %w", err)
		}
	}
	return c, nil
}

// SetStatus updates a contact's relationship status
func (s *Store) SetStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE contacts SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update contact status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all contacts, optionally filtered by status
func (s *Store) List(ctx context.Context, status string) ([]Contact, error) {
	query := "SELECT id, name, email, phone, status, properties, created_at, updated_at FROM contacts"
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []Contact{}
	for rows.Next() {
		var c Contact
		var props sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Status, &props, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if props.Valid && props.String != "" && props.String != "null" {
			if err := json.Unmarshal([]byte(props.String), &c.Properties); err != nil {
				return nil, fmt.Errorf("failed to parse properties: %w", err)
			}
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}
