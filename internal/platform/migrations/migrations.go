// Package migrations holds the database schema for the library catalog.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// statements are applied in order on startup. Each statement is idempotent so
// Apply can run on every boot.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS library_authors (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS library_users (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS library_books (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		isbn        TEXT NOT NULL DEFAULT '',
		borrowed_by TEXT REFERENCES library_users (id) ON DELETE SET NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS library_book_authors (
		book_id   TEXT NOT NULL REFERENCES library_books (id) ON DELETE CASCADE,
		author_id TEXT NOT NULL REFERENCES library_authors (id),
		position  INT  NOT NULL DEFAULT 0,
		PRIMARY KEY (book_id, author_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_library_books_borrowed_by
		ON library_books (borrowed_by)`,
	`CREATE INDEX IF NOT EXISTS idx_library_book_authors_author
		ON library_book_authors (author_id)`,
}

// Apply executes all schema migrations against the given database.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
