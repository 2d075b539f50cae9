package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/openshelf/library-service/internal/apperr"
	"github.com/openshelf/library-service/internal/domain/author"
	"github.com/openshelf/library-service/internal/domain/book"
	"github.com/openshelf/library-service/internal/domain/user"
	"github.com/openshelf/library-service/internal/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.BookStore = (*Store)(nil)
var _ storage.AuthorStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type bookRow struct {
	ID         string         `db:"id"`
	Title      string         `db:"title"`
	ISBN       string         `db:"isbn"`
	BorrowedBy sql.NullString `db:"borrowed_by"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (r bookRow) toDomain() book.Book {
	b := book.Book{
		ID:        r.ID,
		Title:     r.Title,
		ISBN:      r.ISBN,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.BorrowedBy.Valid {
		b.BorrowedByID = r.BorrowedBy.String
	}
	return b
}

const bookColumns = `id, title, isbn, borrowed_by, created_at, updated_at`

// --- BookStore --------------------------------------------------------------

func (s *Store) CreateBook(ctx context.Context, b book.Book, authorIDs []string) (book.Book, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	b.BorrowedByID = ""

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return book.Book{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO library_books (id, title, isbn, borrowed_by, created_at, updated_at)
		VALUES ($1, $2, $3, NULL, $4, $5)
	`, b.ID, b.Title, b.ISBN, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return book.Book{}, err
	}

	if err := replaceAuthorLinks(ctx, tx, b.ID, authorIDs); err != nil {
		return book.Book{}, err
	}

	if err := tx.Commit(); err != nil {
		return book.Book{}, err
	}
	return b, nil
}

func (s *Store) UpdateBook(ctx context.Context, b book.Book) (book.Book, error) {
	existing, err := s.GetBook(ctx, b.ID)
	if err != nil {
		return book.Book{}, err
	}

	b.BorrowedByID = existing.BorrowedByID
	b.CreatedAt = existing.CreatedAt
	b.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE library_books
		SET title = $2, isbn = $3, updated_at = $4
		WHERE id = $1
	`, b.ID, b.Title, b.ISBN, b.UpdatedAt)
	if err != nil {
		return book.Book{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return book.Book{}, apperr.NotFound("book %s not found", b.ID)
	}
	return b, nil
}

func (s *Store) SetBookAuthors(ctx context.Context, bookID string, authorIDs []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := replaceAuthorLinks(ctx, tx, bookID, authorIDs); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE library_books SET updated_at = $2 WHERE id = $1
	`, bookID, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperr.NotFound("book %s not found", bookID)
	}
	return tx.Commit()
}

// replaceAuthorLinks installs exactly the given author set for the book,
// discarding any previous links. Link order is preserved via position.
func replaceAuthorLinks(ctx context.Context, tx *sqlx.Tx, bookID string, authorIDs []string) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM library_book_authors WHERE book_id = $1
	`, bookID); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(authorIDs))
	position := 0
	for _, authorID := range authorIDs {
		if _, ok := seen[authorID]; ok {
			continue
		}
		seen[authorID] = struct{}{}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO library_book_authors (book_id, author_id, position)
			VALUES ($1, $2, $3)
		`, bookID, authorID, position); err != nil {
			return err
		}
		position++
	}
	return nil
}

func (s *Store) GetBook(ctx context.Context, id string) (book.Book, error) {
	var row bookRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+bookColumns+`
		FROM library_books
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return book.Book{}, apperr.NotFound("book %s not found", id)
	}
	if err != nil {
		return book.Book{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) ListBooks(ctx context.Context, f book.Filter) ([]book.Book, error) {
	filterBorrowed := f.Borrowed != nil
	wantBorrowed := f.Borrowed != nil && *f.Borrowed

	var rows []bookRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+bookColumns+`
		FROM library_books b
		WHERE ($1 = '' OR EXISTS (
			SELECT 1 FROM library_book_authors ba
			WHERE ba.book_id = b.id AND ba.author_id = $1
		))
		AND (NOT $2 OR (b.borrowed_by IS NOT NULL) = $3)
		ORDER BY created_at, id
	`, f.AuthorID, filterBorrowed, wantBorrowed)
	if err != nil {
		return nil, err
	}
	return toDomainBooks(rows), nil
}

func (s *Store) ListBooksByBorrower(ctx context.Context, userID string) ([]book.Book, error) {
	var rows []bookRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+bookColumns+`
		FROM library_books
		WHERE borrowed_by = $1
		ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, err
	}
	return toDomainBooks(rows), nil
}

func (s *Store) DeleteBook(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM library_books WHERE id = $1
	`, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *Store) CountBooksByAuthor(ctx context.Context, authorID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM library_book_authors WHERE author_id = $1
	`, authorID)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) BorrowBook(ctx context.Context, bookID, userID string) (bool, error) {
	// Single conditional update so two concurrent borrows cannot both win.
	result, err := s.db.ExecContext(ctx, `
		UPDATE library_books
		SET borrowed_by = $2, updated_at = $3
		WHERE id = $1 AND borrowed_by IS NULL
	`, bookID, userID, time.Now().UTC())
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *Store) ReturnBook(ctx context.Context, bookID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE library_books
		SET borrowed_by = NULL, updated_at = $2
		WHERE id = $1 AND borrowed_by IS NOT NULL
	`, bookID, time.Now().UTC())
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func toDomainBooks(rows []bookRow) []book.Book {
	var result []book.Book
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result
}

// --- AuthorStore ------------------------------------------------------------

func (s *Store) CreateAuthor(ctx context.Context, a author.Author) (author.Author, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO library_authors (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, a.ID, a.Name, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return author.Author{}, err
	}
	return a, nil
}

func (s *Store) UpdateAuthor(ctx context.Context, a author.Author) (author.Author, error) {
	existing, err := s.GetAuthor(ctx, a.ID)
	if err != nil {
		return author.Author{}, err
	}

	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE library_authors
		SET name = $2, updated_at = $3
		WHERE id = $1
	`, a.ID, a.Name, a.UpdatedAt)
	if err != nil {
		return author.Author{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return author.Author{}, apperr.NotFound("author %s not found", a.ID)
	}
	return a, nil
}

func (s *Store) GetAuthor(ctx context.Context, id string) (author.Author, error) {
	var a author.Author
	err := s.db.GetContext(ctx, &a, `
		SELECT id, name, created_at, updated_at
		FROM library_authors
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return author.Author{}, apperr.NotFound("author %s not found", id)
	}
	if err != nil {
		return author.Author{}, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func (s *Store) ListAuthors(ctx context.Context) ([]author.Author, error) {
	var result []author.Author
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, name, created_at, updated_at
		FROM library_authors
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) DeleteAuthor(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM library_authors WHERE id = $1
	`, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *Store) CountAuthors(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(DISTINCT id) FROM library_authors WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) ListAuthorsByBook(ctx context.Context, bookID string) ([]author.Author, error) {
	var result []author.Author
	err := s.db.SelectContext(ctx, &result, `
		SELECT a.id, a.name, a.created_at, a.updated_at
		FROM library_authors a
		JOIN library_book_authors ba ON ba.author_id = a.id
		WHERE ba.book_id = $1
		ORDER BY ba.position
	`, bookID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO library_users (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, u.ID, u.Name, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, name, created_at, updated_at
		FROM library_users
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, apperr.NotFound("user %s not found", id)
	}
	if err != nil {
		return user.User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	var result []user.User
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, name, created_at, updated_at
		FROM library_users
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) (bool, error) {
	// borrowed_by references carry ON DELETE SET NULL, so held books are
	// released by the delete itself.
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM library_users WHERE id = $1
	`, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
