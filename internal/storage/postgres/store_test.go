package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/openshelf/library-service/internal/apperr"
	"github.com/openshelf/library-service/internal/domain/book"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestStore_BorrowBookConditionalUpdate(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(`(?s)UPDATE library_books.*WHERE id = \$1 AND borrowed_by IS NULL`).
		WithArgs("book-1", "user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := store.BorrowBook(ctx, "book-1", "user-1")
	if err != nil || !applied {
		t.Fatalf("expected borrow to apply: applied=%v err=%v", applied, err)
	}

	// Zero affected rows means the guard lost, not a database failure.
	mock.ExpectExec(`(?s)UPDATE library_books.*WHERE id = \$1 AND borrowed_by IS NULL`).
		WithArgs("book-1", "user-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err = store.BorrowBook(ctx, "book-1", "user-2")
	if err != nil || applied {
		t.Fatalf("expected borrow to be rejected: applied=%v err=%v", applied, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStore_ReturnBookConditionalUpdate(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(`(?s)UPDATE library_books.*SET borrowed_by = NULL.*WHERE id = \$1 AND borrowed_by IS NOT NULL`).
		WithArgs("book-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := store.ReturnBook(ctx, "book-1")
	if err != nil || !applied {
		t.Fatalf("expected return to apply: applied=%v err=%v", applied, err)
	}

	mock.ExpectExec(`(?s)UPDATE library_books.*SET borrowed_by = NULL.*WHERE id = \$1 AND borrowed_by IS NOT NULL`).
		WithArgs("book-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err = store.ReturnBook(ctx, "book-1")
	if err != nil || applied {
		t.Fatalf("expected return to be rejected: applied=%v err=%v", applied, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStore_CreateBookWritesLinksInOneTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO library_books`).
		WithArgs(sqlmock.AnyArg(), "title", "isbn", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM library_book_authors WHERE book_id = \$1`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// Duplicate author ids collapse to a single positioned link.
	mock.ExpectExec(`INSERT INTO library_book_authors`).
		WithArgs(sqlmock.AnyArg(), "author-1", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	created, err := store.CreateBook(ctx, book.Book{Title: "title", ISBN: "isbn"}, []string{"author-1", "author-1"})
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	if created.ID == "" || created.BorrowedByID != "" {
		t.Fatalf("unexpected created book: %#v", created)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStore_GetBookMissing(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`(?s)SELECT.*FROM library_books.*WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.GetBook(ctx, "missing"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestStore_GetBookMapsNullBorrower(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "title", "isbn", "borrowed_by", "created_at", "updated_at"}).
		AddRow("book-1", "title", "isbn", nil, now, now)
	mock.ExpectQuery(`(?s)SELECT.*FROM library_books.*WHERE id = \$1`).
		WithArgs("book-1").
		WillReturnRows(rows)

	b, err := store.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if b.IsBorrowed() || b.BorrowedByID != "" {
		t.Fatalf("NULL borrowed_by must map to an available book: %#v", b)
	}
}

func TestStore_CountAuthors(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	// Empty id set never reaches the database.
	count, err := store.CountAuthors(ctx, nil)
	if err != nil || count != 0 {
		t.Fatalf("expected 0 for empty set, got %d (%v)", count, err)
	}

	mock.ExpectQuery(`SELECT COUNT\(DISTINCT id\) FROM library_authors WHERE id = ANY\(\$1\)`).
		WithArgs(pq.Array([]string{"a", "b", "a"})).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err = store.CountAuthors(ctx, []string{"a", "b", "a"})
	if err != nil {
		t.Fatalf("count authors: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
}

func TestStore_DeleteBookReportsAffectedRows(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM library_books WHERE id = \$1`).
		WithArgs("book-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM library_books WHERE id = \$1`).
		WithArgs("book-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := store.DeleteBook(ctx, "book-1")
	if err != nil || !deleted {
		t.Fatalf("first delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = store.DeleteBook(ctx, "book-1")
	if err != nil || deleted {
		t.Fatalf("second delete must report false: deleted=%v err=%v", deleted, err)
	}
}

func TestStore_UpdateBookPreservesLoanState(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "title", "isbn", "borrowed_by", "created_at", "updated_at"}).
		AddRow("book-1", "old", "isbn", "user-1", now, now)
	mock.ExpectQuery(`(?s)SELECT.*FROM library_books.*WHERE id = \$1`).
		WithArgs("book-1").
		WillReturnRows(rows)
	mock.ExpectExec(`(?s)UPDATE library_books.*SET title = \$2, isbn = \$3`).
		WithArgs("book-1", "new", "isbn", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := store.UpdateBook(ctx, book.Book{ID: "book-1", Title: "new", ISBN: "isbn"})
	if err != nil {
		t.Fatalf("update book: %v", err)
	}
	if updated.BorrowedByID != "user-1" {
		t.Fatalf("update must not touch the loan state: %#v", updated)
	}
}
