package storage

import (
	"context"

	"github.com/openshelf/library-service/internal/domain/author"
	"github.com/openshelf/library-service/internal/domain/book"
	"github.com/openshelf/library-service/internal/domain/user"
)

// BookStore persists books, their author links, and loan state.
//
// Get returns an apperr NOT_FOUND error when the id does not resolve. Delete
// reports an absent target as (false, nil), not as an error.
type BookStore interface {
	// CreateBook persists the book linked to exactly the given author set.
	CreateBook(ctx context.Context, b book.Book, authorIDs []string) (book.Book, error)
	// UpdateBook persists title and ISBN changes. Loan state is only ever
	// changed through BorrowBook / ReturnBook.
	UpdateBook(ctx context.Context, b book.Book) (book.Book, error)
	// SetBookAuthors replaces the book's entire author set with the given ids.
	SetBookAuthors(ctx context.Context, bookID string, authorIDs []string) error
	GetBook(ctx context.Context, id string) (book.Book, error)
	ListBooks(ctx context.Context, f book.Filter) ([]book.Book, error)
	ListBooksByBorrower(ctx context.Context, userID string) ([]book.Book, error)
	DeleteBook(ctx context.Context, id string) (bool, error)
	// CountBooksByAuthor counts books whose author set contains the id.
	CountBooksByAuthor(ctx context.Context, authorID string) (int, error)

	// BorrowBook atomically sets the borrower iff the book is currently
	// available. It reports false, without error, when the conditional
	// update matched no row (book absent or already borrowed).
	BorrowBook(ctx context.Context, bookID, userID string) (bool, error)
	// ReturnBook atomically clears the borrower iff the book is currently
	// borrowed, with the same reporting convention as BorrowBook.
	ReturnBook(ctx context.Context, bookID string) (bool, error)
}

// AuthorStore persists authors.
type AuthorStore interface {
	CreateAuthor(ctx context.Context, a author.Author) (author.Author, error)
	UpdateAuthor(ctx context.Context, a author.Author) (author.Author, error)
	GetAuthor(ctx context.Context, id string) (author.Author, error)
	ListAuthors(ctx context.Context) ([]author.Author, error)
	DeleteAuthor(ctx context.Context, id string) (bool, error)
	// CountAuthors counts how many of the given ids resolve to stored
	// authors. Duplicate ids are counted once.
	CountAuthors(ctx context.Context, ids []string) (int, error)
	ListAuthorsByBook(ctx context.Context, bookID string) ([]author.Author, error)
}

// UserStore persists library users.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	// DeleteUser removes the user and releases any books they hold.
	DeleteUser(ctx context.Context, id string) (bool, error)
}
