// Package books implements the book operations of the library catalog,
// including the borrow/return lifecycle.
package books

import (
	"context"
	"errors"

	"github.com/openshelf/library-service/internal/apperr"
	"github.com/openshelf/library-service/internal/domain/author"
	"github.com/openshelf/library-service/internal/domain/book"
	"github.com/openshelf/library-service/internal/domain/user"
	"github.com/openshelf/library-service/internal/storage"
	"github.com/openshelf/library-service/pkg/logger"
)

// Service manages books and their loan state.
type Service struct {
	books   storage.BookStore
	authors storage.AuthorStore
	users   storage.UserStore
	log     *logger.Logger
}

// New constructs a book service.
func New(books storage.BookStore, authors storage.AuthorStore, users storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("books")
	}
	return &Service{
		books:   books,
		authors: authors,
		users:   users,
		log:     log,
	}
}

// Resolved is a book with its relations loaded: the full author set and the
// current borrower, if any.
type Resolved struct {
	book.Book
	Authors  []author.Author
	Borrower *user.User
}

// CreateInput carries the arguments for Create.
type CreateInput struct {
	Title     string
	ISBN      string
	AuthorIDs []string
}

// UpdateInput carries the arguments for Update. Nil fields are left unchanged;
// a non-nil AuthorIDs replaces the book's entire author set.
type UpdateInput struct {
	Title     *string
	ISBN      *string
	AuthorIDs []string
}

// List returns all books matching the filter, each with relations resolved.
func (s *Service) List(ctx context.Context, f book.Filter) ([]Resolved, error) {
	found, err := s.books.ListBooks(ctx, f)
	if err != nil {
		return nil, s.storeFailure(err, "list books")
	}

	result := make([]Resolved, 0, len(found))
	for _, b := range found {
		resolved, err := s.resolve(ctx, b)
		if err != nil {
			return nil, err
		}
		result = append(result, resolved)
	}
	return result, nil
}

// Get returns a single book with relations resolved.
func (s *Service) Get(ctx context.Context, id string) (Resolved, error) {
	b, err := s.books.GetBook(ctx, id)
	if err != nil {
		return Resolved{}, s.storeFailure(err, "get book")
	}
	return s.resolve(ctx, b)
}

// Create persists a new book linked to exactly the given author set. Every
// referenced author must exist; the title and ISBN themselves are stored as
// given, with no shape constraints.
func (s *Service) Create(ctx context.Context, in CreateInput) (Resolved, error) {
	if err := s.authorsExist(ctx, in.AuthorIDs); err != nil {
		return Resolved{}, err
	}

	b := book.Book{
		Title: in.Title,
		ISBN:  in.ISBN,
	}
	b, err := s.books.CreateBook(ctx, b, in.AuthorIDs)
	if err != nil {
		return Resolved{}, s.storeFailure(err, "create book")
	}

	s.log.WithField("book_id", b.ID).WithField("title", b.Title).Info("book created")
	return s.resolve(ctx, b)
}

// Update changes the given fields on an existing book. A provided author set
// fully replaces the previous one; omitted fields are left unchanged.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Resolved, error) {
	b, err := s.books.GetBook(ctx, id)
	if err != nil {
		return Resolved{}, s.storeFailure(err, "get book")
	}

	if in.AuthorIDs != nil {
		if err := s.authorsExist(ctx, in.AuthorIDs); err != nil {
			return Resolved{}, err
		}
	}

	if in.Title != nil {
		b.Title = *in.Title
	}
	if in.ISBN != nil {
		b.ISBN = *in.ISBN
	}

	b, err = s.books.UpdateBook(ctx, b)
	if err != nil {
		return Resolved{}, s.storeFailure(err, "update book")
	}

	if in.AuthorIDs != nil {
		if err := s.books.SetBookAuthors(ctx, id, in.AuthorIDs); err != nil {
			return Resolved{}, s.storeFailure(err, "set book authors")
		}
		// The link replacement touches the row again; re-read so the
		// rendered timestamps match what was stored.
		b, err = s.books.GetBook(ctx, id)
		if err != nil {
			return Resolved{}, s.storeFailure(err, "get book")
		}
	}

	s.log.WithField("book_id", b.ID).Info("book updated")
	return s.resolve(ctx, b)
}

// Delete removes the book if present. Deleting a borrowed book is allowed.
// Returns false, without error, when the book did not exist.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := s.books.DeleteBook(ctx, id)
	if err != nil {
		return false, s.storeFailure(err, "delete book")
	}
	if deleted {
		s.log.WithField("book_id", id).Info("book deleted")
	}
	return deleted, nil
}

// Borrow transitions a book from available to borrowed by the given user.
// Preconditions, checked in order: the user exists, the book exists, the book
// is currently available.
func (s *Service) Borrow(ctx context.Context, bookID, userID string) (Resolved, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return Resolved{}, s.storeFailure(err, "get user")
	}

	b, err := s.books.GetBook(ctx, bookID)
	if err != nil {
		return Resolved{}, s.storeFailure(err, "get book")
	}
	if b.IsBorrowed() {
		return Resolved{}, apperr.BadRequest("book %s is already borrowed", bookID)
	}

	applied, err := s.books.BorrowBook(ctx, bookID, userID)
	if err != nil {
		return Resolved{}, s.storeFailure(err, "borrow book")
	}
	if !applied {
		// Lost a race: the book was borrowed or deleted between the check
		// and the conditional update.
		if _, err := s.books.GetBook(ctx, bookID); err != nil {
			return Resolved{}, s.storeFailure(err, "get book")
		}
		return Resolved{}, apperr.BadRequest("book %s is already borrowed", bookID)
	}

	s.log.WithField("book_id", bookID).WithField("user_id", userID).Info("book borrowed")
	return s.Get(ctx, bookID)
}

// Return transitions a book from borrowed back to available.
func (s *Service) Return(ctx context.Context, bookID string) (Resolved, error) {
	b, err := s.books.GetBook(ctx, bookID)
	if err != nil {
		return Resolved{}, s.storeFailure(err, "get book")
	}
	if !b.IsBorrowed() {
		return Resolved{}, apperr.BadRequest("book %s is not currently borrowed", bookID)
	}

	applied, err := s.books.ReturnBook(ctx, bookID)
	if err != nil {
		return Resolved{}, s.storeFailure(err, "return book")
	}
	if !applied {
		if _, err := s.books.GetBook(ctx, bookID); err != nil {
			return Resolved{}, s.storeFailure(err, "get book")
		}
		return Resolved{}, apperr.BadRequest("book %s is not currently borrowed", bookID)
	}

	s.log.WithField("book_id", bookID).Info("book returned")
	return s.Get(ctx, bookID)
}

// authorsExist verifies that every id in the set resolves to a stored author.
func (s *Service) authorsExist(ctx context.Context, ids []string) error {
	unique := dedupe(ids)
	if len(unique) == 0 {
		return nil
	}
	count, err := s.authors.CountAuthors(ctx, unique)
	if err != nil {
		return s.storeFailure(err, "count authors")
	}
	if count != len(unique) {
		return apperr.InvalidInput("one or more authors not found")
	}
	return nil
}

// resolve loads the author set and borrower for a book. A borrower reference
// that no longer resolves is rendered as no borrower rather than failing the
// read.
func (s *Service) resolve(ctx context.Context, b book.Book) (Resolved, error) {
	linked, err := s.authors.ListAuthorsByBook(ctx, b.ID)
	if err != nil {
		return Resolved{}, s.storeFailure(err, "resolve book authors")
	}

	resolved := Resolved{Book: b, Authors: linked}
	if b.BorrowedByID != "" {
		borrower, err := s.users.GetUser(ctx, b.BorrowedByID)
		if err != nil {
			if !apperr.IsNotFound(err) {
				return Resolved{}, s.storeFailure(err, "resolve borrower")
			}
		} else {
			resolved.Borrower = &borrower
		}
	}
	return resolved, nil
}

// storeFailure passes classified errors through and wraps anything else as an
// internal failure, logging it once here.
func (s *Service) storeFailure(err error, op string) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	s.log.WithError(err).WithField("op", op).Error("store operation failed")
	return apperr.Internal(err, op)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
