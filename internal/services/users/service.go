// Package users implements the user operations of the library catalog.
package users

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

// Service manages library users.
type Service struct {
	users   storage.UserStore
	books   storage.BookStore
	authors storage.AuthorStore
	log     *logger.Logger
}

// New constructs a user service.
func New(users storage.UserStore, books storage.BookStore, authors storage.AuthorStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{
		users:   users,
		books:   books,
		authors: authors,
		log:     log,
	}
}

// BorrowedBook is a book on loan to a user, with its author set resolved.
type BorrowedBook struct {
	book.Book
	Authors []author.Author
}

// Resolved is a user with their borrowed books loaded.
type Resolved struct {
	user.User
	BorrowedBooks []BorrowedBook
}

// List returns all users without resolving their borrowed-book lists.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	found, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, s.storeFailure(err, "list users")
	}
	return found, nil
}

// Get returns a single user with their borrowed books resolved, each carrying
// its own author set.
func (s *Service) Get(ctx context.Context, id string) (Resolved, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return Resolved{}, s.storeFailure(err, "get user")
	}

	held, err := s.books.ListBooksByBorrower(ctx, id)
	if err != nil {
		return Resolved{}, s.storeFailure(err, "resolve borrowed books")
	}

	resolved := Resolved{User: u, BorrowedBooks: make([]BorrowedBook, 0, len(held))}
	for _, b := range held {
		linked, err := s.authors.ListAuthorsByBook(ctx, b.ID)
		if err != nil {
			return Resolved{}, s.storeFailure(err, "resolve book authors")
		}
		resolved.BorrowedBooks = append(resolved.BorrowedBooks, BorrowedBook{Book: b, Authors: linked})
	}
	return resolved, nil
}

// Create persists a new user. Any name is accepted as given.
func (s *Service) Create(ctx context.Context, name string) (user.User, error) {
	u, err := s.users.CreateUser(ctx, user.User{Name: name})
	if err != nil {
		return user.User{}, s.storeFailure(err, "create user")
	}

	s.log.WithField("user_id", u.ID).WithField("name", u.Name).Info("user created")
	return u, nil
}

// Delete removes a user unconditionally; any books they hold become available
// again. Returns false, without error, when the user did not exist.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := s.users.DeleteUser(ctx, id)
	if err != nil {
		return false, s.storeFailure(err, "delete user")
	}
	if deleted {
		s.log.WithField("user_id", id).Info("user deleted")
	}
	return deleted, nil
}

func (s *Service) storeFailure(err error, op string) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	s.log.WithError(err).WithField("op", op).Error("store operation failed")
	return apperr.Internal(err, op)
}
