// Package authors implements the author operations of the library catalog.
package authors

import (
	"context"
	"errors"

	"github.com/openshelf/library-service/internal/apperr"
	"github.com/openshelf/library-service/internal/domain/author"
	"github.com/openshelf/library-service/internal/domain/book"
	"github.com/openshelf/library-service/internal/storage"
	"github.com/openshelf/library-service/pkg/logger"
)

// Service manages authors.
type Service struct {
	authors storage.AuthorStore
	books   storage.BookStore
	log     *logger.Logger
}

// New constructs an author service.
func New(authors storage.AuthorStore, books storage.BookStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("authors")
	}
	return &Service{
		authors: authors,
		books:   books,
		log:     log,
	}
}

// Resolved is an author with their book list loaded.
type Resolved struct {
	author.Author
	Books []book.Book
}

// List returns all authors without resolving their book lists.
func (s *Service) List(ctx context.Context) ([]author.Author, error) {
	found, err := s.authors.ListAuthors(ctx)
	if err != nil {
		return nil, s.storeFailure(err, "list authors")
	}
	return found, nil
}

// Get returns a single author with their books resolved.
func (s *Service) Get(ctx context.Context, id string) (Resolved, error) {
	a, err := s.authors.GetAuthor(ctx, id)
	if err != nil {
		return Resolved{}, s.storeFailure(err, "get author")
	}

	linked, err := s.books.ListBooks(ctx, book.Filter{AuthorID: id})
	if err != nil {
		return Resolved{}, s.storeFailure(err, "resolve author books")
	}
	return Resolved{Author: a, Books: linked}, nil
}

// Create persists a new author. Names carry no uniqueness or shape
// constraints; any string, including the empty one, is stored as given.
func (s *Service) Create(ctx context.Context, name string) (author.Author, error) {
	a, err := s.authors.CreateAuthor(ctx, author.Author{Name: name})
	if err != nil {
		return author.Author{}, s.storeFailure(err, "create author")
	}

	s.log.WithField("author_id", a.ID).WithField("name", a.Name).Info("author created")
	return a, nil
}

// Update changes the author's name if provided.
func (s *Service) Update(ctx context.Context, id string, name *string) (author.Author, error) {
	a, err := s.authors.GetAuthor(ctx, id)
	if err != nil {
		return author.Author{}, s.storeFailure(err, "get author")
	}

	if name != nil {
		a.Name = *name
	}

	a, err = s.authors.UpdateAuthor(ctx, a)
	if err != nil {
		return author.Author{}, s.storeFailure(err, "update author")
	}

	s.log.WithField("author_id", a.ID).Info("author updated")
	return a, nil
}

// Delete removes an author. It is rejected while any book still references
// the author; an absent author yields false, not an error.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	linked, err := s.books.CountBooksByAuthor(ctx, id)
	if err != nil {
		return false, s.storeFailure(err, "count author books")
	}
	if linked > 0 {
		return false, apperr.BadRequest("cannot delete author with associated books")
	}

	deleted, err := s.authors.DeleteAuthor(ctx, id)
	if err != nil {
		return false, s.storeFailure(err, "delete author")
	}
	if deleted {
		s.log.WithField("author_id", id).Info("author deleted")
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
