package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openshelf/library-service/internal/apperr"
	"github.com/openshelf/library-service/internal/domain/author"
	"github.com/openshelf/library-service/internal/domain/book"
	"github.com/openshelf/library-service/internal/domain/user"
	"github.com/openshelf/library-service/internal/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu     sync.RWMutex
	nextID int64

	books       map[string]book.Book
	bookOrder   []string
	bookAuthors map[string][]string

	authors     map[string]author.Author
	authorOrder []string

	users     map[string]user.User
	userOrder []string
}

var _ storage.BookStore = (*Store)(nil)
var _ storage.AuthorStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:      1,
		books:       make(map[string]book.Book),
		bookAuthors: make(map[string][]string),
		authors:     make(map[string]author.Author),
		users:       make(map[string]user.User),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// BookStore implementation ----------------------------------------------------

func (s *Store) CreateBook(_ context.Context, b book.Book, authorIDs []string) (book.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == "" {
		b.ID = s.nextIDLocked()
	} else if _, exists := s.books[b.ID]; exists {
		return book.Book{}, fmt.Errorf("book %s already exists", b.ID)
	}

	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	b.BorrowedByID = ""

	s.books[b.ID] = b
	s.bookOrder = append(s.bookOrder, b.ID)
	s.bookAuthors[b.ID] = dedupe(authorIDs)
	return b, nil
}

func (s *Store) UpdateBook(_ context.Context, b book.Book) (book.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.books[b.ID]
	if !ok {
		return book.Book{}, apperr.NotFound("book %s not found", b.ID)
	}

	original.Title = b.Title
	original.ISBN = b.ISBN
	original.UpdatedAt = time.Now().UTC()

	s.books[b.ID] = original
	return original, nil
}

func (s *Store) SetBookAuthors(_ context.Context, bookID string, authorIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[bookID]
	if !ok {
		return apperr.NotFound("book %s not found", bookID)
	}
	s.bookAuthors[bookID] = dedupe(authorIDs)
	b.UpdatedAt = time.Now().UTC()
	s.books[bookID] = b
	return nil
}

func (s *Store) GetBook(_ context.Context, id string) (book.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[id]
	if !ok {
		return book.Book{}, apperr.NotFound("book %s not found", id)
	}
	return b, nil
}

func (s *Store) ListBooks(_ context.Context, f book.Filter) ([]book.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []book.Book
	for _, id := range s.bookOrder {
		b := s.books[id]
		if f.AuthorID != "" && !contains(s.bookAuthors[id], f.AuthorID) {
			continue
		}
		if f.Borrowed != nil && b.IsBorrowed() != *f.Borrowed {
			continue
		}
		result = append(result, b)
	}
	return result, nil
}

func (s *Store) ListBooksByBorrower(_ context.Context, userID string) ([]book.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []book.Book
	for _, id := range s.bookOrder {
		if b := s.books[id]; b.BorrowedByID == userID {
			result = append(result, b)
		}
	}
	return result, nil
}

func (s *Store) DeleteBook(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[id]; !ok {
		return false, nil
	}
	delete(s.books, id)
	delete(s.bookAuthors, id)
	s.bookOrder = remove(s.bookOrder, id)
	return true, nil
}

func (s *Store) CountBooksByAuthor(_ context.Context, authorID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, ids := range s.bookAuthors {
		if contains(ids, authorID) {
			count++
		}
	}
	return count, nil
}

func (s *Store) BorrowBook(_ context.Context, bookID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[bookID]
	if !ok || b.IsBorrowed() {
		return false, nil
	}
	b.BorrowedByID = userID
	b.UpdatedAt = time.Now().UTC()
	s.books[bookID] = b
	return true, nil
}

func (s *Store) ReturnBook(_ context.Context, bookID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[bookID]
	if !ok || !b.IsBorrowed() {
		return false, nil
	}
	b.BorrowedByID = ""
	b.UpdatedAt = time.Now().UTC()
	s.books[bookID] = b
	return true, nil
}

// AuthorStore implementation --------------------------------------------------

func (s *Store) CreateAuthor(_ context.Context, a author.Author) (author.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = s.nextIDLocked()
	} else if _, exists := s.authors[a.ID]; exists {
		return author.Author{}, fmt.Errorf("author %s already exists", a.ID)
	}

	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	s.authors[a.ID] = a
	s.authorOrder = append(s.authorOrder, a.ID)
	return a, nil
}

func (s *Store) UpdateAuthor(_ context.Context, a author.Author) (author.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.authors[a.ID]
	if !ok {
		return author.Author{}, apperr.NotFound("author %s not found", a.ID)
	}

	original.Name = a.Name
	original.UpdatedAt = time.Now().UTC()

	s.authors[a.ID] = original
	return original, nil
}

func (s *Store) GetAuthor(_ context.Context, id string) (author.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.authors[id]
	if !ok {
		return author.Author{}, apperr.NotFound("author %s not found", id)
	}
	return a, nil
}

func (s *Store) ListAuthors(_ context.Context) ([]author.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]author.Author, 0, len(s.authorOrder))
	for _, id := range s.authorOrder {
		result = append(result, s.authors[id])
	}
	return result, nil
}

func (s *Store) DeleteAuthor(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.authors[id]; !ok {
		return false, nil
	}
	delete(s.authors, id)
	s.authorOrder = remove(s.authorOrder, id)
	return true, nil
}

func (s *Store) CountAuthors(_ context.Context, ids []string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, id := range dedupe(ids) {
		if _, ok := s.authors[id]; ok {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListAuthorsByBook(_ context.Context, bookID string) ([]author.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	linked := s.bookAuthors[bookID]
	result := make([]author.Author, 0, len(linked))
	for _, id := range linked {
		if a, ok := s.authors[id]; ok {
			result = append(result, a)
		}
	}
	return result, nil
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s already exists", u.ID)
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	s.userOrder = append(s.userOrder, u.ID)
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, apperr.NotFound("user %s not found", id)
	}
	return u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		result = append(result, s.users[id])
	}
	return result, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return false, nil
	}
	delete(s.users, id)
	s.userOrder = remove(s.userOrder, id)

	// Release any books held by the deleted user.
	for bookID, b := range s.books {
		if b.BorrowedByID == id {
			b.BorrowedByID = ""
			b.UpdatedAt = time.Now().UTC()
			s.books[bookID] = b
		}
	}
	return true, nil
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
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
