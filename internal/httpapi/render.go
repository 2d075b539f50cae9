package httpapi

import (
	"time"

	"github.com/openshelf/library-service/internal/domain/author"
	"github.com/openshelf/library-service/internal/domain/book"
	"github.com/openshelf/library-service/internal/domain/user"
	"github.com/openshelf/library-service/internal/services/authors"
	"github.com/openshelf/library-service/internal/services/books"
	"github.com/openshelf/library-service/internal/services/users"
)

// Timestamps are rendered as normalized ISO-8601 UTC text on every entity.
func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

type authorPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type userPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type bookSummaryPayload struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ISBN       string `json:"isbn,omitempty"`
	IsBorrowed bool   `json:"isBorrowed"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
}

type bookPayload struct {
	bookSummaryPayload
	Authors    []authorPayload `json:"authors"`
	BorrowedBy *userPayload    `json:"borrowedBy"`
}

type authorDetailPayload struct {
	authorPayload
	Books []bookSummaryPayload `json:"books"`
}

type userDetailPayload struct {
	userPayload
	BorrowedBooks []borrowedBookPayload `json:"borrowedBooks"`
}

type borrowedBookPayload struct {
	bookSummaryPayload
	Authors []authorPayload `json:"authors"`
}

func renderAuthor(a author.Author) authorPayload {
	return authorPayload{
		ID:        a.ID,
		Name:      a.Name,
		CreatedAt: isoTime(a.CreatedAt),
		UpdatedAt: isoTime(a.UpdatedAt),
	}
}

func renderAuthors(list []author.Author) []authorPayload {
	result := make([]authorPayload, 0, len(list))
	for _, a := range list {
		result = append(result, renderAuthor(a))
	}
	return result
}

func renderUser(u user.User) userPayload {
	return userPayload{
		ID:        u.ID,
		Name:      u.Name,
		CreatedAt: isoTime(u.CreatedAt),
		UpdatedAt: isoTime(u.UpdatedAt),
	}
}

func renderUsers(list []user.User) []userPayload {
	result := make([]userPayload, 0, len(list))
	for _, u := range list {
		result = append(result, renderUser(u))
	}
	return result
}

func renderBookSummary(b book.Book) bookSummaryPayload {
	return bookSummaryPayload{
		ID:         b.ID,
		Title:      b.Title,
		ISBN:       b.ISBN,
		IsBorrowed: b.IsBorrowed(),
		CreatedAt:  isoTime(b.CreatedAt),
		UpdatedAt:  isoTime(b.UpdatedAt),
	}
}

func renderBook(resolved books.Resolved) bookPayload {
	payload := bookPayload{
		bookSummaryPayload: renderBookSummary(resolved.Book),
		Authors:            renderAuthors(resolved.Authors),
	}
	if resolved.Borrower != nil {
		borrower := renderUser(*resolved.Borrower)
		payload.BorrowedBy = &borrower
	}
	return payload
}

func renderBooks(list []books.Resolved) []bookPayload {
	result := make([]bookPayload, 0, len(list))
	for _, resolved := range list {
		result = append(result, renderBook(resolved))
	}
	return result
}

func renderAuthorDetail(resolved authors.Resolved) authorDetailPayload {
	payload := authorDetailPayload{
		authorPayload: renderAuthor(resolved.Author),
		Books:         make([]bookSummaryPayload, 0, len(resolved.Books)),
	}
	for _, b := range resolved.Books {
		payload.Books = append(payload.Books, renderBookSummary(b))
	}
	return payload
}

func renderUserDetail(resolved users.Resolved) userDetailPayload {
	payload := userDetailPayload{
		userPayload:   renderUser(resolved.User),
		BorrowedBooks: make([]borrowedBookPayload, 0, len(resolved.BorrowedBooks)),
	}
	for _, borrowed := range resolved.BorrowedBooks {
		payload.BorrowedBooks = append(payload.BorrowedBooks, borrowedBookPayload{
			bookSummaryPayload: renderBookSummary(borrowed.Book),
			Authors:            renderAuthors(borrowed.Authors),
		})
	}
	return payload
}
