package book

import "time"

// Book is a catalog entry. BorrowedByID holds the id of the user currently
// holding the book, or the empty string when the book is available.
type Book struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	ISBN         string    `db:"isbn"`
	BorrowedByID string    `db:"borrowed_by"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// IsBorrowed reports whether the book is currently on loan. Derived from the
// borrower reference, no store access needed.
func (b Book) IsBorrowed() bool { return b.BorrowedByID != "" }

// Filter narrows a book listing. Zero-valued fields do not filter; set fields
// compose with logical AND.
type Filter struct {
	// AuthorID selects books whose author set contains this id.
	AuthorID string
	// Borrowed selects books by loan state when non-nil.
	Borrowed *bool
}
