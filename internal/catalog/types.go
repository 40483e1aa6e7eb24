package catalog

import (
	"errors"
	"time"
)

// Book is a catalog record. The borrow state is a tri-field invariant:
// Available is false exactly when BorrowedBy and DueDate are set.
type Book struct {
	ID            string     `json:"id"`
	ISBN          string     `json:"isbn"`
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	Publisher     string     `json:"publisher"`
	PublishedDate time.Time  `json:"published_date"`
	Genre         string     `json:"genre"`
	Description   string     `json:"description"`
	Quantity      int        `json:"quantity"`
	Available     bool       `json:"available"`
	BorrowedBy    *string    `json:"borrowed_by"`
	DueDate       *time.Time `json:"due_date"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewBook carries catalog-creation input. Quantity defaults to 1.
type NewBook struct {
	ISBN          string    `json:"isbn"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Publisher     string    `json:"publisher"`
	PublishedDate time.Time `json:"published_date"`
	Genre         string    `json:"genre"`
	Description   string    `json:"description"`
	Quantity      int       `json:"quantity"`
}

// BookUpdate is a partial update; nil fields are left unchanged. Borrow
// state is not editable here, only through the borrow transition.
type BookUpdate struct {
	Title         *string    `json:"title"`
	Author        *string    `json:"author"`
	Publisher     *string    `json:"publisher"`
	PublishedDate *time.Time `json:"published_date"`
	Genre         *string    `json:"genre"`
	Description   *string    `json:"description"`
	Quantity      *int       `json:"quantity"`
}

// SearchQuery holds the optional criteria for a catalog search. At least
// one must be present. Matching is case-insensitive exact match per field,
// OR'd across the provided fields.
type SearchQuery struct {
	Title  string
	Author string
	Genre  string
}

// Empty reports whether no criterion was provided.
func (q SearchQuery) Empty() bool {
	return q.Title == "" && q.Author == "" && q.Genre == ""
}

// SearchLimit caps the number of records returned by Search.
const SearchLimit = 10

// Sentinel errors. Texts are user-visible through the response envelope.
var (
	ErrNotFound      = errors.New("book not found")
	ErrNotAvailable  = errors.New("book is not available")
	ErrDuplicateISBN = errors.New("a book with this isbn already exists")
	ErrInvalidInput  = errors.New("invalid input")
)

// ValidISBN reports whether s is a 13-digit ISBN.
func ValidISBN(s string) bool {
	if len(s) != 13 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
