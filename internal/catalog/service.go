package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"libris.org/internal/ids"
)

// Service defines catalog operations. Implementations must make Borrow
// atomic per record: of two concurrent borrow calls on the same available
// book, exactly one may succeed.
type Service interface {
	Create(ctx context.Context, in NewBook) (Book, error)
	GetByID(ctx context.Context, id string) (Book, error)
	List(ctx context.Context) ([]Book, error)
	Update(ctx context.Context, id string, upd BookUpdate) (Book, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q SearchQuery) ([]Book, error)
	FilterByAvailability(ctx context.Context, available bool) ([]Book, error)
	Borrow(ctx context.Context, id, borrowerID string, due time.Time) (Book, error)
}

// ValidateNew normalizes creation input in place, applying defaults, and
// reports the first violated constraint.
func ValidateNew(in *NewBook) error {
	in.ISBN = strings.TrimSpace(in.ISBN)
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Publisher = strings.TrimSpace(in.Publisher)
	in.Genre = strings.TrimSpace(in.Genre)
	in.Description = strings.TrimSpace(in.Description)

	if !ValidISBN(in.ISBN) {
		return fmt.Errorf("%w: isbn must be 13 digits", ErrInvalidInput)
	}
	required := map[string]string{
		"title":       in.Title,
		"author":      in.Author,
		"publisher":   in.Publisher,
		"genre":       in.Genre,
		"description": in.Description,
	}
	for field, value := range required {
		if value == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
		}
	}
	if in.PublishedDate.IsZero() {
		return fmt.Errorf("%w: published_date is required", ErrInvalidInput)
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}
	return nil
}

// InMemory implements Service with in-process concurrency safety. The
// store mutex is the atomicity primitive guarding the borrow transition.
type InMemory struct {
	mu     sync.RWMutex
	byID   map[string]*Book
	byISBN map[string]string // isbn -> id
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates an empty catalog.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:   make(map[string]*Book),
		byISBN: make(map[string]string),
	}
}

func (s *InMemory) Create(ctx context.Context, in NewBook) (Book, error) {
	if err := ValidateNew(&in); err != nil {
		return Book{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byISBN[in.ISBN]; exists {
		return Book{}, ErrDuplicateISBN
	}

	now := time.Now().UTC()
	book := &Book{
		ID:            ids.New(),
		ISBN:          in.ISBN,
		Title:         in.Title,
		Author:        in.Author,
		Publisher:     in.Publisher,
		PublishedDate: in.PublishedDate,
		Genre:         in.Genre,
		Description:   in.Description,
		Quantity:      in.Quantity,
		Available:     true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.byID[book.ID] = book
	s.byISBN[book.ISBN] = book.ID
	return *book, nil
}

func (s *InMemory) GetByID(ctx context.Context, id string) (Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	book, ok := s.byID[id]
	if !ok {
		return Book{}, ErrNotFound
	}
	return *book, nil
}

func (s *InMemory) List(ctx context.Context) ([]Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Book, 0, len(s.byID))
	for _, book := range s.byID {
		out = append(out, *book)
	}
	sortBooks(out)
	return out, nil
}

func (s *InMemory) Update(ctx context.Context, id string, upd BookUpdate) (Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.byID[id]
	if !ok {
		return Book{}, ErrNotFound
	}

	// Build the result on a copy; the stored record changes only when every
	// field has validated.
	next := *book
	set := func(dst *string, src *string, field string) error {
		if src == nil {
			return nil
		}
		v := strings.TrimSpace(*src)
		if v == "" {
			return fmt.Errorf("%w: %s cannot be empty", ErrInvalidInput, field)
		}
		*dst = v
		return nil
	}
	for _, f := range []struct {
		dst   *string
		src   *string
		field string
	}{
		{&next.Title, upd.Title, "title"},
		{&next.Author, upd.Author, "author"},
		{&next.Publisher, upd.Publisher, "publisher"},
		{&next.Genre, upd.Genre, "genre"},
		{&next.Description, upd.Description, "description"},
	} {
		if err := set(f.dst, f.src, f.field); err != nil {
			return Book{}, err
		}
	}
	if upd.PublishedDate != nil {
		if upd.PublishedDate.IsZero() {
			return Book{}, fmt.Errorf("%w: published_date cannot be empty", ErrInvalidInput)
		}
		next.PublishedDate = *upd.PublishedDate
	}
	if upd.Quantity != nil {
		if *upd.Quantity < 1 {
			return Book{}, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
		}
		next.Quantity = *upd.Quantity
	}

	next.UpdatedAt = time.Now().UTC()
	*book = next
	return next, nil
}

func (s *InMemory) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byISBN, book.ISBN)
	delete(s.byID, id)
	return nil
}

func (s *InMemory) Search(ctx context.Context, q SearchQuery) ([]Book, error) {
	if q.Empty() {
		return nil, fmt.Errorf("%w: at least one search criterion is required", ErrInvalidInput)
	}

	s.mu.RLock()
	var out []Book
	for _, book := range s.byID {
		if matches(q, book) {
			out = append(out, *book)
		}
	}
	s.mu.RUnlock()

	if len(out) == 0 {
		return nil, ErrNotFound
	}
	sortBooks(out)
	if len(out) > SearchLimit {
		out = out[:SearchLimit]
	}
	return out, nil
}

func matches(q SearchQuery, b *Book) bool {
	if q.Title != "" && strings.EqualFold(q.Title, b.Title) {
		return true
	}
	if q.Author != "" && strings.EqualFold(q.Author, b.Author) {
		return true
	}
	if q.Genre != "" && strings.EqualFold(q.Genre, b.Genre) {
		return true
	}
	return false
}

func (s *InMemory) FilterByAvailability(ctx context.Context, available bool) ([]Book, error) {
	s.mu.RLock()
	var out []Book
	for _, book := range s.byID {
		if book.Available == available {
			out = append(out, *book)
		}
	}
	s.mu.RUnlock()

	if len(out) == 0 {
		return nil, ErrNotFound
	}
	sortBooks(out)
	return out, nil
}

// Borrow applies the conditional state transition available -> borrowed.
// The check and the mutation happen under one lock acquisition, so a
// concurrent borrow on the same record observes ErrNotAvailable.
func (s *InMemory) Borrow(ctx context.Context, id, borrowerID string, due time.Time) (Book, error) {
	if strings.TrimSpace(borrowerID) == "" {
		return Book{}, fmt.Errorf("%w: borrower id is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.byID[id]
	if !ok {
		return Book{}, ErrNotFound
	}
	if !book.Available {
		return Book{}, ErrNotAvailable
	}

	book.Available = false
	book.BorrowedBy = &borrowerID
	book.DueDate = &due
	book.UpdatedAt = time.Now().UTC()
	return *book, nil
}

func sortBooks(books []Book) {
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
}
