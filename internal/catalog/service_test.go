package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testBook(isbn, title, author, genre string) NewBook {
	return NewBook{
		ISBN:          isbn,
		Title:         title,
		Author:        author,
		Publisher:     "Test Press",
		PublishedDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Genre:         genre,
		Description:   "d",
		Quantity:      2,
	}
}

func assertConsistent(t *testing.T, b Book) {
	t.Helper()
	borrowed := b.BorrowedBy != nil
	due := b.DueDate != nil
	if b.Available == borrowed || borrowed != due {
		t.Fatalf("borrow state inconsistent: available=%v borrowedBy=%v dueDate=%v",
			b.Available, b.BorrowedBy, b.DueDate)
	}
}

func TestCreateAndGet(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	book, err := s.Create(ctx, testBook("1234567890123", "X", "A", "G"))
	if err != nil {
		t.Fatal(err)
	}
	if !book.Available {
		t.Fatal("new book must be available")
	}
	assertConsistent(t, book)

	got, err := s.GetByID(ctx, book.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ISBN != "1234567890123" || got.Quantity != 2 {
		t.Fatalf("unexpected book: %+v", got)
	}
}

func TestCreateDefaultsQuantity(t *testing.T) {
	s := NewInMemory()
	in := testBook("1234567890123", "X", "A", "G")
	in.Quantity = 0
	book, err := s.Create(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if book.Quantity != 1 {
		t.Fatalf("expected default quantity 1, got %d", book.Quantity)
	}
}

func TestCreateValidation(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	bad := testBook("123", "X", "A", "G")
	if _, err := s.Create(ctx, bad); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("short isbn: expected ErrInvalidInput, got %v", err)
	}
	bad = testBook("12345678901ab", "X", "A", "G")
	if _, err := s.Create(ctx, bad); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("non-digit isbn: expected ErrInvalidInput, got %v", err)
	}
	bad = testBook("1234567890123", "", "A", "G")
	if _, err := s.Create(ctx, bad); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty title: expected ErrInvalidInput, got %v", err)
	}
	bad = testBook("1234567890123", "X", "A", "G")
	bad.PublishedDate = time.Time{}
	if _, err := s.Create(ctx, bad); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("zero date: expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateDuplicateISBN(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	if _, err := s.Create(ctx, testBook("1234567890123", "X", "A", "G")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(ctx, testBook("1234567890123", "Y", "B", "H")); !errors.Is(err, ErrDuplicateISBN) {
		t.Fatalf("expected ErrDuplicateISBN, got %v", err)
	}
}

func TestBorrowTransition(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	book, err := s.Create(ctx, testBook("1234567890123", "X", "A", "G"))
	if err != nil {
		t.Fatal(err)
	}

	due := time.Now().UTC().Add(7 * 24 * time.Hour)
	borrowed, err := s.Borrow(ctx, book.ID, "acct-1", due)
	if err != nil {
		t.Fatalf("Borrow: %v", err)
	}
	if borrowed.Available {
		t.Fatal("borrowed book still available")
	}
	if borrowed.BorrowedBy == nil || *borrowed.BorrowedBy != "acct-1" {
		t.Fatalf("unexpected borrower: %v", borrowed.BorrowedBy)
	}
	if borrowed.DueDate == nil || !borrowed.DueDate.Equal(due) {
		t.Fatalf("unexpected due date: %v", borrowed.DueDate)
	}
	assertConsistent(t, borrowed)

	// Second borrow fails and leaves the record unchanged.
	if _, err := s.Borrow(ctx, book.ID, "acct-2", due); !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("expected ErrNotAvailable, got %v", err)
	}
	after, err := s.GetByID(ctx, book.ID)
	if err != nil {
		t.Fatal(err)
	}
	if *after.BorrowedBy != "acct-1" {
		t.Fatalf("failed borrow mutated the record: %v", *after.BorrowedBy)
	}
	assertConsistent(t, after)
}

func TestBorrowMissingBook(t *testing.T) {
	s := NewInMemory()
	due := time.Now().Add(time.Hour)
	if _, err := s.Borrow(context.Background(), "01HZXK3V5B9BQ1NOPE", "acct-1", due); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentBorrowSingleWinner(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	book, err := s.Create(ctx, testBook("1234567890123", "X", "A", "G"))
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	var wins, conflicts atomic.Int64
	due := time.Now().UTC().Add(7 * 24 * time.Hour)
	N := 50
	for i := 0; i < N; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Borrow(ctx, book.ID, "acct", due)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrNotAvailable):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
	if conflicts.Load() != int64(N-1) {
		t.Fatalf("expected %d conflicts, got %d", N-1, conflicts.Load())
	}
}

func TestSearch(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	if _, err := s.Create(ctx, testBook("1111111111111", "Dune", "Frank Herbert", "Sci-Fi")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(ctx, testBook("2222222222222", "Hyperion", "Dan Simmons", "Sci-Fi")); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Search(ctx, SearchQuery{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty query: expected ErrInvalidInput, got %v", err)
	}

	// Case-insensitive exact match.
	books, err := s.Search(ctx, SearchQuery{Title: "dune"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(books) != 1 || books[0].Title != "Dune" {
		t.Fatalf("unexpected result: %+v", books)
	}

	// Substring must not match.
	if _, err := s.Search(ctx, SearchQuery{Title: "Dun"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("substring: expected ErrNotFound, got %v", err)
	}

	// Criteria are OR'd.
	books, err = s.Search(ctx, SearchQuery{Title: "dune", Genre: "sci-fi"})
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != 2 {
		t.Fatalf("expected 2 results, got %d", len(books))
	}
}

func TestSearchLimit(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	for i := 0; i < SearchLimit+5; i++ {
		in := testBook(fmt.Sprintf("97800000000%02d", i), "Common Title", "A", "G")
		if _, err := s.Create(ctx, in); err != nil {
			t.Fatal(err)
		}
	}
	books, err := s.Search(ctx, SearchQuery{Title: "common title"})
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != SearchLimit {
		t.Fatalf("expected %d results, got %d", SearchLimit, len(books))
	}
}

func TestFilterByAvailability(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	a, _ := s.Create(ctx, testBook("1111111111111", "A", "X", "G"))
	if _, err := s.Create(ctx, testBook("2222222222222", "B", "Y", "G")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Borrow(ctx, a.ID, "acct-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	unavailable, err := s.FilterByAvailability(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(unavailable) != 1 || unavailable[0].ID != a.ID {
		t.Fatalf("unexpected unavailable set: %+v", unavailable)
	}

	available, err := s.FilterByAvailability(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(available) != 1 {
		t.Fatalf("unexpected available set: %+v", available)
	}
}

func TestFilterNoMatches(t *testing.T) {
	s := NewInMemory()
	if _, err := s.FilterByAvailability(context.Background(), false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateCannotTouchBorrowState(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	book, _ := s.Create(ctx, testBook("1111111111111", "A", "X", "G"))
	if _, err := s.Borrow(ctx, book.ID, "acct-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	title := "Renamed"
	updated, err := s.Update(ctx, book.ID, BookUpdate{Title: &title})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "Renamed" {
		t.Fatalf("title not updated: %s", updated.Title)
	}
	if updated.Available || updated.BorrowedBy == nil {
		t.Fatal("update clobbered borrow state")
	}
	assertConsistent(t, updated)
}

func TestFailedUpdateLeavesRecordUnchanged(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	book, _ := s.Create(ctx, testBook("1111111111111", "Original", "X", "G"))

	// One valid field alongside one invalid field: nothing may stick.
	title := "Renamed"
	author := ""
	if _, err := s.Update(ctx, book.ID, BookUpdate{Title: &title, Author: &author}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	got, err := s.GetByID(ctx, book.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Original" {
		t.Fatalf("failed update committed a partial mutation: title=%q", got.Title)
	}
	if got.Author != "X" {
		t.Fatalf("failed update changed author: %q", got.Author)
	}
	if !got.UpdatedAt.Equal(book.UpdatedAt) {
		t.Fatalf("failed update touched updated_at")
	}
}

func TestDelete(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	book, _ := s.Create(ctx, testBook("1111111111111", "A", "X", "G"))

	if err := s.Delete(ctx, book.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, book.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// Freed ISBN can be reused.
	if _, err := s.Create(ctx, testBook("1111111111111", "A", "X", "G")); err != nil {
		t.Fatalf("re-create freed isbn: %v", err)
	}
}
