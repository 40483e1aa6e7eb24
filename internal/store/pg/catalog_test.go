package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"libris.org/internal/catalog"
)

var bookCols = []string{
	"id", "isbn", "title", "author", "publisher", "published_date", "genre",
	"description", "quantity", "available", "borrowed_by", "due_date", "created_at", "updated_at",
}

func borrowedBookRow(id, borrower string, due time.Time) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(bookCols).AddRow(
		id, "1234567890123", "Dune", "Frank Herbert", "Chilton", now, "Sci-Fi",
		"d", 1, false, borrower, due, now, now)
}

func newCatalogMock(t *testing.T) (*Catalog, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewCatalog(db, 0), mock
}

func TestBorrowConditionalUpdate(t *testing.T) {
	s, mock := newCatalogMock(t)
	due := time.Now().UTC().Add(7 * 24 * time.Hour)

	mock.ExpectQuery("update books").
		WithArgs("book-1", "acct-1", due).
		WillReturnRows(borrowedBookRow("book-1", "acct-1", due))

	book, err := s.Borrow(context.Background(), "book-1", "acct-1", due)
	if err != nil {
		t.Fatalf("Borrow: %v", err)
	}
	if book.Available {
		t.Fatal("borrowed book still available")
	}
	if book.BorrowedBy == nil || *book.BorrowedBy != "acct-1" {
		t.Fatalf("unexpected borrower: %v", book.BorrowedBy)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBorrowLostRace(t *testing.T) {
	s, mock := newCatalogMock(t)
	due := time.Now().UTC().Add(time.Hour)

	mock.ExpectQuery("update books").
		WithArgs("book-1", "acct-2", due).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("select 1 from books").
		WithArgs("book-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	if _, err := s.Borrow(context.Background(), "book-1", "acct-2", due); !errors.Is(err, catalog.ErrNotAvailable) {
		t.Fatalf("expected ErrNotAvailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBorrowMissingBook(t *testing.T) {
	s, mock := newCatalogMock(t)
	due := time.Now().UTC().Add(time.Hour)

	mock.ExpectQuery("update books").
		WithArgs("book-x", "acct-1", due).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("select 1 from books").
		WithArgs("book-x").
		WillReturnError(sql.ErrNoRows)

	if _, err := s.Borrow(context.Background(), "book-x", "acct-1", due); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBorrowRequiresBorrower(t *testing.T) {
	s, _ := newCatalogMock(t)
	if _, err := s.Borrow(context.Background(), "book-1", "  ", time.Now()); !errors.Is(err, catalog.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateDuplicateISBN(t *testing.T) {
	s, mock := newCatalogMock(t)

	mock.ExpectQuery("insert into books").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "books_isbn_key"})

	in := catalog.NewBook{
		ISBN: "1234567890123", Title: "Dune", Author: "Frank Herbert",
		Publisher: "Chilton", PublishedDate: time.Now(), Genre: "Sci-Fi", Description: "d",
	}
	if _, err := s.Create(context.Background(), in); !errors.Is(err, catalog.ErrDuplicateISBN) {
		t.Fatalf("expected ErrDuplicateISBN, got %v", err)
	}
}

func TestSearchRequiresCriterion(t *testing.T) {
	s, _ := newCatalogMock(t)
	if _, err := s.Search(context.Background(), catalog.SearchQuery{}); !errors.Is(err, catalog.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSearchNoMatches(t *testing.T) {
	s, mock := newCatalogMock(t)

	mock.ExpectQuery("select (.+) from books").
		WithArgs("Nope", "", "", catalog.SearchLimit).
		WillReturnRows(sqlmock.NewRows(bookCols))

	if _, err := s.Search(context.Background(), catalog.SearchQuery{Title: "Nope"}); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFilterByAvailability(t *testing.T) {
	s, mock := newCatalogMock(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(bookCols).AddRow(
		"book-1", "1234567890123", "Dune", "Frank Herbert", "Chilton", now, "Sci-Fi",
		"d", 1, true, nil, nil, now, now)

	mock.ExpectQuery("select (.+) from books where available").
		WithArgs(true).
		WillReturnRows(rows)

	books, err := s.FilterByAvailability(context.Background(), true)
	if err != nil {
		t.Fatalf("FilterByAvailability: %v", err)
	}
	if len(books) != 1 || books[0].BorrowedBy != nil || books[0].DueDate != nil {
		t.Fatalf("unexpected books: %+v", books)
	}
}
