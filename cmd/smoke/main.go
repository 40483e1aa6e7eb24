// Command smoke exercises a running libris-api end to end: register a
// librarian and a reader, add a book, borrow it, and confirm the second
// borrow attempt is refused.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"libris.org/internal/accounts"
	"libris.org/internal/catalog"
	"libris.org/internal/client"
)

func main() {
	baseURL := os.Getenv("LIBRIS_SMOKE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	run := fmt.Sprintf("%d", time.Now().UnixNano())

	librarian := client.New(baseURL)
	if _, err := librarian.Register(ctx, accounts.NewAccount{
		FullName: "Smoke Librarian",
		Email:    fmt.Sprintf("smoke-librarian-%s@example.com", run),
		Password: "smoke-pass",
		Role:     "librarian",
	}); err != nil {
		log.Fatalf("register librarian: %v", err)
	}
	if _, err := librarian.Login(ctx, fmt.Sprintf("smoke-librarian-%s@example.com", run), "smoke-pass"); err != nil {
		log.Fatalf("login librarian: %v", err)
	}

	reader := client.New(baseURL)
	if _, err := reader.Register(ctx, accounts.NewAccount{
		FullName: "Smoke Reader",
		Email:    fmt.Sprintf("smoke-reader-%s@example.com", run),
		Password: "smoke-pass",
	}); err != nil {
		log.Fatalf("register reader: %v", err)
	}
	if _, err := reader.Login(ctx, fmt.Sprintf("smoke-reader-%s@example.com", run), "smoke-pass"); err != nil {
		log.Fatalf("login reader: %v", err)
	}

	isbn := fmt.Sprintf("9%012d", time.Now().UnixNano()%1_000_000_000_000)
	book, err := librarian.CreateBook(ctx, catalog.NewBook{
		ISBN:          isbn,
		Title:         fmt.Sprintf("Smoke Test Volume %s", run),
		Author:        "Smoke Author",
		Publisher:     "Smoke Press",
		PublishedDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Genre:         "Testing",
		Description:   "Disposable record created by the smoke tool.",
		Quantity:      1,
	})
	if err != nil {
		log.Fatalf("create book: %v", err)
	}

	borrowed, err := reader.Borrow(ctx, book.ID)
	if err != nil {
		log.Fatalf("borrow: %v", err)
	}
	if borrowed.Available || borrowed.BorrowedBy == nil || borrowed.DueDate == nil {
		log.Fatalf("borrow left inconsistent state: %+v", borrowed)
	}

	_, err = librarian.Borrow(ctx, book.ID)
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		log.Fatalf("second borrow should be refused with 400, got %v", err)
	}

	after, err := librarian.GetBook(ctx, book.ID)
	if err != nil {
		log.Fatalf("get book: %v", err)
	}
	if after.BorrowedBy == nil || *after.BorrowedBy != *borrowed.BorrowedBy {
		log.Fatalf("losing borrow overwrote the borrower: %+v", after)
	}

	fmt.Printf("smoke test passed: book=%s borrower=%s due=%s\n",
		book.ID, *after.BorrowedBy, after.DueDate.Format(time.RFC3339))
}
