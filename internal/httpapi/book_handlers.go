package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"libris.org/internal/audit"
	"libris.org/internal/auth"
	"libris.org/internal/catalog"
	"libris.org/internal/ids"
	"libris.org/internal/obs"
	"libris.org/internal/stream"
)

type createBookRequest struct {
	ISBN          string `json:"isbn"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	Publisher     string `json:"publisher"`
	PublishedDate string `json:"published_date"`
	Genre         string `json:"genre"`
	Description   string `json:"description"`
	Quantity      int    `json:"quantity"`
}

type updateBookRequest struct {
	Title         *string `json:"title"`
	Author        *string `json:"author"`
	Publisher     *string `json:"publisher"`
	PublishedDate *string `json:"published_date"`
	Genre         *string `json:"genre"`
	Description   *string `json:"description"`
	Quantity      *int    `json:"quantity"`
}

func (a *API) handleBooksCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listBooks(w, r)
	case http.MethodPost:
		a.createBook(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleBookResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/books/")
	switch path {
	case "":
		writeFailure(w, r, http.StatusNotFound, "resource not found")
		return
	case "search":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.searchBooks(w, r)
		return
	case "filter":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.filterBooks(w, r)
		return
	}

	if id, ok := strings.CutSuffix(path, "/borrow"); ok && !strings.Contains(id, "/") {
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.borrowBook(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeFailure(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getBook(w, r, path)
	case http.MethodPut:
		a.updateBook(w, r, path)
	case http.MethodDelete:
		a.deleteBook(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) listBooks(w http.ResponseWriter, r *http.Request) {
	books, err := a.catalog.List(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, "books retrieved successfully", books)
}

func (a *API) createBook(w http.ResponseWriter, r *http.Request) {
	if !a.requireLibrarian(w, r) {
		return
	}
	var req createBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, http.StatusBadRequest, err.Error())
		return
	}
	published, err := parseDate(req.PublishedDate)
	if err != nil {
		writeFailure(w, r, http.StatusBadRequest, err.Error())
		return
	}

	book, err := a.catalog.Create(r.Context(), catalog.NewBook{
		ISBN:          req.ISBN,
		Title:         req.Title,
		Author:        req.Author,
		Publisher:     req.Publisher,
		PublishedDate: published,
		Genre:         req.Genre,
		Description:   req.Description,
		Quantity:      req.Quantity,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.auditEvent(r, "catalog.book.create", map[string]any{
		"book_id": book.ID,
		"isbn":    book.ISBN,
	})
	w.Header().Set("Location", "/v1/books/"+book.ID)
	writeSuccess(w, r, http.StatusCreated, "book created successfully", book)
}

func (a *API) getBook(w http.ResponseWriter, r *http.Request, id string) {
	if !ids.Valid(id) {
		writeFailure(w, r, http.StatusBadRequest, fmt.Sprintf("invalid book id %s", id))
		return
	}
	book, err := a.catalog.GetByID(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, "book retrieved successfully", book)
}

func (a *API) updateBook(w http.ResponseWriter, r *http.Request, id string) {
	if !a.requireLibrarian(w, r) {
		return
	}
	if !ids.Valid(id) {
		writeFailure(w, r, http.StatusBadRequest, fmt.Sprintf("invalid book id %s", id))
		return
	}
	var req updateBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, http.StatusBadRequest, err.Error())
		return
	}
	upd := catalog.BookUpdate{
		Title:       req.Title,
		Author:      req.Author,
		Publisher:   req.Publisher,
		Genre:       req.Genre,
		Description: req.Description,
		Quantity:    req.Quantity,
	}
	if req.PublishedDate != nil {
		published, err := parseDate(*req.PublishedDate)
		if err != nil {
			writeFailure(w, r, http.StatusBadRequest, err.Error())
			return
		}
		upd.PublishedDate = &published
	}

	book, err := a.catalog.Update(r.Context(), id, upd)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.auditEvent(r, "catalog.book.update", map[string]any{"book_id": book.ID})
	writeSuccess(w, r, http.StatusOK, "book updated successfully", book)
}

func (a *API) deleteBook(w http.ResponseWriter, r *http.Request, id string) {
	if !a.requireLibrarian(w, r) {
		return
	}
	if !ids.Valid(id) {
		writeFailure(w, r, http.StatusBadRequest, fmt.Sprintf("invalid book id %s", id))
		return
	}
	if err := a.catalog.Delete(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.auditEvent(r, "catalog.book.delete", map[string]any{"book_id": id})
	writeSuccess(w, r, http.StatusOK, "book deleted successfully", nil)
}

func (a *API) searchBooks(w http.ResponseWriter, r *http.Request) {
	q := catalog.SearchQuery{
		Title:  strings.TrimSpace(r.URL.Query().Get("title")),
		Author: strings.TrimSpace(r.URL.Query().Get("author")),
		Genre:  strings.TrimSpace(r.URL.Query().Get("genre")),
	}
	books, err := a.catalog.Search(r.Context(), q)
	if errors.Is(err, catalog.ErrNotFound) {
		writeFailure(w, r, http.StatusNotFound, "no books found matching the given criteria")
		return
	}
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, "books found successfully", books)
}

func (a *API) filterBooks(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("available"))
	if raw == "" {
		writeFailure(w, r, http.StatusBadRequest, "availability status is required")
		return
	}
	var available bool
	switch raw {
	case "true":
		available = true
	case "false":
		available = false
	default:
		writeFailure(w, r, http.StatusBadRequest, "available must be true or false")
		return
	}

	books, err := a.catalog.FilterByAvailability(r.Context(), available)
	if errors.Is(err, catalog.ErrNotFound) {
		writeFailure(w, r, http.StatusNotFound, "no books found matching the given criteria")
		return
	}
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, "books found successfully", books)
}

func (a *API) borrowBook(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeFailure(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if !ids.Valid(id) {
		writeFailure(w, r, http.StatusBadRequest, fmt.Sprintf("invalid book id %s", id))
		return
	}

	due := time.Now().UTC().Add(a.cfg.LoanPeriod)
	book, err := a.catalog.Borrow(r.Context(), id, identity.ID, due)
	switch {
	case errors.Is(err, catalog.ErrNotAvailable):
		obs.ObserveBorrow("conflict")
	case errors.Is(err, catalog.ErrNotFound):
		obs.ObserveBorrow("not_found")
	case err != nil:
		obs.ObserveBorrow("error")
	default:
		obs.ObserveBorrow("ok")
	}
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	if a.stream != nil {
		a.stream.Publish(stream.LoanEvent{
			BookID:     book.ID,
			ISBN:       book.ISBN,
			Title:      book.Title,
			BorrowerID: identity.ID,
			DueDate:    due,
			Timestamp:  time.Now().UTC(),
		})
	}
	a.auditEvent(r, "catalog.book.borrow", map[string]any{
		"book_id":  book.ID,
		"due_date": due.Format(time.RFC3339),
	})
	writeSuccess(w, r, http.StatusOK, "book borrowed successfully", book)
}

func (a *API) auditEvent(r *http.Request, event string, fields map[string]any) {
	_ = audit.LogEvent(r.Context(), event, fields)
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("published_date is required")
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid published_date %q, want YYYY-MM-DD", raw)
}
