package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"libris.org/internal/catalog"
	"libris.org/internal/ids"
)

const bookColumns = `id, isbn, title, author, publisher, published_date, genre,
	description, quantity, available, borrowed_by, due_date, created_at, updated_at`

// Catalog implements catalog.Service on Postgres. The borrow transition is a
// single conditional UPDATE keyed on the expected prior state, so it stays
// race-free across concurrent handlers and processes.
type Catalog struct {
	db      *sql.DB
	timeout time.Duration
}

var _ catalog.Service = (*Catalog)(nil)

// NewCatalog wraps an open database handle. timeout bounds each storage
// call; zero disables the bound.
func NewCatalog(db *sql.DB, timeout time.Duration) *Catalog {
	return &Catalog{db: db, timeout: timeout}
}

func (s *Catalog) Create(ctx context.Context, in catalog.NewBook) (catalog.Book, error) {
	if err := catalog.ValidateNew(&in); err != nil {
		return catalog.Book{}, err
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	id := ids.New()
	row := s.db.QueryRowContext(ctx, `
		insert into books (id, isbn, title, author, publisher, published_date, genre, description, quantity)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		returning `+bookColumns,
		id, in.ISBN, in.Title, in.Author, in.Publisher, in.PublishedDate, in.Genre, in.Description, in.Quantity)
	book, err := scanBook(row)
	if err != nil {
		if isUniqueViolation(err) {
			return catalog.Book{}, catalog.ErrDuplicateISBN
		}
		return catalog.Book{}, err
	}
	return book, nil
}

func (s *Catalog) GetByID(ctx context.Context, id string) (catalog.Book, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `select `+bookColumns+` from books where id=$1`, id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Book{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Book{}, err
	}
	return book, nil
}

func (s *Catalog) List(ctx context.Context) ([]catalog.Book, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.queryBooks(ctx, `select `+bookColumns+` from books order by id`)
}

func (s *Catalog) Update(ctx context.Context, id string, upd catalog.BookUpdate) (catalog.Book, error) {
	for field, v := range map[string]*string{
		"title":       upd.Title,
		"author":      upd.Author,
		"publisher":   upd.Publisher,
		"genre":       upd.Genre,
		"description": upd.Description,
	} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return catalog.Book{}, fmt.Errorf("%w: %s cannot be empty", catalog.ErrInvalidInput, field)
		}
	}
	if upd.PublishedDate != nil && upd.PublishedDate.IsZero() {
		return catalog.Book{}, fmt.Errorf("%w: published_date cannot be empty", catalog.ErrInvalidInput)
	}
	if upd.Quantity != nil && *upd.Quantity < 1 {
		return catalog.Book{}, fmt.Errorf("%w: quantity must be at least 1", catalog.ErrInvalidInput)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		update books set
			title          = coalesce($2, title),
			author         = coalesce($3, author),
			publisher      = coalesce($4, publisher),
			published_date = coalesce($5, published_date),
			genre          = coalesce($6, genre),
			description    = coalesce($7, description),
			quantity       = coalesce($8, quantity),
			updated_at     = now()
		where id=$1
		returning `+bookColumns,
		id, trimmed(upd.Title), trimmed(upd.Author), trimmed(upd.Publisher),
		upd.PublishedDate, trimmed(upd.Genre), trimmed(upd.Description), upd.Quantity)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Book{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Book{}, err
	}
	return book, nil
}

func (s *Catalog) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `delete from books where id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (s *Catalog) Search(ctx context.Context, q catalog.SearchQuery) ([]catalog.Book, error) {
	if q.Empty() {
		return nil, fmt.Errorf("%w: at least one search criterion is required", catalog.ErrInvalidInput)
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	books, err := s.queryBooks(ctx, `
		select `+bookColumns+` from books
		where ($1 <> '' and lower(title)  = lower($1))
		   or ($2 <> '' and lower(author) = lower($2))
		   or ($3 <> '' and lower(genre)  = lower($3))
		order by id
		limit $4`,
		q.Title, q.Author, q.Genre, catalog.SearchLimit)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, catalog.ErrNotFound
	}
	return books, nil
}

func (s *Catalog) FilterByAvailability(ctx context.Context, available bool) ([]catalog.Book, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	books, err := s.queryBooks(ctx, `select `+bookColumns+` from books where available=$1 order by id`, available)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, catalog.ErrNotFound
	}
	return books, nil
}

func (s *Catalog) Borrow(ctx context.Context, id, borrowerID string, due time.Time) (catalog.Book, error) {
	if strings.TrimSpace(borrowerID) == "" {
		return catalog.Book{}, fmt.Errorf("%w: borrower id is required", catalog.ErrInvalidInput)
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	// Conditional update: applies only while the book is still available.
	row := s.db.QueryRowContext(ctx, `
		update books
		set available=false, borrowed_by=$2, due_date=$3, updated_at=now()
		where id=$1 and available
		returning `+bookColumns,
		id, borrowerID, due)
	book, err := scanBook(row)
	if err == nil {
		return book, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return catalog.Book{}, err
	}

	// Lost the race or the book never existed; disambiguate.
	var one int
	err = s.db.QueryRowContext(ctx, `select 1 from books where id=$1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Book{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Book{}, err
	}
	return catalog.Book{}, catalog.ErrNotAvailable
}

func (s *Catalog) queryBooks(ctx context.Context, query string, args ...any) ([]catalog.Book, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, book)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (catalog.Book, error) {
	var b catalog.Book
	var borrowedBy sql.NullString
	var dueDate sql.NullTime
	err := row.Scan(&b.ID, &b.ISBN, &b.Title, &b.Author, &b.Publisher, &b.PublishedDate,
		&b.Genre, &b.Description, &b.Quantity, &b.Available, &borrowedBy, &dueDate,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return catalog.Book{}, err
	}
	if borrowedBy.Valid {
		b.BorrowedBy = &borrowedBy.String
	}
	if dueDate.Valid {
		b.DueDate = &dueDate.Time
	}
	return b, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
