package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"libris.org/internal/accounts"
	"libris.org/internal/auth"
	"libris.org/internal/ids"
)

const accountColumns = `id, full_name, email, password_hash, role, created_at, updated_at`

// Accounts implements accounts.Service on Postgres. Email uniqueness is
// enforced by the unique index, not a read-then-write check.
type Accounts struct {
	db      *sql.DB
	timeout time.Duration
}

var _ accounts.Service = (*Accounts)(nil)

// NewAccounts wraps an open database handle.
func NewAccounts(db *sql.DB, timeout time.Duration) *Accounts {
	return &Accounts{db: db, timeout: timeout}
}

func (s *Accounts) Register(ctx context.Context, in accounts.NewAccount) (accounts.Account, error) {
	if err := accounts.ValidateNew(&in); err != nil {
		return accounts.Account{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return accounts.Account{}, err
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		insert into accounts (id, full_name, email, password_hash, role)
		values ($1,$2,$3,$4,$5)
		returning `+accountColumns,
		ids.New(), in.FullName, in.Email, hash, in.Role)
	acct, err := scanAccount(row)
	if err != nil {
		if isUniqueViolation(err) {
			return accounts.Account{}, accounts.ErrDuplicateEmail
		}
		return accounts.Account{}, err
	}
	return acct, nil
}

func (s *Accounts) Authenticate(ctx context.Context, email, password string) (accounts.Account, error) {
	email = accounts.NormalizeEmail(email)
	if email == "" || password == "" {
		return accounts.Account{}, fmt.Errorf("%w: email and password are required", accounts.ErrInvalidInput)
	}
	acct, err := s.GetByEmail(ctx, email)
	if err != nil {
		return accounts.Account{}, err
	}
	if err := auth.VerifyPassword(acct.PasswordHash, password); err != nil {
		return accounts.Account{}, accounts.ErrPasswordMismatch
	}
	return acct, nil
}

func (s *Accounts) GetByID(ctx context.Context, id string) (accounts.Account, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `select `+accountColumns+` from accounts where id=$1`, id)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return accounts.Account{}, accounts.ErrNotFound
	}
	if err != nil {
		return accounts.Account{}, err
	}
	return acct, nil
}

func (s *Accounts) GetByEmail(ctx context.Context, email string) (accounts.Account, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `select `+accountColumns+` from accounts where email=$1`,
		accounts.NormalizeEmail(email))
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return accounts.Account{}, accounts.ErrNotFound
	}
	if err != nil {
		return accounts.Account{}, err
	}
	return acct, nil
}

func (s *Accounts) List(ctx context.Context) ([]accounts.Account, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `select `+accountColumns+` from accounts order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []accounts.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

func (s *Accounts) Update(ctx context.Context, id string, upd accounts.AccountUpdate) (accounts.Account, error) {
	if upd.FullName != nil && strings.TrimSpace(*upd.FullName) == "" {
		return accounts.Account{}, fmt.Errorf("%w: fullname cannot be empty", accounts.ErrInvalidInput)
	}
	var email *string
	if upd.Email != nil {
		normalized := accounts.NormalizeEmail(*upd.Email)
		if normalized == "" || !strings.Contains(normalized, "@") {
			return accounts.Account{}, fmt.Errorf("%w: a valid email is required", accounts.ErrInvalidInput)
		}
		email = &normalized
	}
	if upd.Role != nil && !auth.ValidRole(*upd.Role) {
		return accounts.Account{}, fmt.Errorf("%w: unknown role %q", accounts.ErrInvalidInput, *upd.Role)
	}
	var hash *string
	if upd.Password != nil {
		if *upd.Password == "" {
			return accounts.Account{}, fmt.Errorf("%w: password cannot be empty", accounts.ErrInvalidInput)
		}
		h, err := auth.HashPassword(*upd.Password)
		if err != nil {
			return accounts.Account{}, err
		}
		hash = &h
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		update accounts set
			full_name     = coalesce($2, full_name),
			email         = coalesce($3, email),
			role          = coalesce($4, role),
			password_hash = coalesce($5, password_hash),
			updated_at    = now()
		where id=$1
		returning `+accountColumns,
		id, trimmed(upd.FullName), email, upd.Role, hash)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return accounts.Account{}, accounts.ErrNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return accounts.Account{}, accounts.ErrDuplicateEmail
		}
		return accounts.Account{}, err
	}
	return acct, nil
}

func (s *Accounts) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `delete from accounts where id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return accounts.ErrNotFound
	}
	return nil
}

func scanAccount(row rowScanner) (accounts.Account, error) {
	var a accounts.Account
	err := row.Scan(&a.ID, &a.FullName, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return accounts.Account{}, err
	}
	return a, nil
}
