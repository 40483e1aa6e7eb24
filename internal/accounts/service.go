package accounts

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"libris.org/internal/auth"
	"libris.org/internal/ids"
)

// Service defines account operations.
type Service interface {
	Register(ctx context.Context, in NewAccount) (Account, error)
	Authenticate(ctx context.Context, email, password string) (Account, error)
	GetByID(ctx context.Context, id string) (Account, error)
	GetByEmail(ctx context.Context, email string) (Account, error)
	List(ctx context.Context) ([]Account, error)
	Update(ctx context.Context, id string, upd AccountUpdate) (Account, error)
	Delete(ctx context.Context, id string) error
}

// NormalizeEmail lowercases and trims an email address so uniqueness checks
// are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateNew normalizes registration input in place, applying the default
// role, and reports the first violated constraint.
func ValidateNew(in *NewAccount) error {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = NormalizeEmail(in.Email)
	in.Role = strings.TrimSpace(in.Role)
	if in.FullName == "" {
		return fmt.Errorf("%w: fullname is required", ErrInvalidInput)
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if in.Password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if in.Role == "" {
		in.Role = auth.RoleUser
	}
	if !auth.ValidRole(in.Role) {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	return nil
}

// InMemory implements Service with in-process concurrency safety.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[string]*Account
	byEmail map[string]string // normalized email -> id
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates an empty account store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[string]*Account),
		byEmail: make(map[string]string),
	}
}

func (s *InMemory) Register(ctx context.Context, in NewAccount) (Account, error) {
	if err := ValidateNew(&in); err != nil {
		return Account{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[in.Email]; exists {
		return Account{}, ErrDuplicateEmail
	}

	now := time.Now().UTC()
	acct := &Account{
		ID:           ids.New(),
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byID[acct.ID] = acct
	s.byEmail[acct.Email] = acct.ID
	return *acct, nil
}

func (s *InMemory) Authenticate(ctx context.Context, email, password string) (Account, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return Account{}, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	s.mu.RLock()
	id, ok := s.byEmail[email]
	var acct Account
	if ok {
		acct = *s.byID[id]
	}
	s.mu.RUnlock()

	if !ok {
		return Account{}, ErrNotFound
	}
	if err := auth.VerifyPassword(acct.PasswordHash, password); err != nil {
		return Account{}, ErrPasswordMismatch
	}
	return acct, nil
}

func (s *InMemory) GetByID(ctx context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return *acct, nil
}

func (s *InMemory) GetByEmail(ctx context.Context, email string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return Account{}, ErrNotFound
	}
	return *s.byID[id], nil
}

func (s *InMemory) List(ctx context.Context) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, 0, len(s.byID))
	for _, acct := range s.byID {
		out = append(out, *acct)
	}
	return out, nil
}

func (s *InMemory) Update(ctx context.Context, id string, upd AccountUpdate) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}

	// Build the result on a copy; the stored record and the email index
	// change only when every field has validated.
	next := *acct
	if upd.FullName != nil {
		name := strings.TrimSpace(*upd.FullName)
		if name == "" {
			return Account{}, fmt.Errorf("%w: fullname cannot be empty", ErrInvalidInput)
		}
		next.FullName = name
	}
	if upd.Email != nil {
		email := NormalizeEmail(*upd.Email)
		if email == "" || !strings.Contains(email, "@") {
			return Account{}, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
		}
		if email != acct.Email {
			if _, exists := s.byEmail[email]; exists {
				return Account{}, ErrDuplicateEmail
			}
			next.Email = email
		}
	}
	if upd.Role != nil {
		if !auth.ValidRole(*upd.Role) {
			return Account{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, *upd.Role)
		}
		next.Role = *upd.Role
	}
	if upd.Password != nil {
		if *upd.Password == "" {
			return Account{}, fmt.Errorf("%w: password cannot be empty", ErrInvalidInput)
		}
		hash, err := auth.HashPassword(*upd.Password)
		if err != nil {
			return Account{}, err
		}
		next.PasswordHash = hash
	}

	next.UpdatedAt = time.Now().UTC()
	if next.Email != acct.Email {
		delete(s.byEmail, acct.Email)
		s.byEmail[next.Email] = acct.ID
	}
	*acct = next
	return next, nil
}

func (s *InMemory) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byEmail, acct.Email)
	delete(s.byID, id)
	return nil
}
