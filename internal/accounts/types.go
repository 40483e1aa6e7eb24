package accounts

import (
	"errors"
	"time"
)

// Account is a registered user of the library. The password hash is never
// serialized in responses.
type Account struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullname"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewAccount carries registration input. Role defaults to "user" when empty.
type NewAccount struct {
	FullName string `json:"fullname"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// AccountUpdate is a partial update; nil fields are left unchanged.
type AccountUpdate struct {
	FullName *string `json:"fullname"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

// Sentinel errors. Texts are user-visible through the response envelope.
var (
	ErrNotFound         = errors.New("account not found")
	ErrDuplicateEmail   = errors.New("email is already registered")
	ErrInvalidInput     = errors.New("invalid input")
	ErrPasswordMismatch = errors.New("password does not match")
)
