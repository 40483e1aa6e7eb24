package auth

import "errors"

var (
	// ErrInvalidToken indicates the credential is missing, malformed,
	// expired or carries a bad signature.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUnauthorized indicates no verified identity is present.
	ErrUnauthorized = errors.New("auth: unauthorized")

	// ErrForbidden indicates a verified identity lacks the required role.
	ErrForbidden = errors.New("auth: forbidden")
)
