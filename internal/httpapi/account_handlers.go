package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"libris.org/internal/accounts"
	"libris.org/internal/auth"
	"libris.org/internal/ids"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Account   accounts.Account `json:"account"`
}

func (a *API) handleAccountsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.registerAccount(w, r)
	case http.MethodGet:
		a.listAccounts(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleAccountResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/accounts/")
	if path == "login" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.login(w, r)
		return
	}
	if path == "" || strings.Contains(path, "/") {
		writeFailure(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getAccount(w, r, path)
	case http.MethodPut:
		a.updateAccount(w, r, path)
	case http.MethodDelete:
		a.deleteAccount(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) registerAccount(w http.ResponseWriter, r *http.Request) {
	var req accounts.NewAccount
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, http.StatusBadRequest, err.Error())
		return
	}

	acct, err := a.accounts.Register(r.Context(), req)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.auditEvent(r, "accounts.register", map[string]any{
		"account_id": acct.ID,
		"role":       acct.Role,
	})
	w.Header().Set("Location", "/v1/accounts/"+acct.ID)
	writeSuccess(w, r, http.StatusCreated, "account registered successfully", acct)
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, http.StatusBadRequest, err.Error())
		return
	}

	acct, err := a.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	token, expiresAt, err := a.authn.IssueToken(acct.ID, acct.Role)
	if err != nil {
		writeFailure(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	a.auditEvent(r, "accounts.login", map[string]any{"account_id": acct.ID})
	writeSuccess(w, r, http.StatusOK, "login successful", loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Account:   acct,
	})
}

func (a *API) listAccounts(w http.ResponseWriter, r *http.Request) {
	if !a.requireLibrarian(w, r) {
		return
	}
	list, err := a.accounts.List(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, "accounts retrieved successfully", list)
}

// getAccount allows a caller to read their own account; anything else needs
// the librarian role.
func (a *API) getAccount(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeFailure(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if identity.ID != id && identity.Role != auth.RoleLibrarian {
		writeFailure(w, r, http.StatusForbidden, "librarian role required")
		return
	}
	if !ids.Valid(id) {
		writeFailure(w, r, http.StatusBadRequest, fmt.Sprintf("invalid account id %s", id))
		return
	}
	acct, err := a.accounts.GetByID(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, "account retrieved successfully", acct)
}

func (a *API) updateAccount(w http.ResponseWriter, r *http.Request, id string) {
	if !a.requireLibrarian(w, r) {
		return
	}
	if !ids.Valid(id) {
		writeFailure(w, r, http.StatusBadRequest, fmt.Sprintf("invalid account id %s", id))
		return
	}
	var req accounts.AccountUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, http.StatusBadRequest, err.Error())
		return
	}
	acct, err := a.accounts.Update(r.Context(), id, req)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.auditEvent(r, "accounts.update", map[string]any{"account_id": acct.ID})
	writeSuccess(w, r, http.StatusOK, "account updated successfully", acct)
}

func (a *API) deleteAccount(w http.ResponseWriter, r *http.Request, id string) {
	if !a.requireLibrarian(w, r) {
		return
	}
	if !ids.Valid(id) {
		writeFailure(w, r, http.StatusBadRequest, fmt.Sprintf("invalid account id %s", id))
		return
	}
	if err := a.accounts.Delete(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.auditEvent(r, "accounts.delete", map[string]any{"account_id": id})
	writeSuccess(w, r, http.StatusOK, "account deleted successfully", nil)
}
