// Package client is a small HTTP client for the libris API, used by the
// smoke tool and available to other Go services.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"libris.org/internal/accounts"
	"libris.org/internal/catalog"
)

// APIError carries the status and envelope message of a failed call.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client talks to one libris API instance. Login stores the bearer token for
// subsequent calls; a Client is not safe for concurrent logins.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New creates a client for the given base URL (e.g. http://localhost:8080).
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// SetToken installs a bearer token obtained elsewhere.
func (c *Client) SetToken(token string) { c.token = token }

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	if out != nil && env.Data != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, in accounts.NewAccount) (accounts.Account, error) {
	var acct accounts.Account
	err := c.do(ctx, http.MethodPost, "/v1/accounts", in, &acct)
	return acct, err
}

// Login exchanges credentials for a bearer token and installs it.
func (c *Client) Login(ctx context.Context, email, password string) (accounts.Account, error) {
	var data struct {
		Token   string           `json:"token"`
		Account accounts.Account `json:"account"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/accounts/login", map[string]string{
		"email":    email,
		"password": password,
	}, &data)
	if err != nil {
		return accounts.Account{}, err
	}
	c.token = data.Token
	return data.Account, nil
}

// CreateBook adds a book to the catalog. Requires a librarian token.
func (c *Client) CreateBook(ctx context.Context, in catalog.NewBook) (catalog.Book, error) {
	var book catalog.Book
	err := c.do(ctx, http.MethodPost, "/v1/books", in, &book)
	return book, err
}

// GetBook fetches one book by id.
func (c *Client) GetBook(ctx context.Context, id string) (catalog.Book, error) {
	var book catalog.Book
	err := c.do(ctx, http.MethodGet, "/v1/books/"+url.PathEscape(id), nil, &book)
	return book, err
}

// ListBooks returns the full catalog.
func (c *Client) ListBooks(ctx context.Context) ([]catalog.Book, error) {
	var books []catalog.Book
	err := c.do(ctx, http.MethodGet, "/v1/books", nil, &books)
	return books, err
}

// Borrow claims an available book for the authenticated account.
func (c *Client) Borrow(ctx context.Context, id string) (catalog.Book, error) {
	var book catalog.Book
	err := c.do(ctx, http.MethodPut, "/v1/books/"+url.PathEscape(id)+"/borrow", nil, &book)
	return book, err
}

// SearchBooks runs an exact-match search; at least one criterion is required.
func (c *Client) SearchBooks(ctx context.Context, q catalog.SearchQuery) ([]catalog.Book, error) {
	params := url.Values{}
	if q.Title != "" {
		params.Set("title", q.Title)
	}
	if q.Author != "" {
		params.Set("author", q.Author)
	}
	if q.Genre != "" {
		params.Set("genre", q.Genre)
	}
	var books []catalog.Book
	err := c.do(ctx, http.MethodGet, "/v1/books/search?"+params.Encode(), nil, &books)
	return books, err
}
