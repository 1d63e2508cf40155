package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/client/models"
	"github.com/dmitrijs2005/cryptodesk/internal/netx"
)

type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu    sync.Mutex
	token string
}

// NewHTTPClient returns a client for the API rooted at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) getToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *HTTPClient) setToken(t string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = t
}

func (c *HTTPClient) LoggedIn() bool {
	return c.getToken() != ""
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	req, err := netx.NewJSONRequest(ctx, method, c.baseURL+path, in)
	if err != nil {
		return err
	}
	netx.SetBearer(req, c.getToken())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return netx.DecodeJSON(resp, out)
	case resp.StatusCode == http.StatusUnauthorized:
		c.setToken("")
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	default:
		return &StatusError{Code: resp.StatusCode, Detail: netx.ErrorDetail(resp)}
	}
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

func (c *HTTPClient) Login(ctx context.Context, email string, password []byte) error {
	in := map[string]string{"email": email, "password": string(password)}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/admin/login", in, &out); err != nil {
		return err
	}
	c.setToken(out.Token)
	return nil
}

// Logout revokes the session server-side. The local token is dropped even
// when the call fails.
func (c *HTTPClient) Logout(ctx context.Context) error {
	if !c.LoggedIn() {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/api/admin/logout", nil, nil)
	c.setToken("")
	return err
}

// ChangePassword sets a new admin password. The server revokes every other
// admin session; this one stays valid.
func (c *HTTPClient) ChangePassword(ctx context.Context, newPassword []byte) error {
	in := map[string]string{"new_password": string(newPassword)}
	return c.do(ctx, http.MethodPost, "/api/admin/change-password", in, nil)
}

func (c *HTTPClient) Stats(ctx context.Context) (*models.Stats, error) {
	var out models.Stats
	if err := c.do(ctx, http.MethodGet, "/api/admin/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Users(ctx context.Context) ([]models.User, error) {
	var out struct {
		Users []models.User `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/admin/users", nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *HTTPClient) Transactions(ctx context.Context) ([]models.Transaction, error) {
	var out struct {
		Transactions []models.Transaction `json:"transactions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/admin/transactions", nil, &out); err != nil {
		return nil, err
	}
	return out.Transactions, nil
}

func (c *HTTPClient) PasswordResets(ctx context.Context) ([]models.PasswordReset, error) {
	var out struct {
		PasswordResets []models.PasswordReset `json:"password_resets"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/admin/password-resets", nil, &out); err != nil {
		return nil, err
	}
	return out.PasswordResets, nil
}

func (c *HTTPClient) Reconcile(ctx context.Context) (*models.ReconcileReport, error) {
	var out models.ReconcileReport
	if err := c.do(ctx, http.MethodGet, "/api/admin/reconcile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Export asks the server to archive the transaction set and returns the
// object key. ErrNotFound means archiving is not configured.
func (c *HTTPClient) Export(ctx context.Context) (string, error) {
	var out struct {
		Key string `json:"key"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/admin/transactions/export", nil, &out); err != nil {
		return "", err
	}
	return out.Key, nil
}

func (c *HTTPClient) MarkPaid(ctx context.Context, id string) (*models.Transaction, error) {
	return c.resolve(ctx, id, "paid")
}

func (c *HTTPClient) MarkFailed(ctx context.Context, id string) (*models.Transaction, error) {
	return c.resolve(ctx, id, "failed")
}

func (c *HTTPClient) resolve(ctx context.Context, id, status string) (*models.Transaction, error) {
	var out models.Transaction
	path := "/api/admin/transactions/" + url.PathEscape(id) + "/" + status
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
