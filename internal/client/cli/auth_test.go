package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/client/client"
	"github.com/dmitrijs2005/cryptodesk/internal/client/config"
	"github.com/dmitrijs2005/cryptodesk/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient implements client.Client for unit tests.
type fakeClient struct {
	loggedIn bool

	loginEmail string
	loginPass  string
	loginErr   error

	logoutErr error

	newPassword string
	changeErr   error

	stats     *models.Stats
	users     []models.User
	txs       []models.Transaction
	resets    []models.PasswordReset
	reconcile *models.ReconcileReport
	exportKey string
	exportErr error
	reportErr error

	resolved []string
}

func (f *fakeClient) Ping(context.Context) error { return nil }
func (f *fakeClient) Login(_ context.Context, email string, password []byte) error {
	f.loginEmail, f.loginPass = email, string(password)
	if f.loginErr != nil {
		return f.loginErr
	}
	f.loggedIn = true
	return nil
}
func (f *fakeClient) Logout(context.Context) error {
	f.loggedIn = false
	return f.logoutErr
}
func (f *fakeClient) LoggedIn() bool { return f.loggedIn }
func (f *fakeClient) ChangePassword(_ context.Context, pw []byte) error {
	f.newPassword = string(pw)
	return f.changeErr
}
func (f *fakeClient) Stats(context.Context) (*models.Stats, error) { return f.stats, f.reportErr }
func (f *fakeClient) Users(context.Context) ([]models.User, error)  { return f.users, f.reportErr }
func (f *fakeClient) Transactions(context.Context) ([]models.Transaction, error) {
	return f.txs, f.reportErr
}
func (f *fakeClient) PasswordResets(context.Context) ([]models.PasswordReset, error) {
	return f.resets, f.reportErr
}
func (f *fakeClient) Reconcile(context.Context) (*models.ReconcileReport, error) {
	return f.reconcile, f.reportErr
}
func (f *fakeClient) Export(context.Context) (string, error) { return f.exportKey, f.exportErr }
func (f *fakeClient) MarkPaid(_ context.Context, id string) (*models.Transaction, error) {
	return f.resolve(id, "paid")
}
func (f *fakeClient) MarkFailed(_ context.Context, id string) (*models.Transaction, error) {
	return f.resolve(id, "failed")
}
func (f *fakeClient) resolve(id, status string) (*models.Transaction, error) {
	if f.reportErr != nil {
		return nil, f.reportErr
	}
	f.resolved = append(f.resolved, status+" "+id)
	return &models.Transaction{ID: id, PaymentStatus: status, CreatedAt: time.Now()}, nil
}

var _ client.Client = (*fakeClient)(nil)

func newTestApp(f *fakeClient, cfg *config.Config) (*App, *bytes.Buffer) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	var out bytes.Buffer
	return &App{config: cfg, api: f, reader: bufio.NewReader(strings.NewReader("")), out: &out}, &out
}

func stubInputs(t *testing.T, email string, passwords ...string) {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})

	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) { return email, nil }
	i := 0
	getPassword = func(string, io.Writer) ([]byte, error) {
		if i >= len(passwords) {
			return nil, io.EOF
		}
		pw := []byte(passwords[i])
		i++
		return pw, nil
	}
}

func TestLogin_Success(t *testing.T) {
	f := &fakeClient{}
	a, out := newTestApp(f, nil)
	stubInputs(t, "admin@x.io", "secret1")

	require.NoError(t, a.Login(context.Background()))
	assert.Equal(t, "admin@x.io", f.loginEmail)
	assert.Equal(t, "secret1", f.loginPass)
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, "(admin@x.io)", a.getStatus())
	assert.Contains(t, out.String(), "Login successful")
}

func TestLogin_UsesConfiguredEmail(t *testing.T) {
	f := &fakeClient{}
	a, _ := newTestApp(f, &config.Config{AdminEmail: "ops@x.io"})
	stubInputs(t, "ignored@x.io", "secret1")

	require.NoError(t, a.Login(context.Background()))
	assert.Equal(t, "ops@x.io", f.loginEmail)
}

func TestLogin_Failure(t *testing.T) {
	f := &fakeClient{loginErr: client.ErrUnauthorized}
	a, _ := newTestApp(f, nil)
	stubInputs(t, "admin@x.io", "wrong")

	require.ErrorIs(t, a.Login(context.Background()), client.ErrUnauthorized)
	assert.False(t, a.isLoggedIn())
	assert.Equal(t, "(guest)", a.getStatus())
}

func TestLogout(t *testing.T) {
	f := &fakeClient{loggedIn: true}
	a, out := newTestApp(f, nil)
	a.email = "admin@x.io"

	require.NoError(t, a.Logout(context.Background()))
	assert.False(t, a.isLoggedIn())
	assert.Empty(t, a.email)
	assert.Contains(t, out.String(), "Logged out")

	f.logoutErr = errors.New("gone")
	require.Error(t, a.Logout(context.Background()))
}

func TestChangePassword(t *testing.T) {
	t.Run("mismatch", func(t *testing.T) {
		f := &fakeClient{loggedIn: true}
		a, _ := newTestApp(f, nil)
		stubInputs(t, "", "first-pass", "other-pass")

		require.ErrorIs(t, a.ChangePassword(context.Background()), errPasswordMismatch)
		assert.Empty(t, f.newPassword)
		assert.True(t, a.isLoggedIn())
	})

	t.Run("success", func(t *testing.T) {
		f := &fakeClient{loggedIn: true}
		a, out := newTestApp(f, nil)
		stubInputs(t, "", "new-secret", "new-secret")

		require.NoError(t, a.ChangePassword(context.Background()))
		assert.Equal(t, "new-secret", f.newPassword)
		assert.True(t, a.isLoggedIn())
		assert.Contains(t, out.String(), "other sessions were signed out")
	})

	t.Run("server rejects", func(t *testing.T) {
		f := &fakeClient{loggedIn: true, changeErr: &client.StatusError{Code: 400, Detail: "password does not meet requirements"}}
		a, _ := newTestApp(f, nil)
		stubInputs(t, "", "123", "123")

		var se *client.StatusError
		require.ErrorAs(t, a.ChangePassword(context.Background()), &se)
		assert.True(t, a.isLoggedIn())
	})

	t.Run("input error", func(t *testing.T) {
		a, _ := newTestApp(&fakeClient{loggedIn: true}, nil)
		stubInputs(t, "")

		require.ErrorIs(t, a.ChangePassword(context.Background()), io.EOF)
	})
}
