package client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/matt-steen/task-dashboard/pkg/session"
)

type signInResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	UserID      string `json:"user_id"`
}

type meResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type confirmRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// Identity implements session.Identity against the API's /auth routes. The access
// token lives in memory only.
type Identity struct {
	client *Client
	clock  func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewIdentity creates an Identity using c.
func NewIdentity(c *Client) *Identity {
	return &Identity{client: c, clock: time.Now}
}

// SignIn exchanges credentials for an access token.
func (i *Identity) SignIn(ctx context.Context, creds session.Credentials) error {
	var resp signInResponse
	if err := i.client.do(ctx, http.MethodPost, "/auth/signin", "", creds, &resp); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.token = resp.AccessToken
	i.expires = i.clock().Add(time.Duration(resp.ExpiresIn) * time.Second)

	return nil
}

// SignUp registers an account.
func (i *Identity) SignUp(ctx context.Context, creds session.Credentials) error {
	return i.client.do(ctx, http.MethodPost, "/auth/signup", "", creds, nil)
}

// ConfirmSignUp confirms an account with its code.
func (i *Identity) ConfirmSignUp(ctx context.Context, email, code string) error {
	return i.client.do(ctx, http.MethodPost, "/auth/confirm", "", confirmRequest{Email: email, Code: code}, nil)
}

// SignOut revokes the token on the server. The local token is dropped either way.
func (i *Identity) SignOut(ctx context.Context) error {
	i.mu.Lock()
	token := i.token
	i.token = ""
	i.expires = time.Time{}
	i.mu.Unlock()

	if token == "" {
		return nil
	}

	return i.client.do(ctx, http.MethodPost, "/auth/signout", token, nil, nil)
}

// GetCurrentUser asks the API who the token belongs to.
func (i *Identity) GetCurrentUser(ctx context.Context) (session.CurrentUser, error) {
	sess, err := i.FetchAuthSession(ctx)
	if err != nil {
		return session.CurrentUser{}, err
	}

	var me meResponse
	if err := i.client.do(ctx, http.MethodGet, "/auth/me", sess.AccessToken, nil, &me); err != nil {
		return session.CurrentUser{}, err
	}

	return session.CurrentUser{UserID: me.UserID, LoginID: me.Email}, nil
}

// FetchAuthSession returns the current token, or session.ErrNoSession when there is
// none or it has expired.
func (i *Identity) FetchAuthSession(_ context.Context) (session.AuthSession, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.token == "" || !i.clock().Before(i.expires) {
		return session.AuthSession{}, session.ErrNoSession
	}

	return session.AuthSession{AccessToken: i.token, ExpiresAt: i.expires}, nil
}
