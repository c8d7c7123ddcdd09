// Package session owns the current authenticated identity and tells dependents when it
// changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matt-steen/task-dashboard/pkg/model"
	"github.com/rs/zerolog/log"
)

var (
	// ErrAuthenticationFailed is wrapped by every failed login.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrSignUpFailed is wrapped by failed sign up and confirmation attempts.
	ErrSignUpFailed = errors.New("sign up failed")
	// ErrSignOutFailed is returned when the remote sign out failed; local state is
	// cleared regardless.
	ErrSignOutFailed = errors.New("sign out failed")
	// ErrNoSession is returned by identity collaborators when nobody is signed in.
	ErrNoSession = errors.New("no active session")
)

// Credentials identify a user to the identity collaborator.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CurrentUser is what the identity collaborator knows about the signed in user.
type CurrentUser struct {
	UserID  string
	LoginID string
}

// AuthSession carries the bearer credential for the signed in user.
type AuthSession struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Identity is the managed identity service.
type Identity interface {
	SignIn(ctx context.Context, creds Credentials) error
	SignUp(ctx context.Context, creds Credentials) error
	ConfirmSignUp(ctx context.Context, email, code string) error
	SignOut(ctx context.Context) error
	GetCurrentUser(ctx context.Context) (CurrentUser, error)
	FetchAuthSession(ctx context.Context) (AuthSession, error)
}

// State is either Authenticated(user) or Unauthenticated.
type State struct {
	user *model.User
}

// Authenticated returns the state for a signed in user.
func Authenticated(user model.User) State {
	return State{user: &user}
}

// Unauthenticated returns the state for nobody signed in.
func Unauthenticated() State {
	return State{}
}

// User returns the signed in user, if any.
func (s State) User() (model.User, bool) {
	if s.user == nil {
		return model.User{}, false
	}

	return *s.user, true
}

// UserID returns the signed in user's id, or "" if nobody is signed in.
func (s State) UserID() string {
	if s.user == nil {
		return ""
	}

	return s.user.ID
}

// IsAuthenticated reports whether a user is signed in.
func (s State) IsAuthenticated() bool {
	return s.user != nil
}

// Holder maintains exactly one State at a time.
type Holder struct {
	identity Identity
	clock    func() time.Time

	mu           sync.Mutex
	state        State
	initializing bool
	listeners    map[int]func(State)
	nextListener int
}

// NewHolder creates a Holder in the initializing, unauthenticated state.
func NewHolder(identity Identity) *Holder {
	return &Holder{
		identity:     identity,
		clock:        time.Now,
		initializing: true,
		listeners:    map[int]func(State){},
	}
}

// WithClock replaces the clock used to stamp derived users.
func (h *Holder) WithClock(clock func() time.Time) *Holder {
	h.clock = clock

	return h
}

// Initialize asks the identity collaborator for an existing session. A missing or
// broken session is a normal outcome and leaves the holder unauthenticated.
func (h *Holder) Initialize(ctx context.Context) {
	user, err := h.resolveUser(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("no existing session")
		h.set(Unauthenticated(), false)

		return
	}

	log.Info().Str("user", user.ID).Msg("restored session")
	h.set(Authenticated(user), false)
}

// Login signs in and derives the user record.
func (h *Holder) Login(ctx context.Context, creds Credentials) error {
	if err := h.identity.SignIn(ctx, creds); err != nil {
		return fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	user, err := h.resolveUser(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	log.Info().Str("user", user.ID).Msg("logged in")
	h.set(Authenticated(user), false)

	return nil
}

// SignUp registers a new account. The account has to be confirmed before Login.
func (h *Holder) SignUp(ctx context.Context, creds Credentials) error {
	if err := h.identity.SignUp(ctx, creds); err != nil {
		return fmt.Errorf("%w: %w", ErrSignUpFailed, err)
	}

	return nil
}

// ConfirmSignUp confirms a registered account with the code it was sent.
func (h *Holder) ConfirmSignUp(ctx context.Context, email, code string) error {
	if err := h.identity.ConfirmSignUp(ctx, email, code); err != nil {
		return fmt.Errorf("%w: %w", ErrSignUpFailed, err)
	}

	return nil
}

// Logout signs out remotely and always clears the local user.
func (h *Holder) Logout(ctx context.Context) error {
	err := h.identity.SignOut(ctx)

	h.set(Unauthenticated(), false)

	if err != nil {
		log.Warn().Err(err).Msg("remote sign out failed; local session cleared")

		return fmt.Errorf("%w: %w", ErrSignOutFailed, err)
	}

	log.Info().Msg("logged out")

	return nil
}

// Token returns the bearer credential for the current session.
func (h *Holder) Token(ctx context.Context) (string, error) {
	if !h.Current().IsAuthenticated() {
		return "", ErrNoSession
	}

	sess, err := h.identity.FetchAuthSession(ctx)
	if err != nil {
		return "", err
	}

	return sess.AccessToken, nil
}

// Current returns the current state.
func (h *Holder) Current() State {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.state
}

// Initializing reports whether Initialize has not finished yet, so callers can tell
// "not logged in" from "not checked yet".
func (h *Holder) Initializing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.initializing
}

// Subscribe registers fn to be called whenever the signed in user changes. The
// returned func removes the subscription.
func (h *Holder) Subscribe(fn func(State)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextListener
	h.nextListener++
	h.listeners[id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		delete(h.listeners, id)
	}
}

func (h *Holder) resolveUser(ctx context.Context) (model.User, error) {
	current, err := h.identity.GetCurrentUser(ctx)
	if err != nil {
		return model.User{}, err
	}

	if _, err := h.identity.FetchAuthSession(ctx); err != nil {
		return model.User{}, err
	}

	return model.NewUser(current.UserID, current.LoginID, h.clock()), nil
}

// set stores the new state and notifies listeners, outside the lock, when the user
// identity changed.
func (h *Holder) set(state State, initializing bool) {
	h.mu.Lock()
	changed := h.state.UserID() != state.UserID()
	h.state = state
	h.initializing = initializing

	var listeners []func(State)

	if changed {
		for _, fn := range h.listeners {
			listeners = append(listeners, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}
