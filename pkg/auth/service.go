// Package auth is the identity service: accounts with confirmation codes, password
// sign in, and revocable bearer tokens.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matt-steen/task-dashboard/pkg/db"
	"github.com/rs/zerolog/log"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("incorrect email or password")
	// ErrNotConfirmed is returned when signing in before confirming the account.
	ErrNotConfirmed = errors.New("user is not confirmed")
	// ErrInvalidCode is returned for a wrong confirmation code.
	ErrInvalidCode = errors.New("invalid confirmation code")
	// ErrEmailTaken is returned when signing up with a registered email.
	ErrEmailTaken = errors.New("an account with this email already exists")
	// ErrInvalidSignUp is returned for a malformed email or a short password.
	ErrInvalidSignUp = errors.New("invalid sign up request")
	// ErrRevokedToken is returned for tokens that were signed out.
	ErrRevokedToken = errors.New("token has been revoked")
)

// Users is the account storage the service needs.
type Users interface {
	CreateUser(ctx context.Context, user db.User) error
	UserByEmail(ctx context.Context, email string) (db.User, error)
	ConfirmUser(ctx context.Context, id string) error
	RevokeToken(ctx context.Context, tokenID string, expires time.Time) error
	TokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Config configures the identity service.
type Config struct {
	Token       TokenConfig
	BcryptCost  int
	AutoConfirm bool
}

// SignUpResult describes a new account.
type SignUpResult struct {
	UserID    string
	Confirmed bool
	// Code is the confirmation code to deliver to the user; empty when confirmed.
	Code string
}

// Token is an issued access token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
	UserID      string
}

// Service implements sign up, confirmation, sign in and sign out.
type Service struct {
	users       Users
	tokens      *TokenManager
	hasher      *PasswordHasher
	autoConfirm bool
	clock       func() time.Time
}

// NewService creates the identity service.
func NewService(users Users, config Config) *Service {
	return &Service{
		users:       users,
		tokens:      NewTokenManager(config.Token),
		hasher:      NewPasswordHasher(config.BcryptCost),
		autoConfirm: config.AutoConfirm,
		clock:       time.Now,
	}
}

// SignUp registers an account. Unless auto-confirm is on, the account needs the
// returned code before it can sign in.
func (s *Service) SignUp(ctx context.Context, email, password string) (SignUpResult, error) {
	email = normalizeEmail(email)

	if _, err := mail.ParseAddress(email); err != nil {
		return SignUpResult{}, fmt.Errorf("%w: %q is not a valid email", ErrInvalidSignUp, email)
	}

	if len(password) < MinPasswordLength {
		return SignUpResult{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidSignUp, MinPasswordLength)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return SignUpResult{}, fmt.Errorf("error hashing password: %w", err)
	}

	user := db.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Confirmed:    s.autoConfirm,
		CreatedAt:    s.clock(),
	}

	if !s.autoConfirm {
		if user.ConfirmationCode, err = newConfirmationCode(); err != nil {
			return SignUpResult{}, err
		}
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return SignUpResult{}, ErrEmailTaken
		}

		return SignUpResult{}, err
	}

	log.Info().Str("user", user.ID).Bool("confirmed", user.Confirmed).Msg("user signed up")

	return SignUpResult{UserID: user.ID, Confirmed: user.Confirmed, Code: user.ConfirmationCode}, nil
}

// ConfirmSignUp confirms an account with its code. Confirming twice is fine.
func (s *Service) ConfirmSignUp(ctx context.Context, email, code string) error {
	user, err := s.users.UserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, db.ErrNotFound) {
		return ErrInvalidCode
	}

	if err != nil {
		return err
	}

	if user.Confirmed {
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(user.ConfirmationCode), []byte(strings.TrimSpace(code))) != 1 {
		return ErrInvalidCode
	}

	return s.users.ConfirmUser(ctx, user.ID)
}

// SignIn checks the password and issues an access token.
func (s *Service) SignIn(ctx context.Context, email, password string) (Token, error) {
	user, err := s.users.UserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, db.ErrNotFound) {
		return Token{}, ErrInvalidCredentials
	}

	if err != nil {
		return Token{}, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return Token{}, ErrInvalidCredentials
	}

	if !user.Confirmed {
		return Token{}, ErrNotConfirmed
	}

	accessToken, expires, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return Token{}, fmt.Errorf("error issuing token: %w", err)
	}

	log.Debug().Str("user", user.ID).Msg("user signed in")

	return Token{AccessToken: accessToken, ExpiresAt: expires, UserID: user.ID}, nil
}

// SignOut revokes the token the claims came from.
func (s *Service) SignOut(ctx context.Context, claims *Claims) error {
	expires := s.clock()
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}

	return s.users.RevokeToken(ctx, claims.ID, expires)
}

// Authenticate validates a bearer token and checks that it wasn't revoked.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.users.TokenRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}

	if revoked {
		return nil, ErrRevokedToken
	}

	return claims, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newConfirmationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("error generating confirmation code: %w", err)
	}

	return fmt.Sprintf("%06d", n.Int64()), nil
}
