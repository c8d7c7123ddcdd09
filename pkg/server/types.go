package server

import "time"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CredentialsRequest is the body of sign up and sign in.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ConfirmRequest is the body of /auth/confirm.
type ConfirmRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// SignUpResponse is returned by /auth/signup.
type SignUpResponse struct {
	UserID    string `json:"user_id"`
	Confirmed bool   `json:"confirmed"`
}

// TokenResponse is returned by /auth/signin.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	UserID      string `json:"user_id"`
}

// MeResponse is returned by /auth/me.
type MeResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
