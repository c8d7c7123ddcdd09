package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// User is an account row. The password is stored as a bcrypt hash.
type User struct {
	ID               string
	Email            string
	PasswordHash     string
	Confirmed        bool
	ConfirmationCode string
	CreatedAt        time.Time
}

// CreateUser stores a new account. The email must be unique.
func (d *Database) CreateUser(ctx context.Context, user User) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO app_user (id, email, password_hash, confirmed, confirmation_code, created_datetime)
		     VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, user.PasswordHash, user.Confirmed, user.ConfirmationCode, formatTime(user.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", user.Email, ErrDuplicate)
	}

	if err != nil {
		return fmt.Errorf("error adding user %s: %w", user.Email, err)
	}

	return nil
}

// UserByEmail loads the account registered with email.
func (d *Database) UserByEmail(ctx context.Context, email string) (User, error) {
	return d.queryUser(ctx, `email = $1`, email)
}

// UserByID loads the account with the given id.
func (d *Database) UserByID(ctx context.Context, id string) (User, error) {
	return d.queryUser(ctx, `id = $1`, id)
}

func (d *Database) queryUser(ctx context.Context, where string, arg string) (User, error) {
	var (
		user    User
		created string
	)

	row := d.conn.QueryRowContext(ctx,
		`SELECT id, email, password_hash, confirmed, confirmation_code, created_datetime
		   FROM app_user WHERE `+where, arg)

	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Confirmed, &user.ConfirmationCode, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", arg, ErrNotFound)
	}

	if err != nil {
		return User{}, fmt.Errorf("error loading user %s: %w", arg, err)
	}

	if user.CreatedAt, err = parseTime(created); err != nil {
		return User{}, err
	}

	return user, nil
}

// ConfirmUser marks the account as confirmed and clears its confirmation code.
func (d *Database) ConfirmUser(ctx context.Context, id string) error {
	result, err := d.conn.ExecContext(ctx,
		`UPDATE app_user SET confirmed = 1, confirmation_code = '' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error confirming user %s: %w", id, err)
	}

	return expectOneRow(result, "user "+id)
}

// RevokeToken records a token id as no longer valid. Revoking twice is a no-op.
func (d *Database) RevokeToken(ctx context.Context, tokenID string, expires time.Time) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_token (token_id, expires_datetime) VALUES ($1, $2)`,
		tokenID, formatTime(expires))
	if err != nil {
		return fmt.Errorf("error revoking token %s: %w", tokenID, err)
	}

	return nil
}

// TokenRevoked reports whether the token id was revoked.
func (d *Database) TokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	var count int

	err := d.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revoked_token WHERE token_id = $1`, tokenID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("error checking token %s: %w", tokenID, err)
	}

	return count > 0, nil
}

// PurgeExpiredTokens drops revocations for tokens that have expired anyway.
func (d *Database) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := d.conn.ExecContext(ctx,
		`DELETE FROM revoked_token WHERE expires_datetime < $1`, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("error purging revoked tokens: %w", err)
	}

	return result.RowsAffected()
}
