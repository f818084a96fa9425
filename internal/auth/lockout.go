package auth

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	MaxFailedLoginAttempts = 10
	AccountLockoutDuration = 15 * time.Minute
)

const lockTimeLayout = "2006-01-02 15:04:05"

// IncrementFailedLoginAttempts counts a failed login and locks the account
// once MaxFailedLoginAttempts is reached.
func IncrementFailedLoginAttempts(ctx context.Context, db *sqlx.DB, email string) error {
	lockUntil := time.Now().UTC().Add(AccountLockoutDuration).Format(lockTimeLayout)
	_, err := db.ExecContext(ctx, `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE
		        WHEN failed_login_attempts + 1 >= ? THEN ?
		        ELSE locked_until
		    END
		WHERE email = ?`, MaxFailedLoginAttempts, lockUntil, email)
	return err
}

// ResetFailedLoginAttempts resets the failed login counter after successful login.
func ResetFailedLoginAttempts(ctx context.Context, db *sqlx.DB, email string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL
		WHERE email = ?`, email)
	return err
}

// IsAccountLocked checks if an account is currently locked. An expired lock
// is cleared.
func IsAccountLocked(ctx context.Context, db *sqlx.DB, email string) (bool, error) {
	var lockedUntil *string
	err := db.GetContext(ctx, &lockedUntil, "SELECT locked_until FROM users WHERE email = ?", email)
	if err != nil {
		return false, err
	}
	if lockedUntil == nil || *lockedUntil == "" {
		return false, nil
	}

	lockTime, err := time.Parse(lockTimeLayout, *lockedUntil)
	if err != nil {
		return false, nil
	}
	if time.Now().UTC().Before(lockTime) {
		return true, nil
	}
	return false, ResetFailedLoginAttempts(ctx, db, email)
}
