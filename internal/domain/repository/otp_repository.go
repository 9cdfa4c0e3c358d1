package repository

import (
	"context"
	"errors"
	"time"
)

var (
	ErrOTPNotFound         = errors.New("otp not found or expired")
	ErrOTPMismatch         = errors.New("otp does not match")
	ErrOTPAttemptsExceeded = errors.New("otp attempts exceeded")
)

// OTPRepository keeps one pending password reset code per email, with expiry.
type OTPRepository interface {
	// Save replaces any pending code for email.
	Save(ctx context.Context, email, codeHash string) error
	// Verify consumes the pending code when match accepts its stored hash.
	// A mismatch counts as an attempt; too many attempts discard the code.
	Verify(ctx context.Context, email string, match func(codeHash string) bool) error
	// ConsumeToken marks a single-use token id as used. It returns false
	// when the id was already used.
	ConsumeToken(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
}
