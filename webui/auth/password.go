// Package auth provides user accounts for the HTTP API: bcrypt password
// hashing, HS256 bearer tokens, the register/login/me handlers and the
// middleware that attaches the caller's identity to the request context.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Password hashing configuration constants
const (
	// DefaultCost is the bcrypt cost factor for new password hashes.
	// At cost 12, hashing takes ~250ms on modern hardware.
	DefaultCost = 12

	// MinCost is the lowest cost ValidateHashStrength accepts for stored hashes.
	MinCost = 10

	// MinPasswordLength is the shortest password Register accepts.
	MinPasswordLength = 6
)

var (
	// ErrEmptyPassword is returned when attempting to hash an empty password.
	ErrEmptyPassword = errors.New("password cannot be empty")

	// ErrPasswordMismatch is returned when password verification fails.
	// It does not reveal whether the hash itself was valid.
	ErrPasswordMismatch = errors.New("password does not match")

	// ErrInvalidHash is returned when the hash format is invalid.
	ErrInvalidHash = errors.New("invalid password hash format")

	// ErrCostTooLow is returned when the hash cost is below MinCost.
	ErrCostTooLow = errors.New("hash cost is below minimum acceptable value")
)

// HashPassword creates a bcrypt hash of password at DefaultCost.
// The salt and cost are embedded in the 60-byte result, so it can be stored
// as-is.
func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, DefaultCost)
}

// HashPasswordWithCost creates a bcrypt hash with a specific cost factor.
// bcrypt rejects costs outside [bcrypt.MinCost, bcrypt.MaxCost].
func HashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// VerifyPassword compares a plaintext password with a bcrypt hash in
// constant time. Any failure is reported as ErrPasswordMismatch.
func VerifyPassword(password, hash string) error {
	if password == "" {
		return ErrEmptyPassword
	}

	if hash == "" {
		return ErrInvalidHash
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		// Don't expose internal bcrypt errors
		return ErrPasswordMismatch
	}

	return nil
}

// NeedsRehash reports whether hash was created below targetCost. Invalid
// hashes always need rehashing.
func NeedsRehash(hash string, targetCost int) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}

	return cost < targetCost
}

// ValidateHashStrength checks if a stored hash meets MinCost.
func ValidateHashStrength(hash string) error {
	if hash == "" {
		return ErrInvalidHash
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return ErrInvalidHash
	}

	if cost < MinCost {
		return ErrCostTooLow
	}

	return nil
}
