// Package config provides password configuration and hashing functionality.
package config

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptMaxBytes is the longest input bcrypt accepts.
const bcryptMaxBytes = 72

// ErrPasswordTooLong is returned when the password plus pepper exceeds what bcrypt hashes.
var ErrPasswordTooLong = errors.New("password too long")

// PasswordConfig holds configuration for password hashing and verification.
type PasswordConfig struct {
	BcryptCost int
	Pepper     string // optional global secret appended before hashing
}

// NewPasswordConfig creates a password configuration from the auth section.
// A zero cost falls back to 12.
func NewPasswordConfig(auth AuthConfig) (*PasswordConfig, error) {
	config := &PasswordConfig{
		BcryptCost: auth.BcryptCost,
		Pepper:     auth.Pepper,
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = 12
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}

	return config, nil
}

// normalize validates the configuration.
func (c *PasswordConfig) normalize() error {
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > 14 {
		return fmt.Errorf("bcrypt cost out of range: %d (must be %d-14)", c.BcryptCost, bcrypt.MinCost)
	}
	return nil
}

// MaxPasswordBytes is the longest password, in bytes, that can be hashed with the
// configured pepper.
func (c *PasswordConfig) MaxPasswordBytes() int {
	return bcryptMaxBytes - len(c.Pepper)
}

// HashPassword hashes a password using bcrypt (with optional pepper).
func (c *PasswordConfig) HashPassword(pw string) (string, error) {
	if len(pw) > c.MaxPasswordBytes() {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrPasswordTooLong, len(pw), c.MaxPasswordBytes())
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(c.pepper(pw)), c.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// VerifyPassword verifies a password against a stored hash (with optional pepper).
func (c *PasswordConfig) VerifyPassword(pw, storedHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(c.pepper(pw)))
	return err == nil
}

func (c *PasswordConfig) pepper(pw string) string {
	if c.Pepper == "" {
		return pw
	}
	return pw + c.Pepper
}
