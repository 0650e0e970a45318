// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for failed login attempts. One error
// for both the username and password paths; the response never says
// which part was wrong.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// CredentialChecker validates login attempts against the configured admin
// identity. Single-admin by design: the typical deployment is one
// person's media server, not a multi-tenant service.
//
// The configured password may be a bcrypt hash (recognized by its prefix)
// or plain text. Plain text is hashed once at construction so every
// verification goes through bcrypt's timing-safe comparison.
type CredentialChecker struct {
	username     string
	passwordHash []byte
}

// NewCredentialChecker creates a checker for the admin credentials.
func NewCredentialChecker(username, password string) (*CredentialChecker, error) {
	if username == "" {
		return nil, fmt.Errorf("admin username is required")
	}
	if password == "" {
		return nil, fmt.Errorf("admin password is required")
	}

	if isBcryptHash(password) {
		return &CredentialChecker{username: username, passwordHash: []byte(password)}, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return &CredentialChecker{username: username, passwordHash: hash}, nil
}

// Verify checks a login attempt in constant time. Both comparisons run
// regardless of the username result so response timing leaks nothing.
func (c *CredentialChecker) Verify(username, password string) error {
	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	passwordMatch := bcrypt.CompareHashAndPassword(c.passwordHash, []byte(password)) == nil

	if !usernameMatch || !passwordMatch {
		return ErrInvalidCredentials
	}
	return nil
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
