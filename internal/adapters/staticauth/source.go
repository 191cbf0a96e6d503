package staticauth

// Package staticauth provides a fixed, config-driven credential source for
// local development and tests. It is the stand-in for the identity service a
// production deployment would use.

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/gestia/sessiond/internal/domain/auth"
	"github.com/gestia/sessiond/internal/ports"
)

var _ ports.CredentialSource = (*Source)(nil)

// User is one entry in the static credential list. Password and PasswordHash
// are mutually exclusive; PasswordHash (bcrypt) wins when both are set.
type User struct {
	ID           string
	Name         string
	Email        string
	Password     string
	PasswordHash string
	Role         domainauth.Role
	AvatarURL    string
}

// Source verifies credentials against a fixed user list.
type Source struct {
	users map[string]User // keyed by lowercased email
}

// NewSource constructs a static credential source from the given users.
func NewSource(users []User) (*Source, error) {
	if len(users) == 0 {
		return nil, errors.New("static auth: at least one user is required")
	}

	byEmail := make(map[string]User, len(users))
	for i, u := range users {
		if u.Email == "" {
			return nil, fmt.Errorf("static auth: user %d: email is required", i)
		}
		if u.Password == "" && u.PasswordHash == "" {
			return nil, fmt.Errorf("static auth: user %q: password or password hash is required", u.Email)
		}
		if !u.Role.Valid() {
			return nil, fmt.Errorf("static auth: user %q: invalid role %q", u.Email, u.Role)
		}
		key := strings.ToLower(u.Email)
		if _, dup := byEmail[key]; dup {
			return nil, fmt.Errorf("static auth: duplicate user %q", u.Email)
		}
		if u.ID == "" {
			u.ID = key
		}
		byEmail[key] = u
	}

	return &Source{users: byEmail}, nil
}

// Verify implements ports.CredentialSource. A mismatch is (zero, false, nil).
func (s *Source) Verify(_ context.Context, email, password string) (domainauth.Principal, bool, error) {
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return domainauth.Principal{}, false, nil
	}

	if !u.matches(password) {
		return domainauth.Principal{}, false, nil
	}

	return domainauth.Principal{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		AvatarURL: u.AvatarURL,
	}, true, nil
}

func (u User) matches(password string) bool {
	if u.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) == 1
}
