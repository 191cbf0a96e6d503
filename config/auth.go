package config

import (
	"fmt"
	"strings"
)

// AuthMode represents the credential verification backend.
type AuthMode string

const (
	// AuthModeStatic verifies credentials against a fixed user list from
	// the environment (for development and small installs).
	AuthModeStatic AuthMode = "static"
	// AuthModePostgres verifies credentials against the users table.
	AuthModePostgres AuthMode = "postgres"
	// AuthModeOIDC verifies credentials against an OpenID Connect provider
	// via the resource-owner password grant.
	AuthModeOIDC AuthMode = "oidc"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "static", "postgres", "oidc":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: static, postgres, oidc)", v)
	}
}

// StaticUser is one entry parsed from STATIC_AUTH_USERS.
type StaticUser struct {
	Email    string
	Password string
	Role     string
	Name     string
}

// StaticAuthConfig holds the fixed user list for AUTH_MODE=static.
// Users are declared as "email:password:role[:name]" entries separated
// by semicolons.
type StaticAuthConfig struct {
	Users []string `env:"USERS" envSeparator:";"`
}

// ParseUsers splits the raw user entries into StaticUser records. The role
// field is not validated here; the credential source owns that.
func (s *StaticAuthConfig) ParseUsers() ([]StaticUser, error) {
	users := make([]StaticUser, 0, len(s.Users))
	for _, raw := range s.Users {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.SplitN(raw, ":", 4)
		if len(parts) < 3 {
			return nil, fmt.Errorf("invalid static user entry %q (want email:password:role[:name])", raw)
		}
		u := StaticUser{
			Email:    strings.TrimSpace(parts[0]),
			Password: parts[1],
			Role:     strings.TrimSpace(parts[2]),
		}
		if len(parts) == 4 {
			u.Name = strings.TrimSpace(parts[3])
		}
		users = append(users, u)
	}
	return users, nil
}

// OIDCConfig contains OpenID Connect configuration for AUTH_MODE=oidc.
type OIDCConfig struct {
	IssuerURL    string `env:"ISSUER_URL"`
	ClientID     string `env:"CLIENT_ID"     envDefault:"sessiond"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`

	// RoleExpression is a JMESPath expression evaluated against the ID
	// token claims to extract the application role.
	RoleExpression string `env:"ROLE_EXPRESSION" envDefault:"role"`

	// NameExpression and AvatarExpression are optional JMESPath expressions
	// for display name and avatar URL claims.
	NameExpression   string `env:"NAME_EXPRESSION"   envDefault:"name"`
	AvatarExpression string `env:"AVATAR_EXPRESSION" envDefault:""`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which credential source to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"static"`

	// Static configuration (used when Mode=static).
	Static StaticAuthConfig `envPrefix:"STATIC_AUTH_"`

	// OIDC configuration (used when Mode=oidc).
	OIDC OIDCConfig `envPrefix:"OIDC_"`
}
