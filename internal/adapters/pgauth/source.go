package pgauth

// Package pgauth verifies credentials against the users table in Postgres.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/gestia/sessiond/internal/domain/auth"
	"github.com/gestia/sessiond/internal/ports"
)

var _ ports.CredentialSource = (*Source)(nil)

// Source verifies credentials against the users table.
type Source struct {
	pool *pgxpool.Pool
}

// NewSource creates a Postgres credential source.
func NewSource(pool *pgxpool.Pool) (*Source, error) {
	if pool == nil {
		return nil, errors.New("pgauth: connection pool is required")
	}
	return &Source{pool: pool}, nil
}

// Verify implements ports.CredentialSource. Unknown users, disabled users,
// and wrong passwords are all the same negative outcome; callers cannot
// distinguish them.
func (s *Source) Verify(ctx context.Context, email, password string) (domainauth.Principal, bool, error) {
	const query = `
		SELECT id, email, name, password_hash, role, avatar_url, disabled
		FROM users
		WHERE lower(email) = lower($1)`

	var (
		principal domainauth.Principal
		hash      string
		disabled  bool
	)
	row := s.pool.QueryRow(ctx, query, strings.TrimSpace(email))
	err := row.Scan(&principal.ID, &principal.Email, &principal.Name, &hash,
		&principal.Role, &principal.AvatarURL, &disabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Burn comparable time so unknown emails are not distinguishable
			// from wrong passwords by response latency.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return domainauth.Principal{}, false, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgerrcode.IsInvalidCatalogName(pgErr.Code) {
			return domainauth.Principal{}, false, fmt.Errorf("users database missing: %w", err)
		}
		return domainauth.Principal{}, false, fmt.Errorf("query user: %w", err)
	}

	if disabled {
		return domainauth.Principal{}, false, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return domainauth.Principal{}, false, nil
	}

	return principal, true, nil
}

// CreateUserParams groups inputs for CreateUser.
type CreateUserParams struct {
	Email     string
	Name      string
	Password  string
	Role      domainauth.Role
	AvatarURL string
}

// ErrEmailTaken is returned by CreateUser when the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// CreateUser inserts a user with a bcrypt-hashed password. Used by the dev
// seed path and operator tooling.
func (s *Source) CreateUser(ctx context.Context, p CreateUserParams) (domainauth.Principal, error) {
	if p.Email == "" {
		return domainauth.Principal{}, errors.New("email is required")
	}
	if p.Password == "" {
		return domainauth.Principal{}, errors.New("password is required")
	}
	if !p.Role.Valid() {
		return domainauth.Principal{}, fmt.Errorf("invalid role %q", p.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return domainauth.Principal{}, fmt.Errorf("hash password: %w", err)
	}

	const query = `
		INSERT INTO users (email, name, password_hash, role, avatar_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	var id string
	err = s.pool.QueryRow(ctx, query, p.Email, p.Name, string(hash), p.Role, p.AvatarURL).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domainauth.Principal{}, ErrEmailTaken
		}
		return domainauth.Principal{}, fmt.Errorf("insert user: %w", err)
	}

	return domainauth.Principal{
		ID:        id,
		Email:     p.Email,
		Name:      p.Name,
		Role:      p.Role,
		AvatarURL: p.AvatarURL,
	}, nil
}

// dummyHash is a bcrypt hash of an unguessable constant, used only for
// constant-time behavior on unknown emails.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte(fmt.Sprintf("dummy-%d", time.Now().UnixNano())), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return h
}()
