// Package devseed populates a development database with a usable set of
// accounts so a fresh checkout can log in immediately. It only runs in dev
// mode and never touches a non-empty users table.
package devseed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gestia/sessiond/internal/adapters/pgauth"
	domainauth "github.com/gestia/sessiond/internal/domain/auth"
)

// seedUsers is the fixed development roster, one account per role.
var seedUsers = []pgauth.CreateUserParams{
	{Email: "admin@dev.local", Name: "Dev Admin", Password: "admin", Role: domainauth.RoleAdmin},
	{Email: "manager@dev.local", Name: "Dev Manager", Password: "manager", Role: domainauth.RoleManager},
	{Email: "sales@dev.local", Name: "Dev Salesperson", Password: "sales", Role: domainauth.RoleSalesperson},
}

// Run seeds the development accounts. It is idempotent: an already-populated
// users table is left untouched.
func Run(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		logger.InfoContext(ctx, "dev seed skipped", "existing_users", count)
		return nil
	}

	source, err := pgauth.NewSource(pool)
	if err != nil {
		return err
	}

	for _, u := range seedUsers {
		if _, err := source.CreateUser(ctx, u); err != nil {
			// Another instance may be seeding concurrently.
			if errors.Is(err, pgauth.ErrEmailTaken) {
				continue
			}
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		}
		logger.InfoContext(ctx, "dev user seeded", "email", u.Email, "role", u.Role)
	}
	return nil
}
