package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/csvvault/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, name, uid, provider, admin, created_at`

// UserRepository stores users keyed by email.
type UserRepository struct {
	db DB
}

var _ core.UserRepository = (*UserRepository)(nil)

// NewUserRepository returns a repository backed by db.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertFromIdentity creates the user on first login and refreshes the
// profile on later ones. The admin flag is only ever raised.
func (r *UserRepository) UpsertFromIdentity(ctx context.Context, id core.Identity, admin bool) (core.User, error) {
	if id.Email == "" {
		return core.User{}, errors.New("identity has no email")
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO users (id, email, name, uid, provider, admin)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO UPDATE SET
			name       = EXCLUDED.name,
			uid        = EXCLUDED.uid,
			provider   = EXCLUDED.provider,
			admin      = users.admin OR EXCLUDED.admin,
			updated_at = now()
		RETURNING `+userColumns,
		uuid.New(), id.Email, id.Name, id.UID, id.Provider, admin,
	)

	user, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return user, nil
}

// FindByID returns core.ErrNotFound when no user has id.
func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (core.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.User{}, core.ErrNotFound
		}
		return core.User{}, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.UID, &u.Provider, &u.Admin, &u.CreatedAt)
	return u, err
}
