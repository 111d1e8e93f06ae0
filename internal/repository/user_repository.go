package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/iot-persistence/internal/model"
)

// UserPoolInterface defines the database operations needed by UserRepository.
type UserPoolInterface interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UserRepository provides data access for user account records using pgx.
type UserRepository struct {
	pool UserPoolInterface
}

// NewUserRepository creates a new UserRepository with the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// NewUserRepositoryWithPool creates a new UserRepository with a custom
// pool interface. This is primarily used for testing.
func NewUserRepositoryWithPool(pool UserPoolInterface) *UserRepository {
	return &UserRepository{pool: pool}
}

// Save upserts the given users by email inside one explicit transaction,
// committed once after the whole batch. The profile payload is stored
// as-is; this layer does not inspect it.
func (r *UserRepository) Save(ctx context.Context, users []*model.User) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	query := `INSERT INTO users (email, app_name, region, last_modified, profile)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (email) DO UPDATE SET
	            app_name = EXCLUDED.app_name,
	            region = EXCLUDED.region,
	            last_modified = EXCLUDED.last_modified,
	            profile = EXCLUDED.profile`

	for _, user := range users {
		_, err := tx.Exec(ctx, query,
			user.Email, user.AppName, user.Region, user.LastModified, user.Profile)
		if err != nil {
			return fmt.Errorf("save user %s: %w", user.Email, err)
		}
	}

	return tx.Commit(ctx)
}
