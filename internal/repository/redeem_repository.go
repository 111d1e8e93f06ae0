package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/iot-persistence/internal/model"
)

// RedeemPoolInterface defines the database operations needed by RedeemRepository.
// This allows for easier testing with mocks.
type RedeemPoolInterface interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RedeemRepository provides data access for redeem tokens using pgx.
type RedeemRepository struct {
	pool RedeemPoolInterface
}

// NewRedeemRepository creates a new RedeemRepository with the given pool.
func NewRedeemRepository(pool *pgxpool.Pool) *RedeemRepository {
	return &RedeemRepository{pool: pool}
}

// NewRedeemRepositoryWithPool creates a new RedeemRepository with a custom
// pool interface. This is primarily used for testing.
func NewRedeemRepositoryWithPool(pool RedeemPoolInterface) *RedeemRepository {
	return &RedeemRepository{pool: pool}
}

// GetByToken retrieves a redeem token by its value.
// Returns nil, nil if the token is not found (caller handles absence).
func (r *RedeemRepository) GetByToken(ctx context.Context, token string) (*model.Redeem, error) {
	query := `SELECT token, company, is_redeemed, username, reward, version
	          FROM redeem_tokens WHERE token = $1`

	var redeem model.Redeem
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&redeem.Token,
		&redeem.Company,
		&redeem.Redeemed,
		&redeem.Username,
		&redeem.Reward,
		&redeem.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found - absent result, not an error
		}
		return nil, fmt.Errorf("get redeem by token: %w", err)
	}
	return &redeem, nil
}

// Redeem atomically marks a token redeemed for username, but only if it
// is not already redeemed. The conditional UPDATE is the compare-and-swap:
// under concurrent attempts on the same token the affected-row count lets
// exactly one caller win. Returns whether this caller won.
func (r *RedeemRepository) Redeem(ctx context.Context, username, token string) (bool, error) {
	query := `UPDATE redeem_tokens
	          SET username = $1, is_redeemed = true, version = version + 1
	          WHERE token = $2 AND is_redeemed = false`

	tag, err := r.pool.Exec(ctx, query, username, token)
	if err != nil {
		return false, fmt.Errorf("update redeem %s: %w", token, err)
	}
	return tag.RowsAffected() == 1, nil
}

// InsertBatch bulk-creates new unredeemed tokens inside one explicit
// transaction, committed once after the whole batch.
// Returns ErrTokenExists if any token value collides with an existing one.
func (r *RedeemRepository) InsertBatch(ctx context.Context, redeems []*model.Redeem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	query := `INSERT INTO redeem_tokens (token, company, is_redeemed, username, reward, version)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	for _, redeem := range redeems {
		_, err := tx.Exec(ctx, query,
			redeem.Token, redeem.Company, redeem.Redeemed, redeem.Username, redeem.Reward, redeem.Version)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrTokenExists
			}
			return fmt.Errorf("insert redeem %s: %w", redeem.Token, err)
		}
	}

	return tx.Commit(ctx)
}
