package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/iot-persistence/internal/model"
)

// Retention windows for the rolling reporting tables. Daily aggregates
// are kept indefinitely.
const (
	minuteRetention = 360 * time.Minute
	hourlyRetention = 180 * time.Hour
)

// ReportingPoolInterface defines the database operations needed by ReportingRepository.
type ReportingPoolInterface interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ReportingRepository provides data access for time-series reporting
// aggregates using pgx.
type ReportingRepository struct {
	pool ReportingPoolInterface
}

// NewReportingRepository creates a new ReportingRepository with the given pool.
func NewReportingRepository(pool *pgxpool.Pool) *ReportingRepository {
	return &ReportingRepository{pool: pool}
}

// NewReportingRepositoryWithPool creates a new ReportingRepository with a
// custom pool interface. This is primarily used for testing.
func NewReportingRepositoryWithPool(pool ReportingPoolInterface) *ReportingRepository {
	return &ReportingRepository{pool: pool}
}

// InsertBatch writes one flush of accumulated averages into the table
// for the given granularity, inside one explicit transaction committed
// after the whole batch.
func (r *ReportingRepository) InsertBatch(ctx context.Context, batch model.ReportingBatch, granularity model.Granularity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	// Table name comes from the Granularity enum, never from input.
	query := fmt.Sprintf(
		`INSERT INTO %s (username, device_id, pin, pin_type, ts, value) VALUES ($1, $2, $3, $4, $5, $6)`,
		granularity.Table())

	for key, value := range batch {
		_, err := tx.Exec(ctx, query,
			key.Username, key.DeviceID, key.Pin, key.PinType, key.Ts, value.Average())
		if err != nil {
			return fmt.Errorf("insert %s aggregate: %w", granularity, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reporting batch: %w", err)
	}

	log.Debug().
		Int("rows", len(batch)).
		Str("granularity", granularity.String()).
		Msg("reporting batch stored")
	return nil
}

// DeleteBefore purges minute and hourly aggregates that have aged out of
// their retention windows relative to now. Daily aggregates are kept.
func (r *ReportingRepository) DeleteBefore(ctx context.Context, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	purges := []struct {
		granularity model.Granularity
		cutoff      time.Time
	}{
		{model.Minute, now.Add(-minuteRetention)},
		{model.Hourly, now.Add(-hourlyRetention)},
	}

	for _, p := range purges {
		query := fmt.Sprintf(`DELETE FROM %s WHERE ts < $1`, p.granularity.Table())
		tag, err := tx.Exec(ctx, query, p.cutoff.UnixMilli())
		if err != nil {
			return fmt.Errorf("purge %s aggregates: %w", p.granularity, err)
		}
		log.Debug().
			Int64("rows", tag.RowsAffected()).
			Str("granularity", p.granularity.String()).
			Msg("old reporting records purged")
	}

	return tx.Commit(ctx)
}
