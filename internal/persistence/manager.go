package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/iot-persistence/internal/config"
	"github.com/fairyhunter13/iot-persistence/internal/model"
	"github.com/fairyhunter13/iot-persistence/internal/repository"
	"github.com/fairyhunter13/iot-persistence/pkg/database"
)

// UserStore defines the interface for user record data access.
type UserStore interface {
	Save(ctx context.Context, users []*model.User) error
}

// ReportingStore defines the interface for reporting aggregate data access.
type ReportingStore interface {
	InsertBatch(ctx context.Context, batch model.ReportingBatch, granularity model.Granularity) error
	DeleteBefore(ctx context.Context, now time.Time) error
}

// RedeemStore defines the interface for redeem token data access.
type RedeemStore interface {
	GetByToken(ctx context.Context, token string) (*model.Redeem, error)
	Redeem(ctx context.Context, username, token string) (bool, error)
	InsertBatch(ctx context.Context, redeems []*model.Redeem) error
}

// Executor is the background execution service consumed by the manager:
// submitted work runs off the caller's goroutine and its outcome is
// never observed by the submitter.
type Executor interface {
	Submit(task func())
}

// ConnPool is the slice of pgxpool.Pool the manager uses directly.
type ConnPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Ping(ctx context.Context) error
	Close()
}

// Manager is the single point of contact for all persistence
// operations. It is constructed once, in one of two states decided at
// that moment and never revisited: disabled (no store configured, or
// the store was unreachable) or enabled (pool and helpers wired).
// All state is immutable after construction, so concurrent callers
// need no locking.
//
// Bulk telemetry writes are best-effort: they are handed to the
// executor and the caller never learns their outcome. Redeem token
// operations are request/response: their result must be confirmed
// before the caller proceeds, so they run synchronously and propagate
// failures.
type Manager struct {
	enabled   bool
	pool      ConnPool
	exec      Executor
	opTimeout time.Duration

	users     UserStore
	reporting ReportingStore
	redeems   RedeemStore

	closeOnce sync.Once
}

// New constructs the manager from optional store properties. A nil
// props (missing or empty properties file) or a pool that cannot be
// opened both yield a disabled manager: the host system keeps running
// with persistence silently off. Neither case is an error.
func New(ctx context.Context, props *config.StoreProperties, exec Executor) *Manager {
	if props == nil {
		log.Warn().Msg("no store properties found, persistence disabled")
		return &Manager{exec: exec}
	}

	log.Info().Str("url", props.URL).Str("user", props.User).Msg("connecting to store")

	pool, err := database.NewPool(ctx, props.URL, props.User, props.Password, props.ConnectTimeout)
	if err != nil {
		log.Error().Err(err).Msg("not able to connect to store, persistence disabled")
		return &Manager{exec: exec}
	}

	log.Info().Msg("connected to store")
	return &Manager{
		enabled:   true,
		pool:      pool,
		exec:      exec,
		opTimeout: props.ConnectTimeout,
		users:     repository.NewUserRepository(pool),
		reporting: repository.NewReportingRepository(pool),
		redeems:   repository.NewRedeemRepository(pool),
	}
}

// NewWithStores creates an enabled Manager over custom collaborators.
// This is primarily used for testing.
func NewWithStores(pool ConnPool, exec Executor, users UserStore, reporting ReportingStore, redeems RedeemStore) *Manager {
	return &Manager{
		enabled:   true,
		pool:      pool,
		exec:      exec,
		users:     users,
		reporting: reporting,
		redeems:   redeems,
	}
}

// NewDisabled creates a Manager in the disabled state.
// This is primarily used for testing.
func NewDisabled() *Manager {
	return &Manager{}
}

// Enabled reports whether a working store connection was established at
// construction time.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// opCtx bounds a synchronous operation with the configured acquisition
// timeout, the only bounded-wait guarantee this layer gives.
func (m *Manager) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.opTimeout)
}

// SaveUsers persists user records as a fire-and-forget bulk write: the
// call returns immediately and the write's outcome is only logged.
// A disabled manager or an empty batch is a pure no-op.
func (m *Manager) SaveUsers(users []*model.User) {
	if !m.enabled || len(users) == 0 {
		return
	}
	m.exec.Submit(func() {
		ctx, cancel := m.opCtx(context.Background())
		defer cancel()
		if err := m.users.Save(ctx, users); err != nil {
			log.Error().Err(err).Int("users", len(users)).Msg("failed to save users")
		}
	})
}

// InsertReporting persists one flush of reporting aggregates as a
// fire-and-forget bulk write. A disabled manager or an empty batch is
// a pure no-op.
func (m *Manager) InsertReporting(batch model.ReportingBatch, granularity model.Granularity) {
	if !m.enabled || len(batch) == 0 {
		return
	}
	m.exec.Submit(func() {
		ctx, cancel := m.opCtx(context.Background())
		defer cancel()
		if err := m.reporting.InsertBatch(ctx, batch, granularity); err != nil {
			log.Error().Err(err).
				Int("rows", len(batch)).
				Str("granularity", granularity.String()).
				Msg("failed to insert reporting batch")
		}
	})
}

// CleanOldReportingRecords purges aged-out reporting rows as a
// fire-and-forget operation. A disabled manager is a no-op.
func (m *Manager) CleanOldReportingRecords(now time.Time) {
	if !m.enabled {
		return
	}
	m.exec.Submit(func() {
		ctx, cancel := m.opCtx(context.Background())
		defer cancel()
		if err := m.reporting.DeleteBefore(ctx, now); err != nil {
			log.Error().Err(err).Msg("failed to purge old reporting records")
		}
	})
}

// SelectRedeemByToken looks up a redeem token. Returns nil, nil when
// the token does not exist or when persistence is disabled.
func (m *Manager) SelectRedeemByToken(ctx context.Context, token string) (*model.Redeem, error) {
	if !m.enabled {
		return nil, nil
	}
	ctx, cancel := m.opCtx(ctx)
	defer cancel()
	return m.redeems.GetByToken(ctx, token)
}

// UpdateRedeem redeems a token for username and reports whether this
// caller won the token. Unlike every other operation, a disabled
// manager is a hard failure here: redeem correctness must be confirmed,
// never silently skipped.
func (m *Manager) UpdateRedeem(ctx context.Context, username, token string) (bool, error) {
	if !m.enabled {
		return false, ErrPersistenceDisabled
	}
	ctx, cancel := m.opCtx(ctx)
	defer cancel()
	return m.redeems.Redeem(ctx, username, token)
}

// InsertRedeems bulk-creates new redeem tokens synchronously, so that a
// token collision reaches the caller. A disabled manager or an empty
// batch is a no-op.
func (m *Manager) InsertRedeems(ctx context.Context, redeems []*model.Redeem) error {
	if !m.enabled || len(redeems) == 0 {
		return nil
	}
	ctx, cancel := m.opCtx(ctx)
	defer cancel()
	return m.redeems.InsertBatch(ctx, redeems)
}

// Exec runs an arbitrary SQL statement against the store. A disabled
// manager is a no-op.
func (m *Manager) Exec(ctx context.Context, sql string) error {
	if !m.enabled {
		return nil
	}
	ctx, cancel := m.opCtx(ctx)
	defer cancel()
	_, err := m.pool.Exec(ctx, sql)
	return err
}

// AcquireConn borrows a raw pooled connection; the caller must Release
// it. Returns ErrPersistenceDisabled when there is no pool to borrow
// from; a nil connection would only defer the failure to first use.
func (m *Manager) AcquireConn(ctx context.Context) (*pgxpool.Conn, error) {
	if !m.enabled {
		return nil, ErrPersistenceDisabled
	}
	ctx, cancel := m.opCtx(ctx)
	defer cancel()
	return m.pool.Acquire(ctx)
}

// Ping verifies store reachability for health probes. A disabled
// manager pings nothing and reports no error.
func (m *Manager) Ping(ctx context.Context) error {
	if !m.enabled || m.pool == nil {
		return nil
	}
	return m.pool.Ping(ctx)
}

// Close releases the pool exactly once. Closing a disabled manager, or
// closing twice, is a no-op.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		if m.enabled && m.pool != nil {
			log.Info().Msg("closing store connections")
			m.pool.Close()
		}
	})
}
