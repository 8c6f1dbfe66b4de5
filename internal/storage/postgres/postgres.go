// Package postgres persists computed distributions in PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/diceodds/internal/config"
)

// applicationName tags every connection in pg_stat_activity.
const applicationName = "diceodds"

// Pool is the connection pool shared by the distribution repository.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool connects to PostgreSQL and verifies the connection.
//
// Precondition: cfg must contain valid database connection parameters.
// Postcondition: Returns a pinged Pool or a non-nil error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Pool{pool: pool}, nil
}

// Health pings the database, giving up after timeout.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.pool.Ping(ctx)
}

func (p *Pool) Close() { p.pool.Close() }

// DB returns the underlying pgxpool.Pool.
func (p *Pool) DB() *pgxpool.Pool { return p.pool }

// MigrationStatus reports the schema version after Migrate.
type MigrationStatus struct {
	Version  uint
	Dirty    bool
	NoChange bool
}

// Migrate applies the migrations in dir. steps > 0 moves that many versions
// in direction; steps == 0 moves all the way.
//
// Precondition: direction is "up" or "down"; dir holds golang-migrate files.
// Postcondition: Returns the resulting version; ErrNoChange is reported as
// NoChange, not as an error.
func Migrate(cfg config.DatabaseConfig, dir, direction string, steps int) (MigrationStatus, error) {
	if direction != "up" && direction != "down" {
		return MigrationStatus{}, fmt.Errorf("invalid direction %q: must be 'up' or 'down'", direction)
	}
	m, err := migrate.New("file://"+dir, cfg.DSN())
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	switch {
	case direction == "up" && steps > 0:
		err = m.Steps(steps)
	case direction == "up":
		err = m.Up()
	case direction == "down" && steps > 0:
		err = m.Steps(-steps)
	default:
		err = m.Down()
	}

	var status MigrationStatus
	if errors.Is(err, migrate.ErrNoChange) {
		status.NoChange, err = true, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("migrating %s: %w", direction, err)
	}
	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return MigrationStatus{}, fmt.Errorf("reading schema version: %w", verr)
	}
	status.Version, status.Dirty = version, dirty
	return status, nil
}
