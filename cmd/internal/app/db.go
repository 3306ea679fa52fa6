package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDBPool builds a pgxpool for url and validates connectivity.
// It does not run migrations; the person and person_account tables are
// expected to exist.
func NewDBPool(ctx context.Context, url string, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}

	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 {
		pcfg.MinConns = cfg.DBMinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := PingDB(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// PingDB checks if we can acquire a connection within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

// dbPools owns the elevated and the least-privilege pool. reader may be
// the same pool as elevated.
type dbPools struct {
	elevated *pgxpool.Pool
	reader   *pgxpool.Pool
}

func openDBPools(ctx context.Context, cfg Config, log Logger) (*dbPools, error) {
	elevated, err := NewDBPool(ctx, cfg.DatabaseURL, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.AuthDatabaseURL == "" || cfg.AuthDatabaseURL == cfg.DatabaseURL {
		log.Warn("db.reader.fallback_elevated")
		return &dbPools{elevated: elevated, reader: elevated}, nil
	}

	reader, err := NewDBPool(ctx, cfg.AuthDatabaseURL, cfg)
	if err != nil {
		elevated.Close()
		return nil, err
	}
	return &dbPools{elevated: elevated, reader: reader}, nil
}

// ping checks every distinct pool.
func (p *dbPools) ping(ctx context.Context, timeout time.Duration) error {
	if err := PingDB(ctx, p.elevated, timeout); err != nil {
		return err
	}
	if p.reader != p.elevated {
		return PingDB(ctx, p.reader, timeout)
	}
	return nil
}

func (p *dbPools) Close() {
	if p == nil {
		return
	}
	if p.reader != nil && p.reader != p.elevated {
		p.reader.Close()
	}
	if p.elevated != nil {
		p.elevated.Close()
	}
}
