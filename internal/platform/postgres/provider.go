package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config captures connection pool parameters for the primary database.
type Config struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Provider lazily constructs and caches a pgx connection pool.
type Provider struct {
	cfg Config

	mu   sync.Mutex
	pool *pgxpool.Pool
}

// NewProvider constructs a Provider for the supplied configuration.
func NewProvider(cfg Config) *Provider {
	return &Provider{cfg: cfg}
}

// Pool returns the shared connection pool, creating it on first use.
func (p *Provider) Pool(ctx context.Context) (*pgxpool.Pool, error) {
	if p == nil {
		return nil, errors.New("postgres provider: not initialised")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pool != nil {
		return p.pool, nil
	}

	url := strings.TrimSpace(p.cfg.URL)
	if url == "" {
		return nil, errors.New("postgres provider: database url is required")
	}

	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if p.cfg.MaxConns > 0 {
		poolCfg.MaxConns = p.cfg.MaxConns
	}
	if p.cfg.MinConns > 0 {
		poolCfg.MinConns = p.cfg.MinConns
	}
	if p.cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = p.cfg.MaxConnLifetime
	}
	if p.cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = p.cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	p.pool = pool
	return pool, nil
}

// Ping verifies database connectivity.
func (p *Provider) Ping(ctx context.Context) error {
	pool, err := p.Pool(ctx)
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// Close releases the underlying pool.
func (p *Provider) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
}
