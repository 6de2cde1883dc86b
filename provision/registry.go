package provision

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-onboarding/core"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// Factory opens a bun handle against a provisioning target.
type Factory func(dsn string) (*bun.DB, error)

// Registry maps target drivers to connection factories. Postgres and sqlite
// ship built in; callers may register additional drivers before use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
	}
	r.Register(DriverPostgres, openPostgres)
	r.Register(DriverSQLite, openSQLite)
	return r
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func (r *Registry) Register(driver string, factory Factory) {
	if r == nil || factory == nil {
		return
	}
	driver = strings.TrimSpace(strings.ToLower(driver))
	if driver == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[driver] = factory
}

func (r *Registry) Open(target core.TargetDescriptor) (*bun.DB, error) {
	if r == nil {
		return nil, fmt.Errorf("provision: registry is not configured")
	}
	driver := strings.TrimSpace(strings.ToLower(target.Driver))
	r.mu.RLock()
	factory, ok := r.factories[driver]
	r.mu.RUnlock()
	if !ok {
		return nil, core.NewProvisioningError(
			fmt.Sprintf("provision: unsupported target driver %q", target.Driver), nil)
	}
	db, err := factory(target.DSN)
	if err != nil {
		return nil, core.NewProvisioningError(
			fmt.Sprintf("provision: open %s target", driver), err)
	}
	return db, nil
}

func openPostgres(dsn string) (*bun.DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqlDB, pgdialect.New()), nil
}

func openSQLite(dsn string) (*bun.DB, error) {
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return bun.NewDB(sqlDB, sqlitedialect.New()), nil
}
