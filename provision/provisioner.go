package provision

import (
	"context"
	"fmt"
	"sort"

	"github.com/goliatone/go-onboarding/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/uptrace/bun"
)

// Provisioner grants membership by writing the user into the target table
// declared by the workflow configuration. Apply is idempotent: an existing
// row is reactivated, a missing row is inserted with the target's default
// column values.
type Provisioner struct {
	cache  *ClientCache
	logger core.Logger
}

type Option func(*Provisioner)

func WithLogger(logger core.Logger) Option {
	return func(p *Provisioner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func New(cache *ClientCache, opts ...Option) (*Provisioner, error) {
	if cache == nil {
		return nil, fmt.Errorf("provision: client cache is required")
	}
	p := &Provisioner{
		cache:  cache,
		logger: glog.Nop(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(p)
	}
	return p, nil
}

func (p *Provisioner) Apply(ctx context.Context, userEmail string, target core.TargetDescriptor) error {
	if p == nil || p.cache == nil {
		return fmt.Errorf("provision: provisioner is not configured")
	}
	email := core.NormalizeIdentity(userEmail)
	if email == "" {
		return core.NewProvisioningError("provision: user email is required", nil)
	}
	if err := target.Validate(); err != nil {
		return core.NewProvisioningError("provision: invalid target descriptor", err)
	}

	db, err := p.cache.Get(target)
	if err != nil {
		return err
	}

	exists, err := p.memberExists(ctx, db, target, email)
	if err != nil {
		// A dead handle poisons every later grant against this target.
		p.cache.Invalidate(target)
		return core.NewProvisioningError("provision: query target membership", err)
	}

	if exists {
		if err := p.reactivate(ctx, db, target, email); err != nil {
			p.cache.Invalidate(target)
			return core.NewProvisioningError("provision: reactivate member", err)
		}
		p.logger.Debug("member already present, reactivated",
			"user_email", email,
			"table", target.Table,
		)
		return nil
	}

	if err := p.insert(ctx, db, target, email); err != nil {
		p.cache.Invalidate(target)
		return core.NewProvisioningError("provision: insert member", err)
	}
	p.logger.Info("member provisioned",
		"user_email", email,
		"driver", target.Driver,
		"table", target.Table,
	)
	return nil
}

func (p *Provisioner) memberExists(ctx context.Context, db *bun.DB, target core.TargetDescriptor, email string) (bool, error) {
	var count int
	err := db.NewSelect().
		TableExpr("?", bun.Ident(target.Table)).
		ColumnExpr("count(*)").
		Where("? = ?", bun.Ident(target.EmailColumn), email).
		Scan(ctx, &count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *Provisioner) reactivate(ctx context.Context, db *bun.DB, target core.TargetDescriptor, email string) error {
	values := map[string]any{
		target.ActiveColumn: true,
	}
	_, err := db.NewUpdate().
		Model(&values).
		TableExpr("?", bun.Ident(target.Table)).
		Where("? = ?", bun.Ident(target.EmailColumn), email).
		Exec(ctx)
	return err
}

func (p *Provisioner) insert(ctx context.Context, db *bun.DB, target core.TargetDescriptor, email string) error {
	values := map[string]any{
		target.EmailColumn:  email,
		target.ActiveColumn: true,
	}
	columns := make([]string, 0, len(target.DefaultColumns))
	for column := range target.DefaultColumns {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	for _, column := range columns {
		if _, taken := values[column]; taken {
			continue
		}
		values[column] = target.DefaultColumns[column]
	}
	_, err := db.NewInsert().
		Model(&values).
		TableExpr("?", bun.Ident(target.Table)).
		Exec(ctx)
	return err
}

var _ core.ProvisioningService = (*Provisioner)(nil)
