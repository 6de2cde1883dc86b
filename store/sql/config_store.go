package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-onboarding/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConfigurationStore serves the read-mostly runtime view of workflow
// configurations and mailbox credential bundles. Create methods exist for
// the administrative surface and for test fixtures.
type ConfigurationStore struct {
	db          *bun.DB
	configRepo  repository.Repository[*configurationRecord]
	mailboxRepo repository.Repository[*mailboxRecord]
}

func NewConfigurationStore(db *bun.DB) (*ConfigurationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	configRepo := repository.NewRepository[*configurationRecord](db, configurationHandlers())
	if validator, ok := configRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid configuration repository wiring: %w", err)
		}
	}
	mailboxRepo := repository.NewRepository[*mailboxRecord](db, mailboxHandlers())
	if validator, ok := mailboxRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid mailbox repository wiring: %w", err)
		}
	}
	return &ConfigurationStore{
		db:          db,
		configRepo:  configRepo,
		mailboxRepo: mailboxRepo,
	}, nil
}

func (s *ConfigurationStore) ListActiveConfigurations(ctx context.Context) ([]core.WorkflowConfiguration, error) {
	if s == nil || s.configRepo == nil {
		return nil, fmt.Errorf("sqlstore: configuration store is not configured")
	}
	// Both sqlite and postgres accept '1' as a boolean literal.
	records, _, err := s.configRepo.List(ctx,
		repository.SelectBy("active", "=", "1"),
		repository.OrderBy("mailbox_id ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.WorkflowConfiguration, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *ConfigurationStore) GetConfiguration(ctx context.Context, id string) (core.WorkflowConfiguration, error) {
	if s == nil || s.configRepo == nil {
		return core.WorkflowConfiguration{}, fmt.Errorf("sqlstore: configuration store is not configured")
	}
	record, err := s.configRepo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.WorkflowConfiguration{}, err
	}
	return record.toDomain(), nil
}

func (s *ConfigurationStore) GetMailbox(ctx context.Context, id string) (core.Mailbox, error) {
	if s == nil || s.mailboxRepo == nil {
		return core.Mailbox{}, fmt.Errorf("sqlstore: configuration store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Mailbox{}, fmt.Errorf("%w: empty id", core.ErrMailboxNotFound)
	}
	record, err := s.mailboxRepo.GetByID(ctx, id)
	if err != nil {
		return core.Mailbox{}, fmt.Errorf("%w: id %q", core.ErrMailboxNotFound, id)
	}
	return record.toDomain(), nil
}

func (s *ConfigurationStore) CreateConfiguration(ctx context.Context, cfg core.WorkflowConfiguration) (core.WorkflowConfiguration, error) {
	if s == nil || s.configRepo == nil {
		return core.WorkflowConfiguration{}, fmt.Errorf("sqlstore: configuration store is not configured")
	}
	if strings.TrimSpace(cfg.ID) == "" {
		cfg.ID = uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return core.WorkflowConfiguration{}, err
	}
	record := newConfigurationRecord(cfg, time.Now().UTC())
	created, err := s.configRepo.Create(ctx, record)
	if err != nil {
		return core.WorkflowConfiguration{}, err
	}
	return created.toDomain(), nil
}

func (s *ConfigurationStore) CreateMailbox(ctx context.Context, mailbox core.Mailbox) (core.Mailbox, error) {
	if s == nil || s.mailboxRepo == nil {
		return core.Mailbox{}, fmt.Errorf("sqlstore: configuration store is not configured")
	}
	if strings.TrimSpace(mailbox.ID) == "" {
		mailbox.ID = uuid.NewString()
	}
	record := newMailboxRecord(mailbox, time.Now().UTC())
	created, err := s.mailboxRepo.Create(ctx, record)
	if err != nil {
		return core.Mailbox{}, err
	}
	return created.toDomain(), nil
}

var _ core.ConfigurationStore = (*ConfigurationStore)(nil)
