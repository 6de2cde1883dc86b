package sqlstore

import (
	"fmt"
	"time"

	"github.com/goliatone/go-onboarding/core"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// RepositoryFactory wires every SQL-backed store off one bun handle.
type RepositoryFactory struct {
	db                *bun.DB
	checkpointOverlap time.Duration

	requestStore       *RequestStore
	claimStore         *MessageClaimStore
	checkpointStore    *CheckpointStore
	configurationStore *ConfigurationStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{
		checkpointOverlap: core.DefaultConfig().Workflow.CheckpointOverlap,
	}
}

func (f *RepositoryFactory) WithCheckpointOverlap(overlap time.Duration) *RepositoryFactory {
	if f != nil && overlap >= 0 {
		f.checkpointOverlap = overlap
	}
	return f
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.requestStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) RequestStore() core.RequestStore {
	if f == nil {
		return nil
	}
	return f.requestStore
}

func (f *RepositoryFactory) MessageClaimStore() core.MessageClaimStore {
	if f == nil {
		return nil
	}
	return f.claimStore
}

func (f *RepositoryFactory) CheckpointStore() core.CheckpointStore {
	if f == nil {
		return nil
	}
	return f.checkpointStore
}

func (f *RepositoryFactory) ConfigurationStore() *ConfigurationStore {
	if f == nil {
		return nil
	}
	return f.configurationStore
}

func (f *RepositoryFactory) initStores() error {
	requestStore, err := NewRequestStore(f.db)
	if err != nil {
		return err
	}
	f.requestStore = requestStore

	claimStore, err := NewMessageClaimStore(f.db)
	if err != nil {
		return err
	}
	f.claimStore = claimStore

	checkpointStore, err := NewCheckpointStore(f.db, f.checkpointOverlap)
	if err != nil {
		return err
	}
	f.checkpointStore = checkpointStore

	configurationStore, err := NewConfigurationStore(f.db)
	if err != nil {
		return err
	}
	f.configurationStore = configurationStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
