package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-onboarding/core"
	"github.com/uptrace/bun"
)

const checkpointKeyPrefix = "last_check_timestamp_"

// CheckpointStore remembers the last successfully scanned point per
// configuration. Reads subtract a fixed overlap from the stored value so a
// crash between fetch and checkpoint write can only reprocess, never skip.
type CheckpointStore struct {
	db      *bun.DB
	overlap time.Duration
	now     func() time.Time
}

func NewCheckpointStore(db *bun.DB, overlap time.Duration) (*CheckpointStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if overlap < 0 {
		return nil, fmt.Errorf("sqlstore: checkpoint overlap must not be negative")
	}
	return &CheckpointStore{
		db:      db,
		overlap: overlap,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *CheckpointStore) GetCheckpoint(ctx context.Context, configID string, defaultLookback time.Duration) (time.Time, error) {
	if s == nil || s.db == nil {
		return time.Time{}, fmt.Errorf("sqlstore: checkpoint store is not configured")
	}
	configID = strings.TrimSpace(configID)
	if configID == "" {
		return time.Time{}, fmt.Errorf("sqlstore: config id is required")
	}

	record := &checkpointRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.checkpoint_key = ?", checkpointKey(configID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return s.now().Add(-defaultLookback), nil
		}
		return time.Time{}, err
	}
	return record.CheckpointValue.Add(-s.overlap), nil
}

func (s *CheckpointStore) SetCheckpoint(ctx context.Context, configID string, at time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: checkpoint store is not configured")
	}
	configID = strings.TrimSpace(configID)
	if configID == "" {
		return fmt.Errorf("sqlstore: config id is required")
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := s.now()
		result, err := tx.NewUpdate().
			Model((*checkpointRecord)(nil)).
			Set("checkpoint_value = ?", at.UTC()).
			Set("updated_at = ?", now).
			Where("checkpoint_key = ?", checkpointKey(configID)).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected > 0 {
			return nil
		}
		record := &checkpointRecord{
			CheckpointKey:   checkpointKey(configID),
			CheckpointValue: at.UTC(),
			UpdatedAt:       now,
		}
		_, err = tx.NewInsert().Model(record).Exec(ctx)
		return err
	})
}

func checkpointKey(configID string) string {
	return checkpointKeyPrefix + configID
}

var _ core.CheckpointStore = (*CheckpointStore)(nil)
