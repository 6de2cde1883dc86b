package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-onboarding/core"
	"github.com/uptrace/bun"
)

// MessageClaimStore is the system-wide dedup gate for inbound message
// identifiers. The primary key on message_uid makes Claim an atomic
// insert-if-absent across every concurrent worker.
type MessageClaimStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewMessageClaimStore(db *bun.DB) (*MessageClaimStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &MessageClaimStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Claim returns true when this call inserted the identifier, false when a
// previous call already owns it.
func (s *MessageClaimStore) Claim(ctx context.Context, uid string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: message claim store is not configured")
	}
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return false, fmt.Errorf("sqlstore: message uid is required")
	}

	record := &processedMessageRecord{
		MessageUID: uid,
		ClaimedAt:  s.now(),
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

var _ core.MessageClaimStore = (*MessageClaimStore)(nil)
