package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-onboarding/core"
	"github.com/uptrace/bun"
)

// RequestStore persists tracked requests. A partial unique index on
// (user_email, requested_group, config_id) over non-terminal statuses backs
// the application-level single-active-request check against races.
type RequestStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewRequestStore(db *bun.DB) (*RequestStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &RequestStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *RequestStore) Create(ctx context.Context, in core.CreateRequestInput) (core.Request, error) {
	if s == nil || s.db == nil {
		return core.Request{}, fmt.Errorf("sqlstore: request store is not configured")
	}
	email := core.NormalizeIdentity(in.UserEmail)
	group := strings.TrimSpace(in.RequestedGroup)
	configID := strings.TrimSpace(in.ConfigID)
	if email == "" || group == "" || configID == "" {
		return core.Request{}, fmt.Errorf("sqlstore: user email, requested group and config id are required")
	}
	if len(in.StageApprovals) == 0 {
		return core.Request{}, fmt.Errorf("%w: stage approvals must be populated at creation", core.ErrMalformedApprovals)
	}
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = core.StatusNewUnprocessed
	}
	// Rows always carry a stage of at least 1; attach is a pure status flip.
	stage := in.CurrentStage
	if stage < 1 {
		stage = 1
	}

	var created core.Request
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, findErr := findActiveTx(ctx, tx, email, group, configID)
		if findErr == nil {
			bumped, bumpErr := bumpRequestCountTx(ctx, tx, existing, s.now())
			if bumpErr != nil {
				return bumpErr
			}
			created = bumped
			return core.ErrRequestConflict
		}
		if !errors.Is(findErr, core.ErrRequestNotFound) {
			return findErr
		}

		now := s.now()
		record := &requestRecord{
			UserEmail:      email,
			RequestedGroup: group,
			ConfigID:       configID,
			Status:         status,
			CurrentStage:   stage,
			StageApprovals: stageApprovalsToRaw(in.StageApprovals),
			Delegations:    []delegation{},
			RequestCount:   1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
			if isUniqueViolation(insertErr) {
				racedWinner, rereadErr := findActiveTx(ctx, tx, email, group, configID)
				if rereadErr != nil {
					return rereadErr
				}
				created = racedWinner
				return core.ErrRequestConflict
			}
			return insertErr
		}
		domain, convertErr := record.toDomain()
		if convertErr != nil {
			return convertErr
		}
		created = domain
		return nil
	})
	if err != nil {
		if errors.Is(err, core.ErrRequestConflict) {
			return created, fmt.Errorf("%w: %s/%s/%s", core.ErrRequestConflict, email, group, configID)
		}
		return core.Request{}, err
	}
	return created, nil
}

func (s *RequestStore) Get(ctx context.Context, id int64) (core.Request, error) {
	if s == nil || s.db == nil {
		return core.Request{}, fmt.Errorf("sqlstore: request store is not configured")
	}
	record := &requestRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Request{}, fmt.Errorf("%w: id %d", core.ErrRequestNotFound, id)
		}
		return core.Request{}, err
	}
	return record.toDomain()
}

func (s *RequestStore) FindActive(ctx context.Context, userEmail string, requestedGroup string, configID string) (core.Request, error) {
	if s == nil || s.db == nil {
		return core.Request{}, fmt.Errorf("sqlstore: request store is not configured")
	}
	return findActiveIn(ctx, s.db, core.NormalizeIdentity(userEmail), strings.TrimSpace(requestedGroup), strings.TrimSpace(configID))
}

// RecordApproval appends the approver to the current stage and propagates the
// same approval into every later stage that lists the approver as required,
// so a single reply can satisfy multiple stages. Returns false when the
// current stage already carries the approval.
func (s *RequestStore) RecordApproval(ctx context.Context, requestID int64, approver string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: request store is not configured")
	}
	approver = core.NormalizeIdentity(approver)
	if approver == "" {
		return false, fmt.Errorf("sqlstore: approver identity is required")
	}

	recorded := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		req, getErr := getRequestTx(ctx, tx, requestID)
		if getErr != nil {
			return getErr
		}
		if req.IsTerminal() {
			return fmt.Errorf("%w: id %d status %s", core.ErrRequestTerminal, requestID, req.Status)
		}

		stage := req.CurrentStage
		if stage < 1 {
			stage = 1
		}
		approvals := req.StageApprovals.Clone()
		current := approvals[stage]
		if current.HasApproved(approver) {
			return nil
		}
		current.Approved = append(current.Approved, approver)
		approvals[stage] = current

		for _, future := range approvals.Stages() {
			if future <= stage {
				continue
			}
			entry := approvals[future]
			if entry.HasRequired(approver) && !entry.HasApproved(approver) {
				entry.Approved = append(entry.Approved, approver)
				approvals[future] = entry
			}
		}

		payload, marshalErr := json.Marshal(stageApprovalsToRaw(approvals))
		if marshalErr != nil {
			return marshalErr
		}
		now := s.now()
		_, updateErr := tx.NewUpdate().
			Model((*requestRecord)(nil)).
			Set("stage_approvals = ?", string(payload)).
			Set("last_activity = ?", fmt.Sprintf("approval recorded from %s for stage %d", approver, stage)).
			Set("updated_at = ?", now).
			Where("id = ?", requestID).
			Exec(ctx)
		if updateErr != nil {
			return updateErr
		}
		recorded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return recorded, nil
}

func (s *RequestStore) RecordDelegation(ctx context.Context, requestID int64, original string, delegate string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: request store is not configured")
	}
	original = core.NormalizeIdentity(original)
	delegate = core.NormalizeIdentity(delegate)
	if original == "" || delegate == "" {
		return fmt.Errorf("sqlstore: delegation requires original and delegate identities")
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		req, getErr := getRequestTx(ctx, tx, requestID)
		if getErr != nil {
			return getErr
		}
		if req.IsTerminal() {
			return fmt.Errorf("%w: id %d status %s", core.ErrRequestTerminal, requestID, req.Status)
		}
		for _, entry := range req.Delegations {
			if core.NormalizeIdentity(entry.Original) == original && core.NormalizeIdentity(entry.Delegate) == delegate {
				return nil
			}
		}
		next := append(delegationsToRecords(req.Delegations), delegation{
			Original: original,
			Delegate: delegate,
		})
		payload, marshalErr := json.Marshal(next)
		if marshalErr != nil {
			return marshalErr
		}

		_, updateErr := tx.NewUpdate().
			Model((*requestRecord)(nil)).
			Set("delegations = ?", string(payload)).
			Set("last_activity = ?", fmt.Sprintf("delegation recorded: %s -> %s", original, delegate)).
			Set("updated_at = ?", s.now()).
			Where("id = ?", requestID).
			Exec(ctx)
		return updateErr
	})
}

func (s *RequestStore) AdvanceStage(ctx context.Context, userEmail string, requestedGroup string, configID string) (core.Request, error) {
	if s == nil || s.db == nil {
		return core.Request{}, fmt.Errorf("sqlstore: request store is not configured")
	}
	email := core.NormalizeIdentity(userEmail)
	group := strings.TrimSpace(requestedGroup)
	configID = strings.TrimSpace(configID)

	var advanced core.Request
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		req, findErr := findActiveTx(ctx, tx, email, group, configID)
		if findErr != nil {
			return findErr
		}
		next := req.CurrentStage + 1
		if next > req.StageApprovals.MaxStage() {
			return fmt.Errorf("%w: stage %d of %d", core.ErrStageOutOfRange, next, req.StageApprovals.MaxStage())
		}

		now := s.now()
		status := core.PendingStatus(next)
		_, updateErr := tx.NewUpdate().
			Model((*requestRecord)(nil)).
			Set("current_stage = ?", next).
			Set("status = ?", status).
			Set("last_activity = ?", fmt.Sprintf("advanced to stage %d", next)).
			Set("updated_at = ?", now).
			Where("id = ?", req.ID).
			Exec(ctx)
		if updateErr != nil {
			return updateErr
		}
		req.CurrentStage = next
		req.Status = status
		req.UpdatedAt = now
		advanced = req
		return nil
	})
	if err != nil {
		return core.Request{}, err
	}
	return advanced, nil
}

// UpdateStatus refuses to touch rows already marked duplicate; everything
// else, terminal or not, can be rewritten by the caller.
func (s *RequestStore) UpdateStatus(ctx context.Context, userEmail string, requestedGroup string, configID string, status string, details string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: request store is not configured")
	}
	status = strings.TrimSpace(status)
	if status == "" {
		return fmt.Errorf("sqlstore: status is required")
	}

	result, err := s.db.NewUpdate().
		Model((*requestRecord)(nil)).
		Set("status = ?", status).
		Set("last_activity = ?", details).
		Set("updated_at = ?", s.now()).
		Where("user_email = ?", core.NormalizeIdentity(userEmail)).
		Where("requested_group = ?", strings.TrimSpace(requestedGroup)).
		Where("config_id = ?", strings.TrimSpace(configID)).
		Where("status != ?", core.StatusDuplicate).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s/%s/%s", core.ErrRequestNotFound, userEmail, requestedGroup, configID)
	}
	return nil
}

func (s *RequestStore) MarkDuplicate(ctx context.Context, requestID int64, duplicateOf int64, details string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: request store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*requestRecord)(nil)).
		Set("status = ?", core.StatusDuplicate).
		Set("duplicate_of = ?", duplicateOf).
		Set("last_activity = ?", details).
		Set("updated_at = ?", s.now()).
		Where("id = ?", requestID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", core.ErrRequestNotFound, requestID)
	}
	return nil
}

// FindMatureUnprocessed returns new requests old enough to process. The
// maturity delay gives delegation replies a window to arrive before the
// approval chain is pinned.
func (s *RequestStore) FindMatureUnprocessed(ctx context.Context, configID string, maturityDelay time.Duration) ([]core.Request, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: request store is not configured")
	}
	cutoff := s.now().Add(-maturityDelay)
	var records []*requestRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.config_id = ?", strings.TrimSpace(configID)).
		Where("?TableAlias.status = ?", core.StatusNewUnprocessed).
		Where("?TableAlias.created_at <= ?", cutoff).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return toDomainRequests(records)
}

func (s *RequestStore) FindPending(ctx context.Context, configID string) ([]core.Request, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: request store is not configured")
	}
	var records []*requestRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.config_id = ?", strings.TrimSpace(configID)).
		Where("?TableAlias.status LIKE ?", "pending_stage_%").
		Order("updated_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return toDomainRequests(records)
}

func (s *RequestStore) FindPendingForReminder(ctx context.Context, configID string, threshold time.Duration) ([]core.Request, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: request store is not configured")
	}
	cutoff := s.now().Add(-threshold)
	var records []*requestRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.config_id = ?", strings.TrimSpace(configID)).
		Where("?TableAlias.status LIKE ?", "pending_stage_%").
		Where("?TableAlias.updated_at <= ?", cutoff).
		Order("updated_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return toDomainRequests(records)
}

// RecordAccess upserts the per (user, config) grant ledger entry, counting
// repeat grants instead of duplicating rows.
func (s *RequestStore) RecordAccess(ctx context.Context, userEmail string, configID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: request store is not configured")
	}
	email := core.NormalizeIdentity(userEmail)
	configID = strings.TrimSpace(configID)
	if email == "" || configID == "" {
		return fmt.Errorf("sqlstore: user email and config id are required")
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := s.now()
		result, err := tx.NewUpdate().
			Model((*accessLogRecord)(nil)).
			Set("granted_count = granted_count + 1").
			Set("last_granted_at = ?", now).
			Where("user_email = ?", email).
			Where("config_id = ?", configID).
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
		record := &accessLogRecord{
			UserEmail:      email,
			ConfigID:       configID,
			GrantedCount:   1,
			FirstGrantedAt: now,
			LastGrantedAt:  now,
		}
		_, err = tx.NewInsert().Model(record).Exec(ctx)
		return err
	})
}

func getRequestTx(ctx context.Context, tx bun.Tx, id int64) (core.Request, error) {
	record := &requestRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Request{}, fmt.Errorf("%w: id %d", core.ErrRequestNotFound, id)
		}
		return core.Request{}, err
	}
	return record.toDomain()
}

func findActiveTx(ctx context.Context, tx bun.Tx, email string, group string, configID string) (core.Request, error) {
	return findActiveIn(ctx, tx, email, group, configID)
}

// findActiveIn treats an empty group or config id as a wildcard: dedup
// lookups match the user across groups and configurations.
func findActiveIn(ctx context.Context, db bun.IDB, email string, group string, configID string) (core.Request, error) {
	record := &requestRecord{}
	query := db.NewSelect().
		Model(record).
		Where("?TableAlias.user_email = ?", email)
	if group != "" {
		query = query.Where("?TableAlias.requested_group = ?", group)
	}
	if configID != "" {
		query = query.Where("?TableAlias.config_id = ?", configID)
	}
	err := query.
		Where("?TableAlias.status NOT IN (?)", bun.In([]string{core.StatusCompleted, core.StatusDuplicate, core.StatusError})).
		Order("updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Request{}, fmt.Errorf("%w: %s/%s/%s", core.ErrRequestNotFound, email, group, configID)
		}
		return core.Request{}, err
	}
	return record.toDomain()
}

func bumpRequestCountTx(ctx context.Context, tx bun.Tx, existing core.Request, now time.Time) (core.Request, error) {
	_, err := tx.NewUpdate().
		Model((*requestRecord)(nil)).
		Set("request_count = request_count + 1").
		Set("last_activity = ?", "repeat request received").
		Set("updated_at = ?", now).
		Where("id = ?", existing.ID).
		Exec(ctx)
	if err != nil {
		return core.Request{}, err
	}
	existing.RequestCount++
	existing.LastActivity = "repeat request received"
	existing.UpdatedAt = now
	return existing, nil
}

func toDomainRequests(records []*requestRecord) ([]core.Request, error) {
	out := make([]core.Request, 0, len(records))
	for _, record := range records {
		req, err := record.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

var _ core.RequestStore = (*RequestStore)(nil)
