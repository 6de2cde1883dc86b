package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// CreateRequestInput carries everything needed to open a tracked request.
// StageApprovals must be fully populated for every stage up front; the store
// never resolves approvers lazily.
type CreateRequestInput struct {
	UserEmail      string
	RequestedGroup string
	ConfigID       string
	Status         string
	CurrentStage   int
	StageApprovals StageApprovals
}

// RequestStore persists tracked requests and enforces the single-active-
// request invariant per (user, group, config) key.
type RequestStore interface {
	Create(ctx context.Context, in CreateRequestInput) (Request, error)
	Get(ctx context.Context, id int64) (Request, error)
	FindActive(ctx context.Context, userEmail string, requestedGroup string, configID string) (Request, error)
	RecordApproval(ctx context.Context, requestID int64, approver string) (bool, error)
	RecordDelegation(ctx context.Context, requestID int64, original string, delegate string) error
	AdvanceStage(ctx context.Context, userEmail string, requestedGroup string, configID string) (Request, error)
	UpdateStatus(ctx context.Context, userEmail string, requestedGroup string, configID string, status string, details string) error
	MarkDuplicate(ctx context.Context, requestID int64, duplicateOf int64, details string) error
	FindMatureUnprocessed(ctx context.Context, configID string, maturityDelay time.Duration) ([]Request, error)
	FindPending(ctx context.Context, configID string) ([]Request, error)
	FindPendingForReminder(ctx context.Context, configID string, threshold time.Duration) ([]Request, error)
	RecordAccess(ctx context.Context, userEmail string, configID string) error
}

// MessageClaimStore is the system-wide dedup gate for inbound message
// identifiers. Claim is atomic insert-if-absent: true means this call won.
type MessageClaimStore interface {
	Claim(ctx context.Context, uid string) (bool, error)
}

// CheckpointStore remembers the last successfully scanned point per
// configuration. Get applies a fixed safety overlap when a prior value
// exists, and falls back to now minus the default lookback otherwise.
type CheckpointStore interface {
	GetCheckpoint(ctx context.Context, configID string, defaultLookback time.Duration) (time.Time, error)
	SetCheckpoint(ctx context.Context, configID string, at time.Time) error
}

// ConfigurationStore exposes the read-only runtime view of workflow
// configurations and mailbox credential bundles.
type ConfigurationStore interface {
	ListActiveConfigurations(ctx context.Context) ([]WorkflowConfiguration, error)
	GetMailbox(ctx context.Context, id string) (Mailbox, error)
}

// IngestionService is the external collaborator that fetches and classifies
// new mail for a mailbox, claims message identifiers, and creates requests
// and approvals from what it finds.
type IngestionService interface {
	Ingest(ctx context.Context, mailbox Mailbox, configs []WorkflowConfiguration) error
}

// DirectoryService resolves approvers from the directory. Only the degraded
// legacy-data fallback consults it at processing time; callers must tolerate
// transient unavailability.
type DirectoryService interface {
	RequiredApproversForStage(ctx context.Context, stage int, req Request, cfg WorkflowConfiguration) ([]string, error)
}

// ProvisioningService applies the final grant for a completed request. Apply
// must be idempotent and must fail distinctly so the caller can leave the
// request non-terminal for retry.
type ProvisioningService interface {
	Apply(ctx context.Context, userEmail string, target TargetDescriptor) error
}

// NotificationService delivers reminder nudges. Best effort; failures are
// logged, never fatal.
type NotificationService interface {
	SendReminder(ctx context.Context, req Request, cfg WorkflowConfiguration) error
}
