package core

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrRequestConflict    = errors.New("core: active request already exists for key")
	ErrRequestNotFound    = errors.New("core: request not found")
	ErrMailboxNotFound    = errors.New("core: mailbox not found")
	ErrRequestTerminal    = errors.New("core: request is in a terminal status")
	ErrStageOutOfRange    = errors.New("core: stage exceeds configured approval stages")
	ErrMalformedApprovals = errors.New("core: malformed stage approvals")
)

const (
	StatusNewUnprocessed = "new_unprocessed"
	StatusCompleted      = "completed"
	StatusDuplicate      = "duplicate"
	StatusError          = "error"

	pendingStatusPrefix = "pending_stage_"
)

// PendingStatus renders the pending status for a stage, e.g. pending_stage_2.
func PendingStatus(stage int) string {
	if stage < 1 {
		stage = 1
	}
	return pendingStatusPrefix + strconv.Itoa(stage)
}

func IsPendingStatus(status string) bool {
	return strings.HasPrefix(strings.TrimSpace(status), pendingStatusPrefix)
}

func IsTerminalStatus(status string) bool {
	switch strings.TrimSpace(status) {
	case StatusCompleted, StatusDuplicate, StatusError:
		return true
	}
	return false
}

// NormalizeIdentity canonicalizes an approver identity for set comparisons.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// StageApproval holds the approver sets for a single stage. Identities are
// stored normalized; both slices behave as sets.
type StageApproval struct {
	Required []string `json:"required"`
	Approved []string `json:"approved"`
}

func (s StageApproval) HasRequired(identity string) bool {
	return containsIdentity(s.Required, identity)
}

func (s StageApproval) HasApproved(identity string) bool {
	return containsIdentity(s.Approved, identity)
}

func containsIdentity(set []string, identity string) bool {
	identity = NormalizeIdentity(identity)
	for _, member := range set {
		if NormalizeIdentity(member) == identity {
			return true
		}
	}
	return false
}

// StageApprovals maps stage number to its approver sets. The map is fully
// populated for every stage at request creation; stages are never resolved
// lazily afterwards.
type StageApprovals map[int]StageApproval

// MaxStage returns the highest stage present, or 0 when empty.
func (s StageApprovals) MaxStage() int {
	max := 0
	for stage := range s {
		if stage > max {
			max = stage
		}
	}
	return max
}

// Stages returns the stage numbers in ascending order.
func (s StageApprovals) Stages() []int {
	out := make([]int, 0, len(s))
	for stage := range s {
		out = append(out, stage)
	}
	sort.Ints(out)
	return out
}

func (s StageApprovals) Clone() StageApprovals {
	if s == nil {
		return nil
	}
	out := make(StageApprovals, len(s))
	for stage, approval := range s {
		out[stage] = StageApproval{
			Required: append([]string(nil), approval.Required...),
			Approved: append([]string(nil), approval.Approved...),
		}
	}
	return out
}

// NormalizeStageApprovals migrates the raw persisted shape into the typed map.
// The legacy shape stored a bare list of approved identities per stage with no
// required set; it is converted once at load so reads never branch on shape.
// Identities are normalized on the way in.
func NormalizeStageApprovals(raw map[string]any) (StageApprovals, error) {
	out := make(StageApprovals, len(raw))
	for key, value := range raw {
		stage, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || stage < 1 {
			return nil, fmt.Errorf("%w: stage key %q", ErrMalformedApprovals, key)
		}
		switch typed := value.(type) {
		case map[string]any:
			out[stage] = StageApproval{
				Required: normalizeIdentityList(typed["required"]),
				Approved: normalizeIdentityList(typed["approved"]),
			}
		case []any:
			// Legacy shape: approved-only list, required set unknown.
			out[stage] = StageApproval{Approved: normalizeIdentityList(typed)}
		case nil:
			out[stage] = StageApproval{}
		default:
			return nil, fmt.Errorf("%w: stage %d has unsupported shape %T", ErrMalformedApprovals, stage, value)
		}
	}
	return out, nil
}

func normalizeIdentityList(value any) []string {
	var out []string
	appendOne := func(raw string) {
		identity := NormalizeIdentity(raw)
		if identity == "" || containsIdentity(out, identity) {
			return
		}
		out = append(out, identity)
	}
	switch typed := value.(type) {
	case []string:
		for _, item := range typed {
			appendOne(item)
		}
	case []any:
		for _, item := range typed {
			if text, ok := item.(string); ok {
				appendOne(text)
			}
		}
	}
	return out
}

// Delegation records an out-of-office substitution discovered during
// ingestion. Order of discovery is preserved.
type Delegation struct {
	Original string `json:"original"`
	Delegate string `json:"delegate"`
}

// Request is the tracked onboarding request. The natural key is
// (UserEmail, RequestedGroup, ConfigID); at most one non-terminal request may
// exist per key.
type Request struct {
	ID             int64
	UserEmail      string
	RequestedGroup string
	ConfigID       string
	Status         string
	CurrentStage   int
	StageApprovals StageApprovals
	Delegations    []Delegation
	DuplicateOf    *int64
	RequestCount   int
	LastActivity   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (r Request) IsTerminal() bool {
	return IsTerminalStatus(r.Status)
}

// CurrentStageApproval returns the approval entry for the current stage and
// whether a usable required set is present. A missing or required-less entry
// marks the request as legacy data subject to the degraded directory fallback.
func (r Request) CurrentStageApproval() (StageApproval, bool) {
	approval, ok := r.StageApprovals[r.CurrentStage]
	if !ok {
		return StageApproval{}, false
	}
	return approval, len(approval.Required) > 0
}

// TargetDescriptor declares the provisioning destination for a completed
// request. The request lifecycle passes it through untouched; the provision
// package interprets it.
type TargetDescriptor struct {
	Driver         string            `json:"driver"`
	DSN            string            `json:"dsn"`
	Table          string            `json:"table"`
	EmailColumn    string            `json:"email_column"`
	ActiveColumn   string            `json:"active_column"`
	DefaultColumns map[string]string `json:"default_columns,omitempty"`
}

func (t TargetDescriptor) IsZero() bool {
	return strings.TrimSpace(t.Driver) == "" &&
		strings.TrimSpace(t.Table) == ""
}

func (t TargetDescriptor) Validate() error {
	if strings.TrimSpace(t.Driver) == "" {
		return fmt.Errorf("core: target driver is required")
	}
	if strings.TrimSpace(t.DSN) == "" {
		return fmt.Errorf("core: target dsn is required")
	}
	if strings.TrimSpace(t.Table) == "" {
		return fmt.Errorf("core: target table is required")
	}
	if strings.TrimSpace(t.EmailColumn) == "" {
		return fmt.Errorf("core: target email column is required")
	}
	if strings.TrimSpace(t.ActiveColumn) == "" {
		return fmt.Errorf("core: target active column is required")
	}
	return nil
}

// WorkflowConfiguration binds one workflow to a mailbox. Read-only at
// runtime; the administrative surface owns creation and edits.
type WorkflowConfiguration struct {
	ID                string
	Description       string
	Active            bool
	TeamAlias         string
	WorkflowType      string
	RequiredGroup     string
	MailboxID         string
	Target            TargetDescriptor
	MaturityDelay     time.Duration
	ReminderThreshold time.Duration
	InitialLookback   time.Duration
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (c WorkflowConfiguration) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("core: configuration id is required")
	}
	if strings.TrimSpace(c.TeamAlias) == "" {
		return fmt.Errorf("core: team alias is required")
	}
	if strings.TrimSpace(c.MailboxID) == "" {
		return fmt.Errorf("core: mailbox id is required")
	}
	return nil
}

// Mailbox is an opaque credential bundle handed to the ingestion collaborator.
type Mailbox struct {
	ID          string
	Description string
	IMAPServer  string
	IMAPUser    string
	IMAPPass    string
	SMTPServer  string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MailboxTask is the unit of work the scheduler enqueues: one mailbox plus
// every active configuration bound to it.
type MailboxTask struct {
	Mailbox Mailbox
	Configs []WorkflowConfiguration
}
