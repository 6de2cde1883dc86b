package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type requestRecord struct {
	bun.BaseModel `bun:"table:onboarding_requests,alias:oreq"`

	ID             int64          `bun:"id,pk,autoincrement"`
	UserEmail      string         `bun:"user_email,notnull"`
	RequestedGroup string         `bun:"requested_group,notnull"`
	ConfigID       string         `bun:"config_id,notnull"`
	Status         string         `bun:"status,notnull"`
	CurrentStage   int            `bun:"current_stage,notnull"`
	StageApprovals map[string]any `bun:"stage_approvals,type:jsonb,notnull"`
	Delegations    []delegation   `bun:"delegations,type:jsonb,notnull"`
	DuplicateOf    *int64         `bun:"duplicate_of"`
	RequestCount   int            `bun:"request_count,notnull"`
	LastActivity   string         `bun:"last_activity"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type delegation struct {
	Original string `json:"original"`
	Delegate string `json:"delegate"`
}

type configurationRecord struct {
	bun.BaseModel `bun:"table:onboarding_configurations,alias:ocfg"`

	ID                       string         `bun:"id,pk"`
	Active                   bool           `bun:"active,notnull"`
	TeamAlias                string         `bun:"team_alias,notnull"`
	Description              string         `bun:"description"`
	WorkflowType             string         `bun:"workflow_type,notnull"`
	RequiredGroup            string         `bun:"required_group,notnull"`
	MailboxID                string         `bun:"mailbox_id,notnull"`
	Target                   map[string]any `bun:"target,type:jsonb,notnull"`
	MaturityDelaySeconds     int64          `bun:"maturity_delay_seconds,notnull"`
	ReminderThresholdSeconds int64          `bun:"reminder_threshold_seconds,notnull"`
	InitialLookbackSeconds   int64          `bun:"initial_lookback_seconds,notnull"`
	CreatedAt                time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt                time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type mailboxRecord struct {
	bun.BaseModel `bun:"table:onboarding_mailboxes,alias:ombx"`

	ID        string    `bun:"id,pk"`
	Label     string    `bun:"label"`
	IMAPHost  string    `bun:"imap_host,notnull"`
	IMAPPort  int       `bun:"imap_port,notnull"`
	SMTPHost  string    `bun:"smtp_host"`
	SMTPPort  int       `bun:"smtp_port"`
	Username  string    `bun:"username,notnull"`
	Password  string    `bun:"password,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type processedMessageRecord struct {
	bun.BaseModel `bun:"table:onboarding_processed_messages,alias:omsg"`

	MessageUID string    `bun:"message_uid,pk"`
	ClaimedAt  time.Time `bun:"claimed_at,nullzero,notnull,default:current_timestamp"`
}

type checkpointRecord struct {
	bun.BaseModel `bun:"table:onboarding_checkpoints,alias:ockp"`

	CheckpointKey   string    `bun:"checkpoint_key,pk"`
	CheckpointValue time.Time `bun:"checkpoint_value,notnull"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type accessLogRecord struct {
	bun.BaseModel `bun:"table:onboarding_access_log,alias:oacc"`

	UserEmail      string    `bun:"user_email,pk"`
	ConfigID       string    `bun:"config_id,pk"`
	GrantedCount   int       `bun:"granted_count,notnull"`
	FirstGrantedAt time.Time `bun:"first_granted_at,nullzero,notnull,default:current_timestamp"`
	LastGrantedAt  time.Time `bun:"last_granted_at,nullzero,notnull,default:current_timestamp"`
}
