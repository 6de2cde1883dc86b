package sqlstore

import (
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-onboarding/core"
)

func (r *requestRecord) toDomain() (core.Request, error) {
	approvals, err := core.NormalizeStageApprovals(r.StageApprovals)
	if err != nil {
		return core.Request{}, err
	}
	delegations := make([]core.Delegation, 0, len(r.Delegations))
	for _, entry := range r.Delegations {
		delegations = append(delegations, core.Delegation{
			Original: entry.Original,
			Delegate: entry.Delegate,
		})
	}
	return core.Request{
		ID:             r.ID,
		UserEmail:      r.UserEmail,
		RequestedGroup: r.RequestedGroup,
		ConfigID:       r.ConfigID,
		Status:         r.Status,
		CurrentStage:   r.CurrentStage,
		StageApprovals: approvals,
		Delegations:    delegations,
		DuplicateOf:    r.DuplicateOf,
		RequestCount:   r.RequestCount,
		LastActivity:   r.LastActivity,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

func stageApprovalsToRaw(approvals core.StageApprovals) map[string]any {
	out := make(map[string]any, len(approvals))
	for stage, approval := range approvals {
		required := approval.Required
		if required == nil {
			required = []string{}
		}
		approved := approval.Approved
		if approved == nil {
			approved = []string{}
		}
		out[strconv.Itoa(stage)] = map[string]any{
			"required": required,
			"approved": approved,
		}
	}
	return out
}

func delegationsToRecords(delegations []core.Delegation) []delegation {
	out := make([]delegation, 0, len(delegations))
	for _, entry := range delegations {
		out = append(out, delegation{
			Original: entry.Original,
			Delegate: entry.Delegate,
		})
	}
	return out
}

func (r *configurationRecord) toDomain() core.WorkflowConfiguration {
	return core.WorkflowConfiguration{
		ID:                r.ID,
		Description:       r.Description,
		Active:            r.Active,
		TeamAlias:         r.TeamAlias,
		WorkflowType:      r.WorkflowType,
		RequiredGroup:     r.RequiredGroup,
		MailboxID:         r.MailboxID,
		Target:            targetFromMap(r.Target),
		MaturityDelay:     time.Duration(r.MaturityDelaySeconds) * time.Second,
		ReminderThreshold: time.Duration(r.ReminderThresholdSeconds) * time.Second,
		InitialLookback:   time.Duration(r.InitialLookbackSeconds) * time.Second,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func newConfigurationRecord(cfg core.WorkflowConfiguration, now time.Time) *configurationRecord {
	return &configurationRecord{
		ID:                       strings.TrimSpace(cfg.ID),
		Description:              strings.TrimSpace(cfg.Description),
		Active:                   cfg.Active,
		TeamAlias:                strings.TrimSpace(cfg.TeamAlias),
		WorkflowType:             strings.TrimSpace(cfg.WorkflowType),
		RequiredGroup:            strings.TrimSpace(cfg.RequiredGroup),
		MailboxID:                strings.TrimSpace(cfg.MailboxID),
		Target:                   targetToMap(cfg.Target),
		MaturityDelaySeconds:     int64(cfg.MaturityDelay / time.Second),
		ReminderThresholdSeconds: int64(cfg.ReminderThreshold / time.Second),
		InitialLookbackSeconds:   int64(cfg.InitialLookback / time.Second),
		CreatedAt:                now,
		UpdatedAt:                now,
	}
}

func (r *mailboxRecord) toDomain() core.Mailbox {
	return core.Mailbox{
		ID:          r.ID,
		Description: r.Label,
		IMAPServer:  r.IMAPHost,
		IMAPUser:    r.Username,
		IMAPPass:    r.Password,
		SMTPServer:  r.SMTPHost,
		SMTPPort:    r.SMTPPort,
		SMTPUser:    r.Username,
		SMTPPass:    r.Password,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func newMailboxRecord(mailbox core.Mailbox, now time.Time) *mailboxRecord {
	return &mailboxRecord{
		ID:        strings.TrimSpace(mailbox.ID),
		Label:     strings.TrimSpace(mailbox.Description),
		IMAPHost:  strings.TrimSpace(mailbox.IMAPServer),
		IMAPPort:  993,
		SMTPHost:  strings.TrimSpace(mailbox.SMTPServer),
		SMTPPort:  mailbox.SMTPPort,
		Username:  strings.TrimSpace(mailbox.IMAPUser),
		Password:  mailbox.IMAPPass,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func targetFromMap(raw map[string]any) core.TargetDescriptor {
	target := core.TargetDescriptor{
		Driver:       stringField(raw, "driver"),
		DSN:          stringField(raw, "dsn"),
		Table:        stringField(raw, "table"),
		EmailColumn:  stringField(raw, "email_column"),
		ActiveColumn: stringField(raw, "active_column"),
	}
	if defaults, ok := raw["default_columns"].(map[string]any); ok && len(defaults) > 0 {
		target.DefaultColumns = make(map[string]string, len(defaults))
		for column, value := range defaults {
			if text, ok := value.(string); ok {
				target.DefaultColumns[column] = text
			}
		}
	}
	return target
}

func targetToMap(target core.TargetDescriptor) map[string]any {
	out := map[string]any{
		"driver":        target.Driver,
		"dsn":           target.DSN,
		"table":         target.Table,
		"email_column":  target.EmailColumn,
		"active_column": target.ActiveColumn,
	}
	if len(target.DefaultColumns) > 0 {
		defaults := make(map[string]any, len(target.DefaultColumns))
		for column, value := range target.DefaultColumns {
			defaults[column] = value
		}
		out["default_columns"] = defaults
	}
	return out
}

func stringField(raw map[string]any, key string) string {
	if value, ok := raw[key].(string); ok {
		return value
	}
	return ""
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
