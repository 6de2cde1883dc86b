package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-onboarding/core"
)

const (
	TypeCreateRequest    = "onboarding.command.request.create"
	TypeRecordApproval   = "onboarding.command.request.record_approval"
	TypeRecordDelegation = "onboarding.command.request.record_delegation"
	TypeAdvanceStage     = "onboarding.command.request.advance_stage"
	TypeUpdateStatus     = "onboarding.command.request.update_status"
	TypeMarkDuplicate    = "onboarding.command.request.mark_duplicate"
	TypeClaimMessage     = "onboarding.command.message.claim"
	TypeSetCheckpoint    = "onboarding.command.checkpoint.set"
)

type CreateRequestMessage struct {
	Input core.CreateRequestInput
}

func (CreateRequestMessage) Type() string { return TypeCreateRequest }

func (m CreateRequestMessage) Validate() error {
	if strings.TrimSpace(m.Input.UserEmail) == "" {
		return fmt.Errorf("command: user email is required")
	}
	if strings.TrimSpace(m.Input.RequestedGroup) == "" {
		return fmt.Errorf("command: requested group is required")
	}
	if strings.TrimSpace(m.Input.ConfigID) == "" {
		return fmt.Errorf("command: config id is required")
	}
	if len(m.Input.StageApprovals) == 0 {
		return fmt.Errorf("command: stage approvals are required")
	}
	return nil
}

type RecordApprovalMessage struct {
	RequestID int64
	Approver  string
}

func (RecordApprovalMessage) Type() string { return TypeRecordApproval }

func (m RecordApprovalMessage) Validate() error {
	if m.RequestID <= 0 {
		return fmt.Errorf("command: request id is required")
	}
	if strings.TrimSpace(m.Approver) == "" {
		return fmt.Errorf("command: approver is required")
	}
	return nil
}

type RecordDelegationMessage struct {
	RequestID int64
	Original  string
	Delegate  string
}

func (RecordDelegationMessage) Type() string { return TypeRecordDelegation }

func (m RecordDelegationMessage) Validate() error {
	if m.RequestID <= 0 {
		return fmt.Errorf("command: request id is required")
	}
	if strings.TrimSpace(m.Original) == "" {
		return fmt.Errorf("command: original approver is required")
	}
	if strings.TrimSpace(m.Delegate) == "" {
		return fmt.Errorf("command: delegate is required")
	}
	return nil
}

type AdvanceStageMessage struct {
	UserEmail      string
	RequestedGroup string
	ConfigID       string
}

func (AdvanceStageMessage) Type() string { return TypeAdvanceStage }

func (m AdvanceStageMessage) Validate() error {
	return validateRequestKey(m.UserEmail, m.RequestedGroup, m.ConfigID)
}

type UpdateRequestStatusMessage struct {
	UserEmail      string
	RequestedGroup string
	ConfigID       string
	Status         string
	Details        string
}

func (UpdateRequestStatusMessage) Type() string { return TypeUpdateStatus }

func (m UpdateRequestStatusMessage) Validate() error {
	if err := validateRequestKey(m.UserEmail, m.RequestedGroup, m.ConfigID); err != nil {
		return err
	}
	if strings.TrimSpace(m.Status) == "" {
		return fmt.Errorf("command: status is required")
	}
	return nil
}

type MarkDuplicateMessage struct {
	RequestID   int64
	DuplicateOf int64
	Details     string
}

func (MarkDuplicateMessage) Type() string { return TypeMarkDuplicate }

func (m MarkDuplicateMessage) Validate() error {
	if m.RequestID <= 0 {
		return fmt.Errorf("command: request id is required")
	}
	if m.DuplicateOf <= 0 {
		return fmt.Errorf("command: original request id is required")
	}
	if m.RequestID == m.DuplicateOf {
		return fmt.Errorf("command: request cannot duplicate itself")
	}
	return nil
}

type ClaimMessageMessage struct {
	MessageUID string
}

func (ClaimMessageMessage) Type() string { return TypeClaimMessage }

func (m ClaimMessageMessage) Validate() error {
	if strings.TrimSpace(m.MessageUID) == "" {
		return fmt.Errorf("command: message uid is required")
	}
	return nil
}

type SetCheckpointMessage struct {
	ConfigID string
	At       time.Time
}

func (SetCheckpointMessage) Type() string { return TypeSetCheckpoint }

func (m SetCheckpointMessage) Validate() error {
	if strings.TrimSpace(m.ConfigID) == "" {
		return fmt.Errorf("command: config id is required")
	}
	if m.At.IsZero() {
		return fmt.Errorf("command: checkpoint time is required")
	}
	return nil
}

func validateRequestKey(userEmail, requestedGroup, configID string) error {
	if strings.TrimSpace(userEmail) == "" {
		return fmt.Errorf("command: user email is required")
	}
	if strings.TrimSpace(requestedGroup) == "" {
		return fmt.Errorf("command: requested group is required")
	}
	if strings.TrimSpace(configID) == "" {
		return fmt.Errorf("command: config id is required")
	}
	return nil
}
