package command

import (
	"context"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-onboarding/core"
)

type MutatingService interface {
	CreateRequest(ctx context.Context, in core.CreateRequestInput) (core.Request, error)
	RecordApproval(ctx context.Context, requestID int64, approver string) (bool, error)
	RecordDelegation(ctx context.Context, requestID int64, original string, delegate string) error
	AdvanceStage(ctx context.Context, userEmail string, requestedGroup string, configID string) (core.Request, error)
	UpdateRequestStatus(ctx context.Context, userEmail string, requestedGroup string, configID string, status string, details string) error
	MarkDuplicate(ctx context.Context, requestID int64, duplicateOf int64, details string) error
	ClaimMessage(ctx context.Context, uid string) (bool, error)
	SetCheckpoint(ctx context.Context, configID string, at time.Time) error
}

type CreateRequestCommand struct {
	service MutatingService
}

func NewCreateRequestCommand(service MutatingService) *CreateRequestCommand {
	return &CreateRequestCommand{service: service}
}

func (c *CreateRequestCommand) Execute(ctx context.Context, msg CreateRequestMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: request service is required")
	}
	out, err := c.service.CreateRequest(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RecordApprovalCommand struct {
	service MutatingService
}

func NewRecordApprovalCommand(service MutatingService) *RecordApprovalCommand {
	return &RecordApprovalCommand{service: service}
}

func (c *RecordApprovalCommand) Execute(ctx context.Context, msg RecordApprovalMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: approval service is required")
	}
	recorded, err := c.service.RecordApproval(ctx, msg.RequestID, msg.Approver)
	if err != nil {
		return err
	}
	storeResult(ctx, recorded)
	return nil
}

type RecordDelegationCommand struct {
	service MutatingService
}

func NewRecordDelegationCommand(service MutatingService) *RecordDelegationCommand {
	return &RecordDelegationCommand{service: service}
}

func (c *RecordDelegationCommand) Execute(ctx context.Context, msg RecordDelegationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delegation service is required")
	}
	return c.service.RecordDelegation(ctx, msg.RequestID, msg.Original, msg.Delegate)
}

type AdvanceStageCommand struct {
	service MutatingService
}

func NewAdvanceStageCommand(service MutatingService) *AdvanceStageCommand {
	return &AdvanceStageCommand{service: service}
}

func (c *AdvanceStageCommand) Execute(ctx context.Context, msg AdvanceStageMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: stage service is required")
	}
	out, err := c.service.AdvanceStage(ctx, msg.UserEmail, msg.RequestedGroup, msg.ConfigID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateRequestStatusCommand struct {
	service MutatingService
}

func NewUpdateRequestStatusCommand(service MutatingService) *UpdateRequestStatusCommand {
	return &UpdateRequestStatusCommand{service: service}
}

func (c *UpdateRequestStatusCommand) Execute(ctx context.Context, msg UpdateRequestStatusMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: status service is required")
	}
	return c.service.UpdateRequestStatus(ctx, msg.UserEmail, msg.RequestedGroup, msg.ConfigID, msg.Status, msg.Details)
}

type MarkDuplicateCommand struct {
	service MutatingService
}

func NewMarkDuplicateCommand(service MutatingService) *MarkDuplicateCommand {
	return &MarkDuplicateCommand{service: service}
}

func (c *MarkDuplicateCommand) Execute(ctx context.Context, msg MarkDuplicateMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: duplicate service is required")
	}
	return c.service.MarkDuplicate(ctx, msg.RequestID, msg.DuplicateOf, msg.Details)
}

type ClaimMessageCommand struct {
	service MutatingService
}

func NewClaimMessageCommand(service MutatingService) *ClaimMessageCommand {
	return &ClaimMessageCommand{service: service}
}

func (c *ClaimMessageCommand) Execute(ctx context.Context, msg ClaimMessageMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: claim service is required")
	}
	claimed, err := c.service.ClaimMessage(ctx, msg.MessageUID)
	if err != nil {
		return err
	}
	storeResult(ctx, claimed)
	return nil
}

type SetCheckpointCommand struct {
	service MutatingService
}

func NewSetCheckpointCommand(service MutatingService) *SetCheckpointCommand {
	return &SetCheckpointCommand{service: service}
}

func (c *SetCheckpointCommand) Execute(ctx context.Context, msg SetCheckpointMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: checkpoint service is required")
	}
	return c.service.SetCheckpoint(ctx, msg.ConfigID, msg.At)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
