package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[CreateRequestMessage]       = (*CreateRequestCommand)(nil)
	_ gocmd.Commander[RecordApprovalMessage]      = (*RecordApprovalCommand)(nil)
	_ gocmd.Commander[RecordDelegationMessage]    = (*RecordDelegationCommand)(nil)
	_ gocmd.Commander[AdvanceStageMessage]        = (*AdvanceStageCommand)(nil)
	_ gocmd.Commander[UpdateRequestStatusMessage] = (*UpdateRequestStatusCommand)(nil)
	_ gocmd.Commander[MarkDuplicateMessage]       = (*MarkDuplicateCommand)(nil)
	_ gocmd.Commander[ClaimMessageMessage]        = (*ClaimMessageCommand)(nil)
	_ gocmd.Commander[SetCheckpointMessage]       = (*SetCheckpointCommand)(nil)
)
