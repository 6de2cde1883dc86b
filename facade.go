package onboarding

import (
	"fmt"

	onboardingcommand "github.com/goliatone/go-onboarding/command"
)

// Commands groups the mutation handlers built around a single service.
type Commands struct {
	CreateRequest       *onboardingcommand.CreateRequestCommand
	RecordApproval      *onboardingcommand.RecordApprovalCommand
	RecordDelegation    *onboardingcommand.RecordDelegationCommand
	AdvanceStage        *onboardingcommand.AdvanceStageCommand
	UpdateRequestStatus *onboardingcommand.UpdateRequestStatusCommand
	MarkDuplicate       *onboardingcommand.MarkDuplicateCommand
	ClaimMessage        *onboardingcommand.ClaimMessageCommand
	SetCheckpoint       *onboardingcommand.SetCheckpointCommand
}

type Facade struct {
	service  onboardingcommand.MutatingService
	commands Commands
}

func NewFacade(service onboardingcommand.MutatingService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("onboarding: facade service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			CreateRequest:       onboardingcommand.NewCreateRequestCommand(service),
			RecordApproval:      onboardingcommand.NewRecordApprovalCommand(service),
			RecordDelegation:    onboardingcommand.NewRecordDelegationCommand(service),
			AdvanceStage:        onboardingcommand.NewAdvanceStageCommand(service),
			UpdateRequestStatus: onboardingcommand.NewUpdateRequestStatusCommand(service),
			MarkDuplicate:       onboardingcommand.NewMarkDuplicateCommand(service),
			ClaimMessage:        onboardingcommand.NewClaimMessageCommand(service),
			SetCheckpoint:       onboardingcommand.NewSetCheckpointCommand(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Service() onboardingcommand.MutatingService {
	if f == nil {
		return nil
	}
	return f.service
}
