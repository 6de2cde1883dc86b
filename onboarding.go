package onboarding

import "github.com/goliatone/go-onboarding/core"

type Config = core.Config

type SchedulerConfig = core.SchedulerConfig
type WorkflowConfig = core.WorkflowConfig

type Option = core.Option

type Service = core.Service

type RequestStore = core.RequestStore
type MessageClaimStore = core.MessageClaimStore
type CheckpointStore = core.CheckpointStore
type ConfigurationStore = core.ConfigurationStore
type IngestionService = core.IngestionService
type DirectoryService = core.DirectoryService
type ProvisioningService = core.ProvisioningService
type NotificationService = core.NotificationService

type Request = core.Request
type StageApproval = core.StageApproval
type StageApprovals = core.StageApprovals
type Delegation = core.Delegation
type WorkflowConfiguration = core.WorkflowConfiguration
type Mailbox = core.Mailbox
type MailboxTask = core.MailboxTask
type TargetDescriptor = core.TargetDescriptor

type CreateRequestInput = core.CreateRequestInput

var (
	WithLogger             = core.WithLogger
	WithLoggerProvider     = core.WithLoggerProvider
	WithErrorMapper        = core.WithErrorMapper
	WithConfigProvider     = core.WithConfigProvider
	WithOptionsResolver    = core.WithOptionsResolver
	WithRequestStore       = core.WithRequestStore
	WithMessageClaimStore  = core.WithMessageClaimStore
	WithCheckpointStore    = core.WithCheckpointStore
	WithConfigurationStore = core.WithConfigurationStore
	WithDirectory          = core.WithDirectory
	WithProvisioner        = core.WithProvisioner
	WithNotifier           = core.WithNotifier
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}
