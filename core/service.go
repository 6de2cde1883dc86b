package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Service is the core-exposed surface: configuration/mailbox reads, the
// checkpoint API, and the request store operations, with onboarding error
// mapping applied at the boundary. The ingestion glue and the command layer
// drive mutations through it.
type Service struct {
	config         Config
	logger         Logger
	loggerProvider LoggerProvider
	errorMapper    ErrorMapper
	engine         *ApprovalEngine
	requests       RequestStore
	claims         MessageClaimStore
	checkpoints    CheckpointStore
	configurations ConfigurationStore
	directory      DirectoryService
	provisioner    ProvisioningService
	notifier       NotificationService
	now            func() time.Time
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("onboarding", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("onboarding"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:         finalConfig,
		logger:         logger,
		loggerProvider: provider,
		errorMapper:    builder.errorMapper,
		engine:         NewApprovalEngine(builder.directory, logger),
		requests:       builder.requests,
		claims:         builder.claims,
		checkpoints:    builder.checkpoints,
		configurations: builder.configurations,
		directory:      builder.directory,
		provisioner:    builder.provisioner,
		notifier:       builder.notifier,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Engine() *ApprovalEngine {
	if s == nil {
		return nil
	}
	return s.engine
}

func (s *Service) ListActiveConfigurations(ctx context.Context) ([]WorkflowConfiguration, error) {
	if s == nil || s.configurations == nil {
		return nil, fmt.Errorf("core: configuration store is required")
	}
	configs, err := s.configurations.ListActiveConfigurations(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	return configs, nil
}

func (s *Service) GetMailbox(ctx context.Context, id string) (Mailbox, error) {
	if s == nil || s.configurations == nil {
		return Mailbox{}, fmt.Errorf("core: configuration store is required")
	}
	mailbox, err := s.configurations.GetMailbox(ctx, strings.TrimSpace(id))
	if err != nil {
		return Mailbox{}, s.mapError(err)
	}
	return mailbox, nil
}

// GetCheckpoint returns where scanning should resume for a configuration,
// falling back to now minus the configured lookback when nothing was stored.
func (s *Service) GetCheckpoint(ctx context.Context, cfg WorkflowConfiguration) (time.Time, error) {
	if s == nil || s.checkpoints == nil {
		return time.Time{}, fmt.Errorf("core: checkpoint store is required")
	}
	at, err := s.checkpoints.GetCheckpoint(ctx, cfg.ID, s.config.InitialLookbackFor(cfg))
	if err != nil {
		return time.Time{}, s.mapError(err)
	}
	return at, nil
}

func (s *Service) SetCheckpoint(ctx context.Context, configID string, at time.Time) error {
	if s == nil || s.checkpoints == nil {
		return fmt.Errorf("core: checkpoint store is required")
	}
	return s.mapError(s.checkpoints.SetCheckpoint(ctx, configID, at))
}

func (s *Service) CreateRequest(ctx context.Context, in CreateRequestInput) (Request, error) {
	if s == nil || s.requests == nil {
		return Request{}, fmt.Errorf("core: request store is required")
	}
	req, err := s.requests.Create(ctx, in)
	if err != nil {
		return Request{}, s.mapError(err)
	}
	s.logger.Info("created onboarding request",
		"request_id", req.ID,
		"user_email", req.UserEmail,
		"requested_group", req.RequestedGroup,
		"config_id", req.ConfigID,
		"status", req.Status,
	)
	return req, nil
}

func (s *Service) FindActiveRequest(ctx context.Context, userEmail string, requestedGroup string, configID string) (Request, error) {
	if s == nil || s.requests == nil {
		return Request{}, fmt.Errorf("core: request store is required")
	}
	req, err := s.requests.FindActive(ctx, userEmail, requestedGroup, configID)
	if err != nil {
		return Request{}, s.mapError(err)
	}
	return req, nil
}

// ClaimMessage marks a message identifier processed. True means this call
// performed the first claim.
func (s *Service) ClaimMessage(ctx context.Context, uid string) (bool, error) {
	if s == nil || s.claims == nil {
		return false, fmt.Errorf("core: message claim store is required")
	}
	claimed, err := s.claims.Claim(ctx, uid)
	if err != nil {
		return false, s.mapError(err)
	}
	return claimed, nil
}

func (s *Service) RecordApproval(ctx context.Context, requestID int64, approver string) (bool, error) {
	if s == nil || s.requests == nil {
		return false, fmt.Errorf("core: request store is required")
	}
	recorded, err := s.requests.RecordApproval(ctx, requestID, approver)
	if err != nil {
		return false, s.mapError(err)
	}
	return recorded, nil
}

func (s *Service) RecordDelegation(ctx context.Context, requestID int64, original string, delegate string) error {
	if s == nil || s.requests == nil {
		return fmt.Errorf("core: request store is required")
	}
	return s.mapError(s.requests.RecordDelegation(ctx, requestID, original, delegate))
}

func (s *Service) AdvanceStage(ctx context.Context, userEmail string, requestedGroup string, configID string) (Request, error) {
	if s == nil || s.requests == nil {
		return Request{}, fmt.Errorf("core: request store is required")
	}
	req, err := s.requests.AdvanceStage(ctx, userEmail, requestedGroup, configID)
	if err != nil {
		return Request{}, s.mapError(err)
	}
	return req, nil
}

func (s *Service) UpdateRequestStatus(ctx context.Context, userEmail string, requestedGroup string, configID string, status string, details string) error {
	if s == nil || s.requests == nil {
		return fmt.Errorf("core: request store is required")
	}
	return s.mapError(s.requests.UpdateStatus(ctx, userEmail, requestedGroup, configID, status, details))
}

func (s *Service) MarkDuplicate(ctx context.Context, requestID int64, duplicateOf int64, details string) error {
	if s == nil || s.requests == nil {
		return fmt.Errorf("core: request store is required")
	}
	return s.mapError(s.requests.MarkDuplicate(ctx, requestID, duplicateOf, details))
}

// FindMatureRequests returns unprocessed requests past the maturity window
// for the configuration, oldest first.
func (s *Service) FindMatureRequests(ctx context.Context, cfg WorkflowConfiguration) ([]Request, error) {
	if s == nil || s.requests == nil {
		return nil, fmt.Errorf("core: request store is required")
	}
	mature, err := s.requests.FindMatureUnprocessed(ctx, cfg.ID, s.config.MaturityDelayFor(cfg))
	if err != nil {
		return nil, s.mapError(err)
	}
	return mature, nil
}

func (s *Service) FindPendingRequests(ctx context.Context, configID string) ([]Request, error) {
	if s == nil || s.requests == nil {
		return nil, fmt.Errorf("core: request store is required")
	}
	pending, err := s.requests.FindPending(ctx, configID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return pending, nil
}

// FindReminderCandidates returns pending requests whose last activity is
// older than the reminder threshold for the configuration.
func (s *Service) FindReminderCandidates(ctx context.Context, cfg WorkflowConfiguration) ([]Request, error) {
	if s == nil || s.requests == nil {
		return nil, fmt.Errorf("core: request store is required")
	}
	due, err := s.requests.FindPendingForReminder(ctx, cfg.ID, s.config.ReminderThresholdFor(cfg))
	if err != nil {
		return nil, s.mapError(err)
	}
	return due, nil
}

func (s *Service) RecordAccess(ctx context.Context, userEmail string, configID string) error {
	if s == nil || s.requests == nil {
		return fmt.Errorf("core: request store is required")
	}
	return s.mapError(s.requests.RecordAccess(ctx, userEmail, configID))
}

func (s *Service) Logger() Logger {
	if s == nil {
		return glog.Nop()
	}
	return s.logger
}

func (s *Service) LoggerProvider() LoggerProvider {
	if s == nil {
		return nil
	}
	return s.loggerProvider
}

func (s *Service) Provisioner() ProvisioningService {
	if s == nil {
		return nil
	}
	return s.provisioner
}

func (s *Service) Notifier() NotificationService {
	if s == nil {
		return nil
	}
	return s.notifier
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}
