package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-onboarding/core"
	glog "github.com/goliatone/go-logger/glog"
)

// RequestService is the slice of the core service the orchestrator drives.
type RequestService interface {
	FindMatureRequests(ctx context.Context, cfg core.WorkflowConfiguration) ([]core.Request, error)
	FindPendingRequests(ctx context.Context, configID string) ([]core.Request, error)
	FindReminderCandidates(ctx context.Context, cfg core.WorkflowConfiguration) ([]core.Request, error)
	AdvanceStage(ctx context.Context, userEmail string, requestedGroup string, configID string) (core.Request, error)
	UpdateRequestStatus(ctx context.Context, userEmail string, requestedGroup string, configID string, status string, details string) error
	RecordAccess(ctx context.Context, userEmail string, configID string) error
}

// ApprovalEvaluator decides whether a request's current stage is satisfied.
type ApprovalEvaluator interface {
	StageSatisfied(ctx context.Context, req core.Request, cfg core.WorkflowConfiguration) (bool, error)
}

// Orchestrator runs one mailbox task end to end: first ingestion pulls new
// mail for every configuration bound to the mailbox, then each configuration
// gets its lifecycle pass. A failure in either phase never blocks the other,
// and a failing configuration never blocks its siblings.
type Orchestrator struct {
	service     RequestService
	engine      ApprovalEvaluator
	ingestion   core.IngestionService
	provisioner core.ProvisioningService
	notifier    core.NotificationService
	logger      core.Logger
}

type Option func(*Orchestrator)

func WithIngestion(ingestion core.IngestionService) Option {
	return func(o *Orchestrator) {
		o.ingestion = ingestion
	}
}

func WithProvisioner(provisioner core.ProvisioningService) Option {
	return func(o *Orchestrator) {
		o.provisioner = provisioner
	}
}

func WithNotifier(notifier core.NotificationService) Option {
	return func(o *Orchestrator) {
		o.notifier = notifier
	}
}

func WithLogger(logger core.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func New(service RequestService, engine ApprovalEvaluator, opts ...Option) (*Orchestrator, error) {
	if service == nil {
		return nil, fmt.Errorf("orchestrator: request service is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("orchestrator: approval evaluator is required")
	}
	o := &Orchestrator{
		service: service,
		engine:  engine,
		logger:  glog.Nop(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(o)
	}
	return o, nil
}

func (o *Orchestrator) Run(ctx context.Context, task core.MailboxTask) error {
	if o == nil || o.service == nil {
		return fmt.Errorf("orchestrator: not configured")
	}

	var failures []error
	if o.ingestion != nil {
		if err := o.ingestion.Ingest(ctx, task.Mailbox, task.Configs); err != nil {
			o.logger.Error("ingestion phase failed",
				"mailbox_id", task.Mailbox.ID,
				"error", err,
			)
			failures = append(failures, fmt.Errorf("ingest mailbox %s: %w", task.Mailbox.ID, err))
		}
	}

	for _, cfg := range task.Configs {
		if err := o.processActions(ctx, cfg); err != nil {
			o.logger.Error("action phase failed",
				"config_id", cfg.ID,
				"error", err,
			)
			failures = append(failures, fmt.Errorf("process config %s: %w", cfg.ID, err))
		}
		if err := o.processReminders(ctx, cfg); err != nil {
			o.logger.Error("reminder phase failed",
				"config_id", cfg.ID,
				"error", err,
			)
			failures = append(failures, fmt.Errorf("remind config %s: %w", cfg.ID, err))
		}
	}
	return errors.Join(failures...)
}

// processActions attaches mature unprocessed requests to their first stage,
// advances pending requests whose stage is satisfied, and finalizes requests
// that cleared the last stage.
func (o *Orchestrator) processActions(ctx context.Context, cfg core.WorkflowConfiguration) error {
	mature, err := o.service.FindMatureRequests(ctx, cfg)
	if err != nil {
		return err
	}
	for _, req := range mature {
		// Attach is a status flip: the request keeps its current stage and
		// starts waiting on that stage's approvers.
		stage := req.CurrentStage
		if stage < 1 {
			stage = 1
		}
		if attachErr := o.service.UpdateRequestStatus(ctx, req.UserEmail, req.RequestedGroup, req.ConfigID,
			core.PendingStatus(stage), fmt.Sprintf("attached to stage %d approval", stage)); attachErr != nil {
			o.logger.Warn("failed to attach request to approval stage",
				"request_id", req.ID,
				"stage", stage,
				"error", attachErr,
			)
		}
	}

	pending, err := o.service.FindPendingRequests(ctx, cfg.ID)
	if err != nil {
		return err
	}
	for _, req := range pending {
		satisfied, evalErr := o.engine.StageSatisfied(ctx, req, cfg)
		if evalErr != nil {
			// Directory outages degrade to skipping; the next pass retries.
			o.logger.Warn("stage evaluation unavailable",
				"request_id", req.ID,
				"stage", req.CurrentStage,
				"error", evalErr,
			)
			continue
		}
		if !satisfied {
			continue
		}

		if req.CurrentStage < req.StageApprovals.MaxStage() {
			if _, advanceErr := o.service.AdvanceStage(ctx, req.UserEmail, req.RequestedGroup, req.ConfigID); advanceErr != nil {
				o.logger.Warn("failed to advance satisfied request",
					"request_id", req.ID,
					"error", advanceErr,
				)
			}
			continue
		}
		o.finalize(ctx, req, cfg)
	}
	return nil
}

// finalize provisions access for a fully approved request. When provisioning
// fails the request keeps its pending status so the next pass retries; only
// a successful grant is terminal.
func (o *Orchestrator) finalize(ctx context.Context, req core.Request, cfg core.WorkflowConfiguration) {
	if o.provisioner == nil {
		o.logger.Warn("no provisioner configured, leaving request pending",
			"request_id", req.ID,
		)
		return
	}
	if err := o.provisioner.Apply(ctx, req.UserEmail, cfg.Target); err != nil {
		o.logger.Error("provisioning failed",
			"request_id", req.ID,
			"user_email", req.UserEmail,
			"error", err,
		)
		if noteErr := o.service.UpdateRequestStatus(ctx, req.UserEmail, req.RequestedGroup, req.ConfigID, req.Status,
			fmt.Sprintf("provisioning failed: %v", err)); noteErr != nil {
			o.logger.Warn("failed to note provisioning failure", "request_id", req.ID, "error", noteErr)
		}
		return
	}

	if err := o.service.RecordAccess(ctx, req.UserEmail, req.ConfigID); err != nil {
		o.logger.Warn("failed to record access grant",
			"request_id", req.ID,
			"error", err,
		)
	}
	if err := o.service.UpdateRequestStatus(ctx, req.UserEmail, req.RequestedGroup, req.ConfigID,
		core.StatusCompleted, "access granted"); err != nil {
		o.logger.Error("failed to complete request",
			"request_id", req.ID,
			"error", err,
		)
		return
	}
	o.logger.Info("request completed",
		"request_id", req.ID,
		"user_email", req.UserEmail,
		"config_id", req.ConfigID,
	)
}

// processReminders nudges approvers on requests idle past the threshold.
// Sends are best effort; a successful send touches the request so the same
// approver is not nudged again until the threshold elapses anew.
func (o *Orchestrator) processReminders(ctx context.Context, cfg core.WorkflowConfiguration) error {
	if o.notifier == nil {
		return nil
	}
	due, err := o.service.FindReminderCandidates(ctx, cfg)
	if err != nil {
		return err
	}
	for _, req := range due {
		if sendErr := o.notifier.SendReminder(ctx, req, cfg); sendErr != nil {
			o.logger.Warn("reminder delivery failed",
				"request_id", req.ID,
				"error", sendErr,
			)
			continue
		}
		if touchErr := o.service.UpdateRequestStatus(ctx, req.UserEmail, req.RequestedGroup, req.ConfigID,
			req.Status, "reminder sent"); touchErr != nil {
			o.logger.Warn("failed to touch reminded request",
				"request_id", req.ID,
				"error", touchErr,
			)
		}
	}
	return nil
}
