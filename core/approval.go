package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

// ApprovalEngine computes required, effective, and missing approvers over a
// request snapshot. All primary reads come from the pre-populated
// stage_approvals structure; the directory is only consulted on the degraded
// legacy-data path.
type ApprovalEngine struct {
	directory DirectoryService
	logger    Logger
}

func NewApprovalEngine(directory DirectoryService, logger Logger) *ApprovalEngine {
	return &ApprovalEngine{
		directory: directory,
		logger:    glog.Ensure(logger),
	}
}

// RequiredApprovers returns the required set for the request's current stage.
// When the stage entry is absent or carries no required set (legacy data),
// it falls back to a live directory resolution for stages 1 and 2 and logs
// the request as degraded.
func (e *ApprovalEngine) RequiredApprovers(ctx context.Context, req Request, cfg WorkflowConfiguration) ([]string, error) {
	approval, ok := req.CurrentStageApproval()
	if ok {
		return normalizeSet(approval.Required), nil
	}

	e.logger.Warn("request has legacy or malformed stage approvals, falling back to live directory lookup",
		"request_id", req.ID,
		"config_id", cfg.ID,
		"stage", req.CurrentStage,
	)

	if e.directory == nil {
		return nil, nil
	}
	switch req.CurrentStage {
	case 1, 2:
		resolved, err := e.directory.RequiredApproversForStage(ctx, req.CurrentStage, req, cfg)
		if err != nil {
			return nil, NewTransientError("core: directory lookup failed", err)
		}
		return normalizeSet(resolved), nil
	}
	return nil, nil
}

// EffectiveApprovers applies delegation substitution to the required set.
// Substitution is single level: a delegate of a delegate is not resolved
// transitively. Duplicates collapse since approvers compare as a set.
func (e *ApprovalEngine) EffectiveApprovers(ctx context.Context, req Request, cfg WorkflowConfiguration) ([]string, error) {
	required, err := e.RequiredApprovers(ctx, req, cfg)
	if err != nil {
		return nil, err
	}
	if len(req.Delegations) == 0 {
		return required, nil
	}

	substitution := make(map[string]string, len(req.Delegations))
	for _, delegation := range req.Delegations {
		original := NormalizeIdentity(delegation.Original)
		delegate := NormalizeIdentity(delegation.Delegate)
		if original == "" || delegate == "" {
			continue
		}
		substitution[original] = delegate
	}

	effective := make([]string, 0, len(required))
	for _, approver := range required {
		if delegate, ok := substitution[approver]; ok {
			approver = delegate
		}
		if !containsIdentity(effective, approver) {
			effective = append(effective, approver)
		}
	}
	return effective, nil
}

// MissingApprovers returns the effective approvers that have not yet approved
// the current stage. The stage is satisfied exactly when the result is empty.
func (e *ApprovalEngine) MissingApprovers(ctx context.Context, req Request, cfg WorkflowConfiguration) ([]string, error) {
	effective, err := e.EffectiveApprovers(ctx, req, cfg)
	if err != nil {
		return nil, err
	}
	approval := req.StageApprovals[req.CurrentStage]

	missing := make([]string, 0, len(effective))
	for _, approver := range effective {
		if !approval.HasApproved(approver) {
			missing = append(missing, approver)
		}
	}
	return missing, nil
}

// StageSatisfied reports whether the current stage has no missing approvers.
func (e *ApprovalEngine) StageSatisfied(ctx context.Context, req Request, cfg WorkflowConfiguration) (bool, error) {
	missing, err := e.MissingApprovers(ctx, req, cfg)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

func normalizeSet(identities []string) []string {
	out := make([]string, 0, len(identities))
	for _, identity := range identities {
		normalized := NormalizeIdentity(identity)
		if normalized == "" || containsIdentity(out, normalized) {
			continue
		}
		out = append(out, normalized)
	}
	return out
}
