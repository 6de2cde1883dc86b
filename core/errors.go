package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	OnboardingErrorConflict                = "ONBOARDING_REQUEST_CONFLICT"
	OnboardingErrorNotFound                = "ONBOARDING_NOT_FOUND"
	OnboardingErrorCollaboratorUnavailable = "ONBOARDING_COLLABORATOR_UNAVAILABLE"
	OnboardingErrorProvisioningFailed      = "ONBOARDING_PROVISIONING_FAILED"
	OnboardingErrorStoreFailure            = "ONBOARDING_STORE_FAILURE"
	OnboardingErrorBadInput                = "ONBOARDING_BAD_INPUT"
	OnboardingErrorInternal                = "ONBOARDING_INTERNAL_ERROR"
)

// ErrorMapper converts arbitrary errors into the onboarding error envelope.
type ErrorMapper func(err error) *goerrors.Error

func NewConflictError(message string) *goerrors.Error {
	return newOnboardingError(message, goerrors.CategoryConflict, OnboardingErrorConflict).
		WithCode(http.StatusConflict)
}

func NewNotFoundError(message string) *goerrors.Error {
	return newOnboardingError(message, goerrors.CategoryNotFound, OnboardingErrorNotFound).
		WithCode(http.StatusNotFound)
}

// NewTransientError marks a collaborator as temporarily unreachable. Callers
// treat the result as empty/false and retry on the next cycle.
func NewTransientError(message string, cause error) *goerrors.Error {
	if cause != nil {
		return goerrors.Wrap(cause, goerrors.CategoryExternal, message).
			WithTextCode(OnboardingErrorCollaboratorUnavailable)
	}
	return newOnboardingError(message, goerrors.CategoryExternal, OnboardingErrorCollaboratorUnavailable)
}

// NewProvisioningError marks a failed target write. The affected request must
// stay in its last pending state so the next satisfied-stage check retries.
func NewProvisioningError(message string, cause error) *goerrors.Error {
	if cause != nil {
		return goerrors.Wrap(cause, goerrors.CategoryOperation, message).
			WithTextCode(OnboardingErrorProvisioningFailed)
	}
	return newOnboardingError(message, goerrors.CategoryOperation, OnboardingErrorProvisioningFailed)
}

// NewStoreError wraps a persistence failure. Store failures always propagate.
func NewStoreError(message string, cause error) *goerrors.Error {
	if cause != nil {
		return goerrors.Wrap(cause, goerrors.CategoryInternal, message).
			WithTextCode(OnboardingErrorStoreFailure).
			WithSeverity(goerrors.SeverityError)
	}
	return newOnboardingError(message, goerrors.CategoryInternal, OnboardingErrorStoreFailure)
}

func newOnboardingError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return goerrors.New(message, category).WithTextCode(textCode)
}

func IsConflict(err error) bool {
	return hasTextCode(err, OnboardingErrorConflict) || errors.Is(err, ErrRequestConflict)
}

func IsNotFound(err error) bool {
	return hasTextCode(err, OnboardingErrorNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrMailboxNotFound)
}

func IsTransient(err error) bool {
	return hasTextCode(err, OnboardingErrorCollaboratorUnavailable)
}

func IsProvisioningFailure(err error) bool {
	return hasTextCode(err, OnboardingErrorProvisioningFailed)
}

func IsStoreFailure(err error) bool {
	return hasTextCode(err, OnboardingErrorStoreFailure)
}

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}

func onboardingErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureOnboardingEnvelope(richErr)
	}

	// Sentinel branches wrap rather than rebuild so errors.Is still reaches
	// the sentinel through the envelope.
	switch {
	case errors.Is(err, ErrRequestConflict):
		return goerrors.Wrap(err, goerrors.CategoryConflict, "core: request conflict").
			WithTextCode(OnboardingErrorConflict).
			WithCode(http.StatusConflict)
	case errors.Is(err, ErrRequestNotFound), errors.Is(err, ErrMailboxNotFound):
		return goerrors.Wrap(err, goerrors.CategoryNotFound, "core: not found").
			WithTextCode(OnboardingErrorNotFound).
			WithCode(http.StatusNotFound)
	case errors.Is(err, ErrRequestTerminal), errors.Is(err, ErrStageOutOfRange), errors.Is(err, ErrMalformedApprovals):
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "core: invalid request state").
			WithTextCode(OnboardingErrorBadInput)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "core: invalid input").
			WithTextCode(OnboardingErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureOnboardingEnvelope(mapped)
}

func ensureOnboardingEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err = err.WithTextCode(OnboardingErrorInternal)
	}
	return err
}
