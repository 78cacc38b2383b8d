package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yangwenmai/leadsniper/internal/model"
)

// StepError wraps an error with the step name that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StepName returns the failing step.
func (e *StepError) StepName() string { return e.Step }

// ValidationError marks stage output that is malformed or breaks a stage constraint.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid stage output: " + e.Reason
}

func invalidf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// FailureKind classifies generation failures for user-facing messaging.
type FailureKind string

const (
	FailureQuotaExceeded FailureKind = "quota_exceeded"
	FailureUnauthorized  FailureKind = "unauthorized"
	FailureRateLimited   FailureKind = "rate_limited"
	FailureUnspecified   FailureKind = "unspecified"
)

// GenerationError marks a failed call to the Generator.
type GenerationError struct {
	Kind FailureKind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func generationFailed(err error) error {
	return &GenerationError{Kind: ClassifyError(err), Err: err}
}

// ClassifyError derives the failure kind from a provider HTTP status, falling back to the message text.
func ClassifyError(err error) FailureKind {
	if err == nil {
		return FailureUnspecified
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Kind
	}

	msg := strings.ToLower(err.Error())
	var ae *apiError
	if errors.As(err, &ae) {
		switch {
		case ae.StatusCode == http.StatusUnauthorized || ae.StatusCode == http.StatusForbidden:
			return FailureUnauthorized
		case ae.quotaExhausted() || ae.StatusCode == http.StatusPaymentRequired:
			return FailureQuotaExceeded
		case ae.StatusCode == http.StatusTooManyRequests:
			return FailureRateLimited
		}
	}

	switch {
	case strings.Contains(msg, "quota") || strings.Contains(msg, "resource_exhausted"):
		return FailureQuotaExceeded
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "invalid api key") || strings.Contains(msg, "permission_denied"):
		return FailureUnauthorized
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return FailureRateLimited
	}
	return FailureUnspecified
}

// FailureMessage returns the user-facing message for kind.
func FailureMessage(kind FailureKind) string {
	switch kind {
	case FailureQuotaExceeded:
		return "Model API quota exceeded. Check the provider account billing and add credits."
	case FailureUnauthorized:
		return "Model API key is invalid or expired. Check the configured API key."
	case FailureRateLimited:
		return "Model API rate limit exceeded. Wait a moment and try again."
	default:
		return "Model API call failed."
	}
}

// Error kinds recorded in model.ErrorInfo besides the generation failure kinds.
const (
	KindValidation = "validation"
	KindCanceled   = "canceled"
)

// stepNamer is implemented by errors that carry a pipeline step name.
type stepNamer interface {
	StepName() string
}

// Describe converts a pipeline error into the ErrorInfo stored on an errored lead.
func Describe(err error) model.ErrorInfo {
	step := "unknown"
	var sn stepNamer
	if errors.As(err, &sn) {
		step = sn.StepName()
	}
	info := model.ErrorInfo{
		FailedStep: step,
		Message:    err.Error(),
		FailedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	var ve *ValidationError
	var ge *GenerationError
	switch {
	case errors.As(err, &ve):
		info.Kind = KindValidation
		info.Message = ve.Error()
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		info.Kind = KindCanceled
		info.Retryable = true
	case errors.As(err, &ge):
		info.Kind = string(ge.Kind)
		if ge.Kind != FailureUnspecified {
			info.Message = FailureMessage(ge.Kind)
		}
		info.Retryable = ge.Kind == FailureRateLimited || ge.Kind == FailureUnspecified
	default:
		info.Kind = string(FailureUnspecified)
	}
	return info
}
