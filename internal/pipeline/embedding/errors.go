package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrTransientProvider marks network/timeout/rate-limit failures that the
	// retry policy may re-attempt.
	ErrTransientProvider = errors.New("transient provider error")
	// ErrPermanentProvider marks auth/quota/invalid-request failures; the
	// caller must not retry.
	ErrPermanentProvider = errors.New("permanent provider error")
)

// Classify wraps a raw provider error with the transient/permanent sentinel
// the retry policy keys on. Timeouts and cancellations count as transient;
// the run-level deadline still bounds total work.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransientProvider, err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429 || apiErr.StatusCode >= 500:
			return fmt.Errorf("%w: %v", ErrTransientProvider, err)
		default:
			return fmt.Errorf("%w: %v", ErrPermanentProvider, err)
		}
	}

	var genErr genai.APIError
	if errors.As(err, &genErr) {
		switch {
		case genErr.Code == 429 || genErr.Code >= 500:
			return fmt.Errorf("%w: %v", ErrTransientProvider, err)
		default:
			return fmt.Errorf("%w: %v", ErrPermanentProvider, err)
		}
	}

	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.ResourceExhausted, codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
			return fmt.Errorf("%w: %v", ErrTransientProvider, err)
		case codes.Unauthenticated, codes.PermissionDenied, codes.InvalidArgument, codes.NotFound:
			return fmt.Errorf("%w: %v", ErrPermanentProvider, err)
		}
	}

	// Unknown failure modes default to transient so the budget, not the
	// classifier, decides when to give up.
	return fmt.Errorf("%w: %v", ErrTransientProvider, err)
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientProvider)
}

func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanentProvider)
}
