package usecase

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/kether-core/internal/core/domain"
)

// ClaimCooldownError reports a reward claimed again inside its period.
type ClaimCooldownError struct {
	Action     domain.RewardAction
	RetryAfter time.Duration
}

func (e *ClaimCooldownError) Error() string {
	return fmt.Sprintf("%s already claimed, retry in %s", e.Action, e.RetryAfter.Round(time.Second))
}

// Unwrap lets callers match domain.ErrRateLimited.
func (e *ClaimCooldownError) Unwrap() error {
	return domain.ErrRateLimited
}

// storeError keeps coded errors intact and classifies everything else as a store outage.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var coded *domain.CodedError
	if errors.As(err, &coded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// publishEvent delivers best-effort events; a failed publish never fails the caller.
func publishEvent(logger *zap.Logger, eventType string, publish func() error) {
	if err := publish(); err != nil {
		logger.Warn("Failed to publish event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
