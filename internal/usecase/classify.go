package usecase

import (
	"errors"

	"PulseIngest/internal/domain"
)

// Classify maps a per-URL failure onto the permanent/transient policy.
// Only dead-source fetch statuses and robots refusals are permanent; every
// other error, including generation and storage errors, is retried next run.
func Classify(err error) domain.Outcome {
	var statusErr *domain.FetchStatusError
	if errors.As(err, &statusErr) && statusErr.Permanent() {
		return domain.OutcomePermanent
	}
	if errors.Is(err, domain.ErrDisallowed) {
		return domain.OutcomePermanent
	}
	return domain.OutcomeTransient
}
