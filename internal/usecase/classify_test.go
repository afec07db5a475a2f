package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"PulseIngest/internal/domain"
	"PulseIngest/internal/infrastructure/llm"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want domain.Outcome
	}{
		{"unauthorized", &domain.FetchStatusError{StatusCode: 401}, domain.OutcomePermanent},
		{"paywall", fmt.Errorf("fetch: %w", &domain.FetchStatusError{StatusCode: 403}), domain.OutcomePermanent},
		{"not found", &domain.FetchStatusError{StatusCode: 404}, domain.OutcomePermanent},
		{"gone", &domain.FetchStatusError{StatusCode: 410}, domain.OutcomePermanent},
		{"legal", &domain.FetchStatusError{StatusCode: 451}, domain.OutcomePermanent},
		{"robots", fmt.Errorf("fetch: %w", domain.ErrDisallowed), domain.OutcomePermanent},
		{"server error", &domain.FetchStatusError{StatusCode: 500}, domain.OutcomeTransient},
		{"too many requests", &domain.FetchStatusError{StatusCode: 429}, domain.OutcomeTransient},
		{"bad request", &domain.FetchStatusError{StatusCode: 400}, domain.OutcomeTransient},
		{"timeout", context.DeadlineExceeded, domain.OutcomeTransient},
		{"network", errors.New("connection reset by peer"), domain.OutcomeTransient},
		{"llm auth", &llm.APIError{StatusCode: 401}, domain.OutcomeTransient},
		{"llm rate limit", &llm.APIError{StatusCode: 429}, domain.OutcomeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}
