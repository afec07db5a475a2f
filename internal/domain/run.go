package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RunStatus summarizes how a pipeline run ended without a hard failure.
type RunStatus string

const (
	StatusNoCandidates     RunStatus = "no_candidates"
	StatusNothingPublished RunStatus = "nothing_published"
	StatusPublished        RunStatus = "published"
)

// Outcome is the terminal result of processing one URL.
type Outcome string

const (
	OutcomePublished Outcome = "published"
	OutcomeSkipped   Outcome = "skipped"
	OutcomePermanent Outcome = "permanent_failure"
	OutcomeTransient Outcome = "transient_failure"
)

// MarksProcessed reports whether the URL must be added to the processed set.
func (o Outcome) MarksProcessed() bool {
	return o != OutcomeTransient
}

// RunReport is the accounting of a single pipeline run.
type RunReport struct {
	StartedAt     time.Time
	FinishedAt    time.Time
	Status        RunStatus
	Candidates    int
	New           int
	Skipped       int
	Permanent     int
	Transient     int
	Published     []string
	ManifestTotal int
}

// Summary renders a one-paragraph human description of the run.
func (r RunReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pulse run %s: %d candidate URLs, %d new.", r.Status, r.Candidates, r.New)
	if r.New > 0 {
		fmt.Fprintf(&b, " Published %d, skipped %d, permanent failures %d, transient failures %d.",
			len(r.Published), r.Skipped, r.Permanent, r.Transient)
	}
	if r.Status == StatusPublished {
		fmt.Fprintf(&b, " Manifest now holds %d items.", r.ManifestTotal)
	}
	return b.String()
}

var (
	// ErrChannelNotFound means the configured channel name matched nothing visible to the bot.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrNotInChannel means the bot can see the channel but was never invited to it.
	ErrNotInChannel = errors.New("bot is not a member of the channel")
)

// ConfigError lists required settings that are missing.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "missing required configuration: " + strings.Join(e.Missing, ", ")
}
