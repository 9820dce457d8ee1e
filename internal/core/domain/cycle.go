package domain

import "time"

// CycleStep names one stage of a collection cycle.
type CycleStep string

const (
	StepLease   CycleStep = "lease"
	StepFetch   CycleStep = "fetch"
	StepParse   CycleStep = "parse"
	StepMap     CycleStep = "map"
	StepPublish CycleStep = "publish"
)

// CycleReport summarises one finished collection cycle. It is produced for logging and
// monitoring only and is never fed back into a later cycle.
type CycleReport struct {
	ID             string        `json:"id"`
	Timestamp      time.Time     `json:"timestamp"`
	Mounts         int           `json:"mounts"`
	Points         int           `json:"points"`
	SkippedMounts  int           `json:"skipped_mounts"`
	TotalListeners int64         `json:"listeners_total"`
	Duration       time.Duration `json:"duration_ns"`
	// Skipped is set when the cycle did not run because another replica holds the lease.
	Skipped bool `json:"skipped"`
}
