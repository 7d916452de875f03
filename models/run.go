package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusSkipped   RunStatus = "skipped"
	RunStatusFailed    RunStatus = "failed"
)

// ScrapeRun is the journal row written for every cycle.
type ScrapeRun struct {
	ID            string     `json:"id" db:"id"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	Status        RunStatus  `json:"status" db:"status"`
	NamesFound    int        `json:"names_found" db:"names_found"`
	DonorsWritten int        `json:"donors_written" db:"donors_written"`
	Fingerprint   string     `json:"fingerprint" db:"fingerprint"`
	Error         string     `json:"error,omitempty" db:"error"`
}
