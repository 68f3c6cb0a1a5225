package model

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusOpen       JobStatus = "OPEN"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusCancelled  JobStatus = "CANCELLED"
)

func ValidJobStatus(s JobStatus) bool {
	switch s {
	case JobStatusOpen, JobStatusInProgress, JobStatusCompleted, JobStatusCancelled:
		return true
	default:
		return false
	}
}

type Job struct {
	ID             uuid.UUID
	CustomerID     uuid.UUID
	Category       string
	Description    string
	EstimateAmount float64
	TimelineDays   int
	Status         JobStatus
	Lat            float64
	Lon            float64
	AcceptedBidID  *uuid.UUID
	// Version guards the accept decision; bumped on every status change.
	Version   int
	CreatedAt time.Time
}

// JobCursor is a keyset-pagination position in the visible-jobs listing.
// The zero value means "from the newest job".
type JobCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

func (c JobCursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.ID == uuid.Nil
}
