package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/bidworks/internal/model"
)

// JobStore is the persisted job collection.
type JobStore interface {
	CreateJob(ctx context.Context, job model.Job) (*model.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error)
	UpdateOpenJob(ctx context.Context, job model.Job) (bool, error)
	CancelOpenJob(ctx context.Context, id uuid.UUID) (bool, error)
	ListOpenJobs(ctx context.Context, visibleBefore time.Time, cursor model.JobCursor, limit int) ([]model.Job, error)
}

// Distancer is the geocoding collaborator boundary: the engine only ever
// consumes a numeric distance in kilometers.
type Distancer interface {
	DistanceKm(aLat, aLon, bLat, bLon float64) float64
}

type VisibilityService struct {
	jobs        JobStore
	memberships *MembershipService
	distancer   Distancer
}

func NewVisibilityService(jobs JobStore, memberships *MembershipService, distancer Distancer) *VisibilityService {
	return &VisibilityService{jobs: jobs, memberships: memberships, distancer: distancer}
}

// batchSize is how many candidate rows one storage round-trip scans while
// filling a page after radius filtering.
const batchSize = 100

// VisibleJobs returns one page of the jobs the contractor may currently see,
// newest first: open, inside the tier's radius, and past the tier's access
// delay. The returned cursor resumes the listing; a zero cursor means the
// listing is exhausted. No side effects, no lead charges.
func (s *VisibilityService) VisibleJobs(
	ctx context.Context,
	contractorID uuid.UUID,
	now time.Time,
	cursor model.JobCursor,
	limit int,
) ([]model.Job, model.JobCursor, error) {
	if limit <= 0 {
		return nil, model.JobCursor{}, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}

	membership, err := s.memberships.Current(ctx, contractorID, now)
	if err != nil {
		return nil, model.JobCursor{}, err
	}

	visibleBefore := now.Add(-time.Duration(membership.AccessDelayHours) * time.Hour)

	visible := make([]model.Job, 0, limit)
	for {
		batch, err := s.jobs.ListOpenJobs(ctx, visibleBefore, cursor, batchSize)
		if err != nil {
			return nil, model.JobCursor{}, err
		}
		for _, job := range batch {
			cursor = model.JobCursor{CreatedAt: job.CreatedAt, ID: job.ID}
			if !s.withinRadius(membership, job) {
				continue
			}
			visible = append(visible, job)
			if len(visible) == limit {
				return visible, cursor, nil
			}
		}
		if len(batch) < batchSize {
			return visible, model.JobCursor{}, nil
		}
	}
}

// JobVisible reports whether one job is currently inside the contractor's
// visibility window. Used by the lead gate before charging a first view.
func (s *VisibilityService) JobVisible(membership *model.CurrentMembership, job *model.Job, now time.Time) bool {
	if job.Status != model.JobStatusOpen {
		return false
	}
	delay := time.Duration(membership.AccessDelayHours) * time.Hour
	if now.Sub(job.CreatedAt) < delay {
		return false
	}
	return s.withinRadius(membership, *job)
}

func (s *VisibilityService) withinRadius(membership *model.CurrentMembership, job model.Job) bool {
	if membership.UnboundedRadius() {
		return true
	}
	distance := s.distancer.DistanceKm(job.Lat, job.Lon, membership.HomeLat, membership.HomeLon)
	return distance <= membership.RadiusKm
}
