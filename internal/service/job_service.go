package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nurpe/bidworks/internal/model"
)

// JobService owns customer job intake: create, edit while open, cancel.
// Jobs are never deleted, only status-transitioned.
type JobService struct {
	jobs JobStore
	log  zerolog.Logger
}

func NewJobService(jobs JobStore, log zerolog.Logger) *JobService {
	return &JobService{jobs: jobs, log: log}
}

type JobInput struct {
	Principal      model.Principal
	Category       string
	Description    string
	EstimateAmount float64
	TimelineDays   int
	Lat            float64
	Lon            float64
}

func (s *JobService) CreateJob(ctx context.Context, input JobInput) (*model.Job, error) {
	if !input.Principal.IsCustomer() {
		return nil, ErrPermissionDenied
	}
	if err := validateJobInput(input); err != nil {
		return nil, err
	}

	return s.jobs.CreateJob(ctx, model.Job{
		CustomerID:     input.Principal.UserID,
		Category:       strings.TrimSpace(input.Category),
		Description:    strings.TrimSpace(input.Description),
		EstimateAmount: input.EstimateAmount,
		TimelineDays:   input.TimelineDays,
		Lat:            input.Lat,
		Lon:            input.Lon,
	})
}

// Get is the unmetered read for the job's owner or an admin. Contractors go
// through the lead gate instead.
func (s *JobService) Get(ctx context.Context, id uuid.UUID, actor model.Principal) (*model.Job, error) {
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !actor.IsAdmin() && job.CustomerID != actor.UserID {
		return nil, ErrPermissionDenied
	}
	return job, nil
}

// UpdateJob applies owner edits, permitted only while the job is open.
func (s *JobService) UpdateJob(ctx context.Context, id uuid.UUID, input JobInput) (*model.Job, error) {
	job, err := s.Get(ctx, id, input.Principal)
	if err != nil {
		return nil, err
	}
	if err := validateJobInput(input); err != nil {
		return nil, err
	}

	job.Category = strings.TrimSpace(input.Category)
	job.Description = strings.TrimSpace(input.Description)
	job.EstimateAmount = input.EstimateAmount
	job.TimelineDays = input.TimelineDays
	job.Lat = input.Lat
	job.Lon = input.Lon

	updated, err := s.jobs.UpdateOpenJob(ctx, *job)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, ErrJobNotOpen
	}
	return s.jobs.GetJob(ctx, id)
}

// CancelJob is the only backwards-looking transition a job allows, and only
// while still open.
func (s *JobService) CancelJob(ctx context.Context, id uuid.UUID, actor model.Principal) (*model.Job, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}

	cancelled, err := s.jobs.CancelOpenJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cancelled {
		return nil, ErrJobNotOpen
	}
	return s.jobs.GetJob(ctx, id)
}

func validateJobInput(input JobInput) error {
	if strings.TrimSpace(input.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if input.EstimateAmount <= 0 {
		return fmt.Errorf("%w: estimate must be positive", ErrInvalidInput)
	}
	if input.TimelineDays <= 0 {
		return fmt.Errorf("%w: timeline must be positive", ErrInvalidInput)
	}
	if input.Lat < -90 || input.Lat > 90 || input.Lon < -180 || input.Lon > 180 {
		return fmt.Errorf("%w: invalid coordinates", ErrInvalidInput)
	}
	return nil
}
