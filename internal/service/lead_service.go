package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nurpe/bidworks/internal/model"
)

// LeadStore is the per contractor, per cycle lead ledger. ChargeLead must be
// atomic against concurrent calls for the same contractor: a single unit is
// never spent twice and the charged-job set dedupes repeat views.
type LeadStore interface {
	ChargeLead(ctx context.Context, contractorID uuid.UUID, cycleStart time.Time, jobID uuid.UUID, leadsLimit int) (model.LeadChargeOutcome, error)
	HasCharge(ctx context.Context, contractorID uuid.UUID, cycleStart time.Time, jobID uuid.UUID) (bool, error)
	EnsureUsage(ctx context.Context, contractorID uuid.UUID, cycleStart time.Time, leadsLimit int) (bool, error)
	GetUsage(ctx context.Context, contractorID uuid.UUID, cycleStart time.Time) (*model.LeadUsage, error)
	ListCharges(ctx context.Context, contractorID uuid.UUID, cycleStart time.Time) ([]model.LeadCharge, error)
}

// StatementGenerator renders a cycle statement as a spreadsheet.
type StatementGenerator interface {
	Generate(statement model.LeadStatement) ([]byte, error)
}

type LeadService struct {
	jobs        JobStore
	leads       LeadStore
	memberships *MembershipService
	visibility  *VisibilityService
	excel       StatementGenerator
	log         zerolog.Logger
}

func NewLeadService(
	jobs JobStore,
	leads LeadStore,
	memberships *MembershipService,
	visibility *VisibilityService,
	excel StatementGenerator,
	log zerolog.Logger,
) *LeadService {
	return &LeadService{
		jobs:        jobs,
		leads:       leads,
		memberships: memberships,
		visibility:  visibility,
		excel:       excel,
		log:         log,
	}
}

// AccessJobDetail is the metered view of a job's full details. The first
// view of a job in a cycle consumes one lead; every later view of the same
// job is free, including after the job leaves the open state. A contractor
// at their limit gets ErrLeadLimitExceeded for never-seen jobs only.
func (s *LeadService) AccessJobDetail(
	ctx context.Context,
	contractorID, jobID uuid.UUID,
	now time.Time,
) (*model.Job, bool, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}

	membership, err := s.memberships.Current(ctx, contractorID, now)
	if err != nil {
		return nil, false, err
	}

	charged, err := s.leads.HasCharge(ctx, contractorID, membership.CycleStart, jobID)
	if err != nil {
		return nil, false, err
	}
	if !charged && !s.visibility.JobVisible(membership, job, now) {
		// Outside the visibility window the job does not exist for this
		// contractor; already-charged jobs stay readable.
		return nil, false, ErrNotFound
	}

	outcome, err := s.leads.ChargeLead(ctx, contractorID, membership.CycleStart, jobID, membership.LeadsLimit)
	if err != nil {
		return nil, false, err
	}
	switch outcome {
	case model.LeadCharged:
		return job, true, nil
	case model.LeadAlreadyCharged:
		return job, false, nil
	case model.LeadLimitReached:
		return nil, false, ErrLeadLimitExceeded
	default:
		return nil, false, fmt.Errorf("unexpected lead charge outcome %d", outcome)
	}
}

// Usage returns the contractor's counter for the current cycle, seeding the
// row if the cycle has not been touched yet.
func (s *LeadService) Usage(ctx context.Context, contractorID uuid.UUID, now time.Time) (*model.LeadUsage, error) {
	membership, err := s.memberships.Current(ctx, contractorID, now)
	if err != nil {
		return nil, err
	}
	if _, err := s.leads.EnsureUsage(ctx, contractorID, membership.CycleStart, membership.LeadsLimit); err != nil {
		return nil, err
	}
	return s.leads.GetUsage(ctx, contractorID, membership.CycleStart)
}

type StatementResult struct {
	FileName string
	Content  []byte
}

// UsageStatement exports the contractor's current-cycle charges as a
// spreadsheet.
func (s *LeadService) UsageStatement(ctx context.Context, contractorID uuid.UUID, now time.Time) (*StatementResult, error) {
	membership, err := s.memberships.Current(ctx, contractorID, now)
	if err != nil {
		return nil, err
	}

	usage, err := s.Usage(ctx, contractorID, now)
	if err != nil {
		return nil, err
	}

	charges, err := s.leads.ListCharges(ctx, contractorID, membership.CycleStart)
	if err != nil {
		return nil, err
	}

	lines := make([]model.LeadStatementLine, 0, len(charges))
	for _, charge := range charges {
		line := model.LeadStatementLine{JobID: charge.JobID, ChargedAt: charge.ChargedAt}
		if job, err := s.jobs.GetJob(ctx, charge.JobID); err == nil {
			line.Category = job.Category
		}
		lines = append(lines, line)
	}

	statement := model.LeadStatement{
		ContractorID: contractorID,
		Tier:         membership.Tier,
		CycleStart:   membership.CycleStart,
		LeadsUsed:    usage.LeadsUsed,
		LeadsLimit:   usage.LeadsLimit,
		Lines:        lines,
	}

	content, err := s.excel.Generate(statement)
	if err != nil {
		return nil, err
	}

	fileName := fmt.Sprintf(
		"leads-%s-%s.xlsx",
		strings.ToLower(string(membership.Tier)),
		membership.CycleStart.Format("20060102"),
	)
	return &StatementResult{FileName: fileName, Content: content}, nil
}
