package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nurpe/bidworks/internal/model"
	"github.com/nurpe/bidworks/internal/repository"
)

// BidStore is the persisted bid collection plus the single serialized
// decision operation per job.
type BidStore interface {
	CreateBid(ctx context.Context, bid model.Bid) (*model.Bid, error)
	GetBid(ctx context.Context, id uuid.UUID) (*model.Bid, error)
	ListBidsForJob(ctx context.Context, jobID uuid.UUID) ([]model.Bid, error)
	HasPendingBid(ctx context.Context, jobID, contractorID uuid.UUID) (bool, error)
	DecideBid(ctx context.Context, jobID, bidID uuid.UUID, target model.BidStatus) (model.BidDecisionOutcome, *model.Job, *model.Bid, error)
}

// ObligationTrigger creates the payment milestones after a committed accept.
type ObligationTrigger interface {
	TriggerForBid(ctx context.Context, job model.Job, bid model.Bid) error
}

// decideAttempts bounds retries when a decision loses a version race.
const decideAttempts = 3

type BidService struct {
	jobs     JobStore
	bids     BidStore
	gate     *LeadService
	payments ObligationTrigger
	log      zerolog.Logger
	now      func() time.Time
	backoff  func(attempt int)
}

func NewBidService(
	jobs JobStore,
	bids BidStore,
	gate *LeadService,
	payments ObligationTrigger,
	log zerolog.Logger,
) *BidService {
	return &BidService{
		jobs:     jobs,
		bids:     bids,
		gate:     gate,
		payments: payments,
		log:      log,
		now:      time.Now,
		backoff: func(attempt int) {
			time.Sleep(time.Duration(attempt) * 20 * time.Millisecond)
		},
	}
}

type SubmitBidInput struct {
	JobID         uuid.UUID
	Principal     model.Principal
	Amount        float64
	TimelineStart time.Time
	TimelineEnd   time.Time
	Materials     *string
	Warranty      *string
}

// SubmitBid places a pending bid. The caller must be a contractor whose
// membership and lead gate grant access to the job; the gate charges a lead
// here if this job was never viewed.
func (s *BidService) SubmitBid(ctx context.Context, input SubmitBidInput) (*model.Bid, error) {
	if !input.Principal.IsContractor() {
		return nil, ErrPermissionDenied
	}
	if input.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if input.TimelineStart.IsZero() || input.TimelineEnd.IsZero() || input.TimelineEnd.Before(input.TimelineStart) {
		return nil, fmt.Errorf("%w: invalid timeline window", ErrInvalidInput)
	}

	job, err := s.jobs.GetJob(ctx, input.JobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if job.Status != model.JobStatusOpen {
		return nil, ErrJobNotOpen
	}

	duplicate, err := s.bids.HasPendingBid(ctx, input.JobID, input.Principal.UserID)
	if err != nil {
		return nil, err
	}
	if duplicate {
		return nil, ErrDuplicateBid
	}

	if _, _, err := s.gate.AccessJobDetail(ctx, input.Principal.UserID, input.JobID, s.now()); err != nil {
		return nil, err
	}

	bid, err := s.bids.CreateBid(ctx, model.Bid{
		JobID:         input.JobID,
		ContractorID:  input.Principal.UserID,
		Amount:        input.Amount,
		TimelineStart: input.TimelineStart,
		TimelineEnd:   input.TimelineEnd,
		Materials:     input.Materials,
		Warranty:      input.Warranty,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicatePendingBid) {
			return nil, ErrDuplicateBid
		}
		return nil, err
	}
	return bid, nil
}

// AcceptBid chooses the job's winner. Exactly one accept per job can ever
// succeed; a concurrent loser gets ErrBidAlreadyDecided or ErrJobNotOpen,
// never a silent no-op. The committed accept then triggers the payment
// obligations; their failure is reported and reconciled, never rolled back
// into the accept.
func (s *BidService) AcceptBid(ctx context.Context, jobID, bidID uuid.UUID, actor model.Principal) (*model.Bid, error) {
	if err := s.authorizeDecision(ctx, jobID, actor); err != nil {
		return nil, err
	}

	job, bid, err := s.decide(ctx, jobID, bidID, model.BidStatusAccepted)
	if err != nil {
		return nil, err
	}

	if err := s.payments.TriggerForBid(ctx, *job, *bid); err != nil {
		// The job is committed to this contractor; the sweep picks the
		// missing obligations up.
		s.log.Error().
			Err(err).
			Str("job_id", jobID.String()).
			Str("bid_id", bidID.String()).
			Msg("inconsistency: obligations not created after accept")
	}
	return bid, nil
}

// RejectBid declines a pending bid. Once any bid on the job is accepted the
// remaining pending bids are immutable and rejecting them is refused.
func (s *BidService) RejectBid(ctx context.Context, jobID, bidID uuid.UUID, actor model.Principal) (*model.Bid, error) {
	if err := s.authorizeDecision(ctx, jobID, actor); err != nil {
		return nil, err
	}
	_, bid, err := s.decide(ctx, jobID, bidID, model.BidStatusRejected)
	if err != nil {
		return nil, err
	}
	return bid, nil
}

// ListBids returns a job's bid set to its owner or an admin.
func (s *BidService) ListBids(ctx context.Context, jobID uuid.UUID, actor model.Principal) ([]model.Bid, error) {
	if err := s.authorizeDecision(ctx, jobID, actor); err != nil {
		return nil, err
	}
	return s.bids.ListBidsForJob(ctx, jobID)
}

func (s *BidService) authorizeDecision(ctx context.Context, jobID uuid.UUID, actor model.Principal) error {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if actor.IsAdmin() {
		return nil
	}
	if actor.IsCustomer() && job.CustomerID == actor.UserID {
		return nil
	}
	return ErrPermissionDenied
}

func (s *BidService) decide(ctx context.Context, jobID, bidID uuid.UUID, target model.BidStatus) (*model.Job, *model.Bid, error) {
	for attempt := 1; attempt <= decideAttempts; attempt++ {
		outcome, job, bid, err := s.bids.DecideBid(ctx, jobID, bidID, target)
		if err != nil {
			return nil, nil, err
		}
		switch outcome {
		case model.DecisionApplied:
			return job, bid, nil
		case model.DecisionJobNotFound, model.DecisionBidNotFound:
			return nil, nil, ErrNotFound
		case model.DecisionJobNotOpen:
			return nil, nil, ErrJobNotOpen
		case model.DecisionBidAlreadyDecided:
			return nil, nil, ErrBidAlreadyDecided
		case model.DecisionJobHasAcceptedBid:
			return nil, nil, ErrJobHasAcceptedBid
		case model.DecisionVersionConflict:
			if attempt < decideAttempts {
				s.backoff(attempt)
			}
		default:
			return nil, nil, fmt.Errorf("unexpected decision outcome %d", outcome)
		}
	}
	return nil, nil, ErrConflict
}
