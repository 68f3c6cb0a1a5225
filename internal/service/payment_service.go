package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nurpe/bidworks/internal/model"
)

// PaymentStore is the persisted obligation collection. Creation is keyed on
// (bid, type) so the trigger can run any number of times.
type PaymentStore interface {
	CreateObligation(ctx context.Context, obligation model.PaymentObligation) (*model.PaymentObligation, error)
	ListForBid(ctx context.Context, bidID uuid.UUID) ([]model.PaymentObligation, error)
	MarkPaid(ctx context.Context, bidID uuid.UUID, obligationType model.ObligationType) (bool, error)
	ListAcceptedBidsMissingObligations(ctx context.Context, limit int) ([]model.Bid, error)
}

// PaymentGateway is the external payment collaborator. The engine hands it
// created obligations and hears back through the webhook; it never touches
// payment instruments.
type PaymentGateway interface {
	AnnounceObligation(ctx context.Context, obligation model.PaymentObligation) error
}

// AwardRenderer renders the award document for a decided job.
type AwardRenderer interface {
	Generate(doc model.AwardDocument) ([]byte, error)
}

// reconcileBatch bounds one sweep pass.
const reconcileBatch = 100

type PaymentService struct {
	payments        PaymentStore
	jobs            JobStore
	bids            BidStore
	gateway         PaymentGateway
	pdf             AwardRenderer
	depositFraction float64
	log             zerolog.Logger
}

func NewPaymentService(
	payments PaymentStore,
	jobs JobStore,
	bids BidStore,
	gateway PaymentGateway,
	pdf AwardRenderer,
	depositFraction float64,
	log zerolog.Logger,
) *PaymentService {
	return &PaymentService{
		payments:        payments,
		jobs:            jobs,
		bids:            bids,
		gateway:         gateway,
		pdf:             pdf,
		depositFraction: depositFraction,
		log:             log,
	}
}

// TriggerForBid creates the deposit and completion obligations for an
// accepted bid. Idempotent: existing milestones are left alone. Gateway
// announcement failures are logged, never fatal; the obligation rows are the
// source of truth.
func (s *PaymentService) TriggerForBid(ctx context.Context, job model.Job, bid model.Bid) error {
	deposit := round2(bid.Amount * s.depositFraction)
	completion := round2(bid.Amount - deposit)

	milestones := []model.PaymentObligation{
		{BidID: bid.ID, JobID: job.ID, Type: model.ObligationDeposit, Amount: deposit},
		{BidID: bid.ID, JobID: job.ID, Type: model.ObligationCompletion, Amount: completion},
	}

	for _, milestone := range milestones {
		created, err := s.payments.CreateObligation(ctx, milestone)
		if err != nil {
			return fmt.Errorf("create %s obligation: %w", milestone.Type, err)
		}
		if created == nil {
			continue
		}
		if err := s.gateway.AnnounceObligation(ctx, *created); err != nil {
			s.log.Warn().
				Err(err).
				Str("bid_id", bid.ID.String()).
				Str("type", string(created.Type)).
				Msg("payment gateway announcement failed")
		}
	}
	return nil
}

// Reconcile sweeps for accepted bids whose obligations are missing, e.g.
// after a crash between the accept commit and the trigger. Idempotent.
func (s *PaymentService) Reconcile(ctx context.Context) (int, error) {
	bids, err := s.payments.ListAcceptedBidsMissingObligations(ctx, reconcileBatch)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, bid := range bids {
		job, err := s.jobs.GetJob(ctx, bid.JobID)
		if err != nil {
			s.log.Error().Err(err).Str("bid_id", bid.ID.String()).Msg("reconcile: job lookup failed")
			continue
		}
		if err := s.TriggerForBid(ctx, *job, bid); err != nil {
			s.log.Error().Err(err).Str("bid_id", bid.ID.String()).Msg("reconcile: trigger failed")
			continue
		}
		repaired++
	}
	return repaired, nil
}

// ApplyGatewayReport records a paid milestone reported by the gateway.
// Repeat reports are no-ops.
func (s *PaymentService) ApplyGatewayReport(ctx context.Context, bidID uuid.UUID, obligationType model.ObligationType, paid bool) error {
	if !paid {
		s.log.Info().
			Str("bid_id", bidID.String()).
			Str("type", string(obligationType)).
			Msg("gateway reported payment failure")
		return nil
	}

	updated, err := s.payments.MarkPaid(ctx, bidID, obligationType)
	if err != nil {
		return err
	}
	if !updated {
		obligations, err := s.payments.ListForBid(ctx, bidID)
		if err != nil {
			return err
		}
		if len(obligations) == 0 {
			return ErrNotFound
		}
	}
	return nil
}

type AwardDocumentResult struct {
	FileName string
	Content  []byte
}

// AwardDocument renders the acceptance summary PDF: job, winning bid and the
// two payment milestones. Available to the job owner, the winning
// contractor and admins once a bid is accepted.
func (s *PaymentService) AwardDocument(ctx context.Context, jobID uuid.UUID, actor model.Principal) (*AwardDocumentResult, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if job.AcceptedBidID == nil {
		return nil, fmt.Errorf("%w: job has no accepted bid", ErrNotFound)
	}

	bid, err := s.bids.GetBid(ctx, *job.AcceptedBidID)
	if err != nil {
		return nil, err
	}

	switch {
	case actor.IsAdmin():
	case actor.IsCustomer() && job.CustomerID == actor.UserID:
	case actor.IsContractor() && bid.ContractorID == actor.UserID:
	default:
		return nil, ErrPermissionDenied
	}

	obligations, err := s.payments.ListForBid(ctx, bid.ID)
	if err != nil {
		return nil, err
	}

	content, err := s.pdf.Generate(model.AwardDocument{
		Job:         *job,
		Bid:         *bid,
		Obligations: obligations,
	})
	if err != nil {
		return nil, err
	}

	fileName := fmt.Sprintf("award-%s.pdf", job.ID)
	return &AwardDocumentResult{FileName: fileName, Content: content}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
