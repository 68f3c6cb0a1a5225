package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/bidworks/internal/model"
)

type BidRepository struct {
	db *gorm.DB
}

func NewBidRepository(db *gorm.DB) *BidRepository {
	return &BidRepository{db: db}
}

const bidColumns = `
	id,
	job_id,
	contractor_id,
	amount,
	timeline_start,
	timeline_end,
	materials,
	warranty,
	status,
	created_at
`

// ErrDuplicatePendingBid surfaces the partial unique index on
// (job_id, contractor_id) WHERE status = 'PENDING'.
var ErrDuplicatePendingBid = errors.New("contractor already has a pending bid on this job")

func (r *BidRepository) CreateBid(ctx context.Context, bid model.Bid) (*model.Bid, error) {
	var saved model.Bid
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO bids (
			job_id,
			contractor_id,
			amount,
			timeline_start,
			timeline_end,
			materials,
			warranty,
			status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+bidColumns,
		bid.JobID,
		bid.ContractorID,
		bid.Amount,
		bid.TimelineStart,
		bid.TimelineEnd,
		bid.Materials,
		bid.Warranty,
		model.BidStatusPending,
	).Scan(&saved).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicatePendingBid
		}
		return nil, err
	}
	return &saved, nil
}

func (r *BidRepository) GetBid(ctx context.Context, id uuid.UUID) (*model.Bid, error) {
	var bid model.Bid
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+bidColumns+`
		FROM bids
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&bid).Error
	if err != nil {
		return nil, err
	}
	if bid.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &bid, nil
}

func (r *BidRepository) ListBidsForJob(ctx context.Context, jobID uuid.UUID) ([]model.Bid, error) {
	var bids []model.Bid
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+bidColumns+`
		FROM bids
		WHERE job_id = ?
		ORDER BY created_at ASC, id ASC
	`, jobID).Scan(&bids).Error
	if err != nil {
		return nil, err
	}
	return bids, nil
}

func (r *BidRepository) HasPendingBid(ctx context.Context, jobID, contractorID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(1) FROM bids
		WHERE job_id = ? AND contractor_id = ? AND status = ?
	`, jobID, contractorID, model.BidStatusPending).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// errDecisionRollback aborts the decision transaction without reporting a
// storage failure; the outcome carries the reason.
var errDecisionRollback = errors.New("decision rolled back")

// DecideBid applies accept or reject as one atomic transition. Accept also
// moves the job to IN_PROGRESS and records the winner. Both paths are
// guarded by the job's version column: a concurrent decision that got there
// first shows up as DecisionVersionConflict and the caller may retry against
// the fresh state.
func (r *BidRepository) DecideBid(
	ctx context.Context,
	jobID, bidID uuid.UUID,
	target model.BidStatus,
) (model.BidDecisionOutcome, *model.Job, *model.Bid, error) {
	outcome := model.DecisionApplied
	var decidedJob model.Job
	var decidedBid model.Bid

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job model.Job
		if err := tx.Raw(`
			SELECT `+jobColumns+`
			FROM jobs
			WHERE id = ?
			LIMIT 1
		`, jobID).Scan(&job).Error; err != nil {
			return err
		}
		if job.ID == uuid.Nil {
			outcome = model.DecisionJobNotFound
			return errDecisionRollback
		}

		var bid model.Bid
		if err := tx.Raw(`
			SELECT `+bidColumns+`
			FROM bids
			WHERE id = ? AND job_id = ?
			LIMIT 1
		`, bidID, jobID).Scan(&bid).Error; err != nil {
			return err
		}
		if bid.ID == uuid.Nil {
			outcome = model.DecisionBidNotFound
			return errDecisionRollback
		}

		if bid.Status != model.BidStatusPending {
			outcome = model.DecisionBidAlreadyDecided
			return errDecisionRollback
		}

		switch target {
		case model.BidStatusAccepted:
			if job.Status != model.JobStatusOpen {
				outcome = model.DecisionJobNotOpen
				return errDecisionRollback
			}
			result := tx.Exec(`
				UPDATE jobs
				SET status = ?, accepted_bid_id = ?, version = version + 1
				WHERE id = ? AND status = ? AND version = ?
			`, model.JobStatusInProgress, bidID, jobID, model.JobStatusOpen, job.Version)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				outcome = model.DecisionVersionConflict
				return errDecisionRollback
			}
			job.Status = model.JobStatusInProgress
			job.AcceptedBidID = &bid.ID
			job.Version++

		case model.BidStatusRejected:
			if job.AcceptedBidID != nil {
				outcome = model.DecisionJobHasAcceptedBid
				return errDecisionRollback
			}
			// Bumping the version serializes the reject against a
			// concurrent accept on the same job.
			result := tx.Exec(`
				UPDATE jobs
				SET version = version + 1
				WHERE id = ? AND version = ?
			`, jobID, job.Version)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				outcome = model.DecisionVersionConflict
				return errDecisionRollback
			}
			job.Version++

		default:
			outcome = model.DecisionBidAlreadyDecided
			return errDecisionRollback
		}

		result := tx.Exec(`
			UPDATE bids
			SET status = ?
			WHERE id = ? AND status = ?
		`, target, bidID, model.BidStatusPending)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			outcome = model.DecisionBidAlreadyDecided
			return errDecisionRollback
		}
		bid.Status = target

		decidedJob = job
		decidedBid = bid
		return nil
	})
	if err != nil {
		if errors.Is(err, errDecisionRollback) {
			return outcome, nil, nil, nil
		}
		return outcome, nil, nil, err
	}
	return model.DecisionApplied, &decidedJob, &decidedBid, nil
}
