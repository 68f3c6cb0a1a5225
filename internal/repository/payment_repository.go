package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/bidworks/internal/model"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const obligationColumns = `
	id,
	bid_id,
	job_id,
	obligation_type AS type,
	amount,
	status,
	created_at
`

// CreateObligation inserts one milestone, keyed on (bid, type). Re-running
// the trigger for the same accepted bid is a no-op and returns nil.
func (r *PaymentRepository) CreateObligation(ctx context.Context, obligation model.PaymentObligation) (*model.PaymentObligation, error) {
	var saved model.PaymentObligation
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO payment_obligations (bid_id, job_id, obligation_type, amount, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (bid_id, obligation_type) DO NOTHING
		RETURNING `+obligationColumns,
		obligation.BidID,
		obligation.JobID,
		obligation.Type,
		obligation.Amount,
		model.ObligationUnpaid,
	).Scan(&saved).Error
	if err != nil {
		return nil, err
	}
	if saved.ID == uuid.Nil {
		return nil, nil
	}
	return &saved, nil
}

func (r *PaymentRepository) ListForBid(ctx context.Context, bidID uuid.UUID) ([]model.PaymentObligation, error) {
	var obligations []model.PaymentObligation
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+obligationColumns+`
		FROM payment_obligations
		WHERE bid_id = ?
		ORDER BY obligation_type
	`, bidID).Scan(&obligations).Error
	if err != nil {
		return nil, err
	}
	return obligations, nil
}

func (r *PaymentRepository) MarkPaid(ctx context.Context, bidID uuid.UUID, obligationType model.ObligationType) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE payment_obligations
		SET status = ?
		WHERE bid_id = ? AND obligation_type = ? AND status = ?
	`, model.ObligationPaid, bidID, obligationType, model.ObligationUnpaid)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListAcceptedBidsMissingObligations feeds the reconciliation sweep: accepted
// bids that do not yet have both milestones.
func (r *PaymentRepository) ListAcceptedBidsMissingObligations(ctx context.Context, limit int) ([]model.Bid, error) {
	var bids []model.Bid
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+bidColumns+`
		FROM bids
		WHERE status = ?
			AND (SELECT COUNT(1) FROM payment_obligations po WHERE po.bid_id = bids.id) < 2
		ORDER BY created_at ASC
		LIMIT ?
	`, model.BidStatusAccepted, limit).Scan(&bids).Error
	if err != nil {
		return nil, err
	}
	return bids, nil
}
