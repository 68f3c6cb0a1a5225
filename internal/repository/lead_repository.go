package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/bidworks/internal/model"
)

type LeadRepository struct {
	db *gorm.DB
}

func NewLeadRepository(db *gorm.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

var errChargeRollback = errors.New("lead charge rolled back")

// ChargeLead performs the atomic check-and-deduct for one job view. The
// charged-job set makes repeat views free; the conditional increment holds
// the row lock on lead_usage, so two parallel first views of different jobs
// each consume their own lead and never double-spend one.
func (r *LeadRepository) ChargeLead(
	ctx context.Context,
	contractorID uuid.UUID,
	cycleStart time.Time,
	jobID uuid.UUID,
	leadsLimit int,
) (model.LeadChargeOutcome, error) {
	outcome := model.LeadCharged

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
			INSERT INTO lead_usage (contractor_id, cycle_start, leads_used, leads_limit)
			VALUES (?, ?, 0, ?)
			ON CONFLICT (contractor_id, cycle_start) DO NOTHING
		`, contractorID, cycleStart, leadsLimit).Error; err != nil {
			return err
		}

		result := tx.Exec(`
			INSERT INTO lead_charges (contractor_id, cycle_start, job_id)
			VALUES (?, ?, ?)
			ON CONFLICT (contractor_id, cycle_start, job_id) DO NOTHING
		`, contractorID, cycleStart, jobID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			outcome = model.LeadAlreadyCharged
			return nil
		}

		result = tx.Exec(`
			UPDATE lead_usage
			SET leads_used = leads_used + 1
			WHERE contractor_id = ? AND cycle_start = ? AND leads_used < leads_limit
		`, contractorID, cycleStart)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			outcome = model.LeadLimitReached
			return errChargeRollback
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errChargeRollback) {
			return outcome, nil
		}
		return outcome, err
	}
	return outcome, nil
}

// EnsureUsage creates the cycle's counter row if missing. Safe to re-run;
// reports whether this call created the row.
func (r *LeadRepository) EnsureUsage(
	ctx context.Context,
	contractorID uuid.UUID,
	cycleStart time.Time,
	leadsLimit int,
) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		INSERT INTO lead_usage (contractor_id, cycle_start, leads_used, leads_limit)
		VALUES (?, ?, 0, ?)
		ON CONFLICT (contractor_id, cycle_start) DO NOTHING
	`, contractorID, cycleStart, leadsLimit)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// HasCharge reports whether a job is already in the contractor's charged set
// for the cycle.
func (r *LeadRepository) HasCharge(
	ctx context.Context,
	contractorID uuid.UUID,
	cycleStart time.Time,
	jobID uuid.UUID,
) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(1) FROM lead_charges
		WHERE contractor_id = ? AND cycle_start = ? AND job_id = ?
	`, contractorID, cycleStart, jobID).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *LeadRepository) GetUsage(
	ctx context.Context,
	contractorID uuid.UUID,
	cycleStart time.Time,
) (*model.LeadUsage, error) {
	var usage model.LeadUsage
	err := r.db.WithContext(ctx).Raw(`
		SELECT contractor_id, cycle_start, leads_used, leads_limit
		FROM lead_usage
		WHERE contractor_id = ? AND cycle_start = ?
		LIMIT 1
	`, contractorID, cycleStart).Scan(&usage).Error
	if err != nil {
		return nil, err
	}
	if usage.ContractorID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &usage, nil
}

func (r *LeadRepository) ListCharges(
	ctx context.Context,
	contractorID uuid.UUID,
	cycleStart time.Time,
) ([]model.LeadCharge, error) {
	var charges []model.LeadCharge
	err := r.db.WithContext(ctx).Raw(`
		SELECT contractor_id, cycle_start, job_id, charged_at
		FROM lead_charges
		WHERE contractor_id = ? AND cycle_start = ?
		ORDER BY charged_at ASC
	`, contractorID, cycleStart).Scan(&charges).Error
	if err != nil {
		return nil, err
	}
	return charges, nil
}
