package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/bidworks/internal/model"
)

type MembershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func (r *MembershipRepository) GetMembership(ctx context.Context, contractorID uuid.UUID) (*model.Membership, error) {
	var membership model.Membership
	err := r.db.WithContext(ctx).Raw(`
		SELECT contractor_id, tier, cycle_anchor, active, home_lat, home_lon
		FROM memberships
		WHERE contractor_id = ?
		LIMIT 1
	`, contractorID).Scan(&membership).Error
	if err != nil {
		return nil, err
	}
	if membership.ContractorID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &membership, nil
}

func (r *MembershipRepository) ListActive(ctx context.Context) ([]model.Membership, error) {
	var memberships []model.Membership
	err := r.db.WithContext(ctx).Raw(`
		SELECT contractor_id, tier, cycle_anchor, active, home_lat, home_lon
		FROM memberships
		WHERE active
		ORDER BY contractor_id
	`).Scan(&memberships).Error
	if err != nil {
		return nil, err
	}
	return memberships, nil
}

// UpsertMembership applies a billing event: plan change or renewal. The
// engine itself never calls this outside the billing boundary.
func (r *MembershipRepository) UpsertMembership(ctx context.Context, membership model.Membership) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO memberships (contractor_id, tier, cycle_anchor, active, home_lat, home_lon)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (contractor_id) DO UPDATE
		SET tier = EXCLUDED.tier,
			cycle_anchor = EXCLUDED.cycle_anchor,
			active = EXCLUDED.active,
			home_lat = EXCLUDED.home_lat,
			home_lon = EXCLUDED.home_lon
	`,
		membership.ContractorID,
		membership.Tier,
		membership.CycleAnchor,
		membership.Active,
		membership.HomeLat,
		membership.HomeLon,
	).Error
}
