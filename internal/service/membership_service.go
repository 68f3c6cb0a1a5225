package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nurpe/bidworks/internal/config"
	"github.com/nurpe/bidworks/internal/model"
)

// MembershipStore is the billing-owned plan registry. The engine only reads
// it; billing events write through UpsertMembership out of band.
type MembershipStore interface {
	GetMembership(ctx context.Context, contractorID uuid.UUID) (*model.Membership, error)
	ListActive(ctx context.Context) ([]model.Membership, error)
}

// LeadUsageSeeder creates a cycle's counter row; idempotent.
type LeadUsageSeeder interface {
	EnsureUsage(ctx context.Context, contractorID uuid.UUID, cycleStart time.Time, leadsLimit int) (bool, error)
}

type MembershipService struct {
	memberships MembershipStore
	leads       LeadUsageSeeder
	plans       map[model.MembershipTier]config.PlanPolicy
	log         zerolog.Logger
}

func NewMembershipService(
	memberships MembershipStore,
	leads LeadUsageSeeder,
	plans map[model.MembershipTier]config.PlanPolicy,
	log zerolog.Logger,
) *MembershipService {
	return &MembershipService{
		memberships: memberships,
		leads:       leads,
		plans:       plans,
		log:         log,
	}
}

// Current resolves a contractor's stored plan through the policy table into
// the attributes the engine works with for the cycle containing now.
func (s *MembershipService) Current(ctx context.Context, contractorID uuid.UUID, now time.Time) (*model.CurrentMembership, error) {
	membership, err := s.memberships.GetMembership(ctx, contractorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no membership for contractor", ErrPermissionDenied)
		}
		return nil, err
	}
	if !membership.Active {
		return nil, fmt.Errorf("%w: membership is inactive", ErrPermissionDenied)
	}

	policy, ok := s.plans[membership.Tier]
	if !ok {
		return nil, fmt.Errorf("no policy configured for tier %s", membership.Tier)
	}

	return &model.CurrentMembership{
		ContractorID:     membership.ContractorID,
		Tier:             membership.Tier,
		RadiusKm:         policy.RadiusKm,
		AccessDelayHours: policy.AccessDelayHours,
		LeadsLimit:       policy.LeadsLimit,
		CycleStart:       model.CycleStartFor(membership.CycleAnchor, now),
		HomeLat:          membership.HomeLat,
		HomeLon:          membership.HomeLon,
	}, nil
}

// ResetDueCycles seeds the lead counter for every active membership's
// current cycle. Idempotent per contractor-cycle; safe to run on a timer and
// on demand. Returns how many cycles were newly opened.
func (s *MembershipService) ResetDueCycles(ctx context.Context, now time.Time) (int, error) {
	memberships, err := s.memberships.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	opened := 0
	for _, membership := range memberships {
		policy, ok := s.plans[membership.Tier]
		if !ok {
			s.log.Warn().
				Str("contractor_id", membership.ContractorID.String()).
				Str("tier", string(membership.Tier)).
				Msg("skipping cycle reset: no policy for tier")
			continue
		}
		cycleStart := model.CycleStartFor(membership.CycleAnchor, now)
		created, err := s.leads.EnsureUsage(ctx, membership.ContractorID, cycleStart, policy.LeadsLimit)
		if err != nil {
			return opened, err
		}
		if created {
			opened++
		}
	}
	return opened, nil
}
