package model

import (
	"time"

	"github.com/google/uuid"
)

type MembershipTier string

const (
	TierBasic    MembershipTier = "BASIC"
	TierStandard MembershipTier = "STANDARD"
	TierPremium  MembershipTier = "PREMIUM"
)

func ValidMembershipTier(t MembershipTier) bool {
	switch t {
	case TierBasic, TierStandard, TierPremium:
		return true
	default:
		return false
	}
}

// Membership is the stored plan row, mutated only by billing events.
type Membership struct {
	ContractorID uuid.UUID
	Tier         MembershipTier
	CycleAnchor  time.Time
	Active       bool
	HomeLat      float64
	HomeLon      float64
}

// CurrentMembership is the resolved view the engine works with: the stored
// tier combined with the policy table and the current billing cycle.
// RadiusKm <= 0 means unbounded.
type CurrentMembership struct {
	ContractorID     uuid.UUID
	Tier             MembershipTier
	RadiusKm         float64
	AccessDelayHours int
	LeadsLimit       int
	CycleStart       time.Time
	HomeLat          float64
	HomeLon          float64
}

func (m CurrentMembership) UnboundedRadius() bool {
	return m.RadiusKm <= 0
}

// CycleStartFor returns the latest monthly anniversary of anchor that is not
// after now. Anchors on day 29-31 clamp forward per time.AddDate rules, which
// keeps the result stable across short months.
func CycleStartFor(anchor, now time.Time) time.Time {
	if now.Before(anchor) {
		return anchor
	}
	months := (now.Year()-anchor.Year())*12 + int(now.Month()-anchor.Month())
	start := anchor.AddDate(0, months, 0)
	// AddDate normalizes clamped anchors forward, so one step back is not
	// always enough: Jan 31 + 1 month is Mar 3, which still trails now in
	// early March.
	for start.After(now) && months > 0 {
		months--
		start = anchor.AddDate(0, months, 0)
	}
	return start
}
