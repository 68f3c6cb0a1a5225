package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/bidworks/internal/config"
	"github.com/nurpe/bidworks/internal/geo"
	"github.com/nurpe/bidworks/internal/model"
)

func testPlans() map[model.MembershipTier]config.PlanPolicy {
	return map[model.MembershipTier]config.PlanPolicy{
		model.TierBasic:    {RadiusKm: 25, AccessDelayHours: 24, LeadsLimit: 10},
		model.TierStandard: {RadiusKm: 75, AccessDelayHours: 6, LeadsLimit: 30},
		model.TierPremium:  {RadiusKm: 0, AccessDelayHours: 0, LeadsLimit: 100},
	}
}

// testEnv wires the full service graph onto one fakeStore.
type testEnv struct {
	store       *fakeStore
	gateway     *fakeGateway
	memberships *MembershipService
	visibility  *VisibilityService
	leads       *LeadService
	jobs        *JobService
	payments    *PaymentService
	bids        *BidService
}

func newTestEnv() *testEnv {
	store := newFakeStore()
	gateway := &fakeGateway{}
	log := zerolog.Nop()

	memberships := NewMembershipService(store, store, testPlans(), log)
	visibility := NewVisibilityService(store, memberships, geo.Haversine{})
	leads := NewLeadService(store, store, memberships, visibility, nopStatement{}, log)
	jobs := NewJobService(store, log)
	payments := NewPaymentService(store, store, store, gateway, nopRenderer{}, 0.2, log)
	bids := NewBidService(store, store, leads, payments, log)
	bids.backoff = func(int) {}

	return &testEnv{
		store:       store,
		gateway:     gateway,
		memberships: memberships,
		visibility:  visibility,
		leads:       leads,
		jobs:        jobs,
		payments:    payments,
		bids:        bids,
	}
}

// almaty city center; test jobs scatter around it.
const (
	homeLat = 43.238949
	homeLon = 76.889709
)

func (e *testEnv) contractor(tier model.MembershipTier) uuid.UUID {
	id := uuid.New()
	e.store.putMembership(model.Membership{
		ContractorID: id,
		Tier:         tier,
		CycleAnchor:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Active:       true,
		HomeLat:      homeLat,
		HomeLon:      homeLon,
	})
	return id
}

func (e *testEnv) openJob(customerID uuid.UUID, age time.Duration, lat, lon float64) model.Job {
	return e.store.putJob(model.Job{
		CustomerID:     customerID,
		Category:       "roofing",
		Description:    "replace shingles",
		EstimateAmount: 1500,
		TimelineDays:   7,
		Status:         model.JobStatusOpen,
		Lat:            lat,
		Lon:            lon,
		CreatedAt:      time.Now().Add(-age),
	})
}

// offsetKm shifts a latitude north by roughly km kilometers.
func offsetKm(lat float64, km float64) float64 {
	return lat + km/111.0
}
