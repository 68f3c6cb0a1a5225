package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/bidworks/internal/model"
	"github.com/nurpe/bidworks/internal/repository"
)

type usageKey struct {
	contractor uuid.UUID
	cycle      time.Time
}

type chargeKey struct {
	contractor uuid.UUID
	cycle      time.Time
	job        uuid.UUID
}

type obligationKey struct {
	bid uuid.UUID
	typ model.ObligationType
}

// fakeStore is an in-memory stand-in for all repositories. Every method
// holds one mutex, which gives it the same atomicity the real stores get
// from row locks and conditional updates; the concurrency tests lean on
// that equivalence.
type fakeStore struct {
	mu          sync.Mutex
	jobs        map[uuid.UUID]model.Job
	bids        map[uuid.UUID]model.Bid
	memberships map[uuid.UUID]model.Membership
	usage       map[usageKey]model.LeadUsage
	charges     map[chargeKey]model.LeadCharge
	obligations map[obligationKey]model.PaymentObligation
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:        make(map[uuid.UUID]model.Job),
		bids:        make(map[uuid.UUID]model.Bid),
		memberships: make(map[uuid.UUID]model.Membership),
		usage:       make(map[usageKey]model.LeadUsage),
		charges:     make(map[chargeKey]model.LeadCharge),
		obligations: make(map[obligationKey]model.PaymentObligation),
	}
}

func (f *fakeStore) putJob(job model.Job) model.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = model.JobStatusOpen
	}
	f.jobs[job.ID] = job
	return job
}

func (f *fakeStore) putBid(bid model.Bid) model.Bid {
	f.mu.Lock()
	defer f.mu.Unlock()
	if bid.ID == uuid.Nil {
		bid.ID = uuid.New()
	}
	if bid.Status == "" {
		bid.Status = model.BidStatusPending
	}
	f.bids[bid.ID] = bid
	return bid
}

func (f *fakeStore) putMembership(m model.Membership) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberships[m.ContractorID] = m
}

// JobStore

func (f *fakeStore) CreateJob(_ context.Context, job model.Job) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job.ID = uuid.New()
	job.Status = model.JobStatusOpen
	job.CreatedAt = time.Now()
	f.jobs[job.ID] = job
	return &job, nil
}

func (f *fakeStore) GetJob(_ context.Context, id uuid.UUID) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &job, nil
}

func (f *fakeStore) UpdateOpenJob(_ context.Context, job model.Job) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.jobs[job.ID]
	if !ok || existing.Status != model.JobStatusOpen {
		return false, nil
	}
	existing.Category = job.Category
	existing.Description = job.Description
	existing.EstimateAmount = job.EstimateAmount
	existing.TimelineDays = job.TimelineDays
	existing.Lat = job.Lat
	existing.Lon = job.Lon
	existing.Version++
	f.jobs[job.ID] = existing
	return true, nil
}

func (f *fakeStore) CancelOpenJob(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.jobs[id]
	if !ok || existing.Status != model.JobStatusOpen {
		return false, nil
	}
	existing.Status = model.JobStatusCancelled
	existing.Version++
	f.jobs[id] = existing
	return true, nil
}

func (f *fakeStore) ListOpenJobs(
	_ context.Context,
	visibleBefore time.Time,
	cursor model.JobCursor,
	limit int,
) ([]model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var jobs []model.Job
	for _, job := range f.jobs {
		if job.Status != model.JobStatusOpen || job.CreatedAt.After(visibleBefore) {
			continue
		}
		if !cursor.IsZero() {
			if job.CreatedAt.After(cursor.CreatedAt) {
				continue
			}
			if job.CreatedAt.Equal(cursor.CreatedAt) && job.ID.String() >= cursor.ID.String() {
				continue
			}
		}
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].ID.String() > jobs[j].ID.String()
	})
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// BidStore

func (f *fakeStore) CreateBid(_ context.Context, bid model.Bid) (*model.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.bids {
		if existing.JobID == bid.JobID && existing.ContractorID == bid.ContractorID && existing.Status == model.BidStatusPending {
			return nil, repository.ErrDuplicatePendingBid
		}
	}
	bid.ID = uuid.New()
	bid.Status = model.BidStatusPending
	bid.CreatedAt = time.Now()
	f.bids[bid.ID] = bid
	return &bid, nil
}

func (f *fakeStore) GetBid(_ context.Context, id uuid.UUID) (*model.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bid, ok := f.bids[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &bid, nil
}

func (f *fakeStore) ListBidsForJob(_ context.Context, jobID uuid.UUID) ([]model.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var bids []model.Bid
	for _, bid := range f.bids {
		if bid.JobID == jobID {
			bids = append(bids, bid)
		}
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].CreatedAt.Before(bids[j].CreatedAt) })
	return bids, nil
}

func (f *fakeStore) HasPendingBid(_ context.Context, jobID, contractorID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, bid := range f.bids {
		if bid.JobID == jobID && bid.ContractorID == contractorID && bid.Status == model.BidStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) DecideBid(
	_ context.Context,
	jobID, bidID uuid.UUID,
	target model.BidStatus,
) (model.BidDecisionOutcome, *model.Job, *model.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.jobs[jobID]
	if !ok {
		return model.DecisionJobNotFound, nil, nil, nil
	}
	bid, ok := f.bids[bidID]
	if !ok || bid.JobID != jobID {
		return model.DecisionBidNotFound, nil, nil, nil
	}
	if bid.Status != model.BidStatusPending {
		return model.DecisionBidAlreadyDecided, nil, nil, nil
	}

	switch target {
	case model.BidStatusAccepted:
		if job.Status != model.JobStatusOpen {
			return model.DecisionJobNotOpen, nil, nil, nil
		}
		job.Status = model.JobStatusInProgress
		job.AcceptedBidID = &bid.ID
		job.Version++
	case model.BidStatusRejected:
		if job.AcceptedBidID != nil {
			return model.DecisionJobHasAcceptedBid, nil, nil, nil
		}
		job.Version++
	}

	bid.Status = target
	f.jobs[jobID] = job
	f.bids[bidID] = bid
	return model.DecisionApplied, &job, &bid, nil
}

// LeadStore

func (f *fakeStore) ChargeLead(
	_ context.Context,
	contractorID uuid.UUID,
	cycleStart time.Time,
	jobID uuid.UUID,
	leadsLimit int,
) (model.LeadChargeOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	uKey := usageKey{contractor: contractorID, cycle: cycleStart}
	usage, ok := f.usage[uKey]
	if !ok {
		usage = model.LeadUsage{ContractorID: contractorID, CycleStart: cycleStart, LeadsLimit: leadsLimit}
	}

	cKey := chargeKey{contractor: contractorID, cycle: cycleStart, job: jobID}
	if _, charged := f.charges[cKey]; charged {
		f.usage[uKey] = usage
		return model.LeadAlreadyCharged, nil
	}
	if usage.LeadsUsed >= usage.LeadsLimit {
		f.usage[uKey] = usage
		return model.LeadLimitReached, nil
	}

	usage.LeadsUsed++
	f.usage[uKey] = usage
	f.charges[cKey] = model.LeadCharge{
		ContractorID: contractorID,
		CycleStart:   cycleStart,
		JobID:        jobID,
		ChargedAt:    time.Now(),
	}
	return model.LeadCharged, nil
}

func (f *fakeStore) HasCharge(_ context.Context, contractorID uuid.UUID, cycleStart time.Time, jobID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.charges[chargeKey{contractor: contractorID, cycle: cycleStart, job: jobID}]
	return ok, nil
}

func (f *fakeStore) EnsureUsage(_ context.Context, contractorID uuid.UUID, cycleStart time.Time, leadsLimit int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := usageKey{contractor: contractorID, cycle: cycleStart}
	if _, ok := f.usage[key]; ok {
		return false, nil
	}
	f.usage[key] = model.LeadUsage{ContractorID: contractorID, CycleStart: cycleStart, LeadsLimit: leadsLimit}
	return true, nil
}

func (f *fakeStore) GetUsage(_ context.Context, contractorID uuid.UUID, cycleStart time.Time) (*model.LeadUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	usage, ok := f.usage[usageKey{contractor: contractorID, cycle: cycleStart}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &usage, nil
}

func (f *fakeStore) ListCharges(_ context.Context, contractorID uuid.UUID, cycleStart time.Time) ([]model.LeadCharge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var charges []model.LeadCharge
	for key, charge := range f.charges {
		if key.contractor == contractorID && key.cycle.Equal(cycleStart) {
			charges = append(charges, charge)
		}
	}
	sort.Slice(charges, func(i, j int) bool { return charges[i].ChargedAt.Before(charges[j].ChargedAt) })
	return charges, nil
}

// MembershipStore

func (f *fakeStore) GetMembership(_ context.Context, contractorID uuid.UUID) (*model.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	membership, ok := f.memberships[contractorID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &membership, nil
}

func (f *fakeStore) ListActive(_ context.Context) ([]model.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var memberships []model.Membership
	for _, membership := range f.memberships {
		if membership.Active {
			memberships = append(memberships, membership)
		}
	}
	return memberships, nil
}

// PaymentStore

func (f *fakeStore) CreateObligation(_ context.Context, obligation model.PaymentObligation) (*model.PaymentObligation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := obligationKey{bid: obligation.BidID, typ: obligation.Type}
	if _, ok := f.obligations[key]; ok {
		return nil, nil
	}
	obligation.ID = uuid.New()
	obligation.Status = model.ObligationUnpaid
	obligation.CreatedAt = time.Now()
	f.obligations[key] = obligation
	return &obligation, nil
}

func (f *fakeStore) ListForBid(_ context.Context, bidID uuid.UUID) ([]model.PaymentObligation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var obligations []model.PaymentObligation
	for key, obligation := range f.obligations {
		if key.bid == bidID {
			obligations = append(obligations, obligation)
		}
	}
	sort.Slice(obligations, func(i, j int) bool { return obligations[i].Type < obligations[j].Type })
	return obligations, nil
}

func (f *fakeStore) MarkPaid(_ context.Context, bidID uuid.UUID, obligationType model.ObligationType) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := obligationKey{bid: bidID, typ: obligationType}
	obligation, ok := f.obligations[key]
	if !ok || obligation.Status != model.ObligationUnpaid {
		return false, nil
	}
	obligation.Status = model.ObligationPaid
	f.obligations[key] = obligation
	return true, nil
}

func (f *fakeStore) ListAcceptedBidsMissingObligations(_ context.Context, limit int) ([]model.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var bids []model.Bid
	for _, bid := range f.bids {
		if bid.Status != model.BidStatusAccepted {
			continue
		}
		count := 0
		for key := range f.obligations {
			if key.bid == bid.ID {
				count++
			}
		}
		if count < 2 {
			bids = append(bids, bid)
		}
		if len(bids) == limit {
			break
		}
	}
	return bids, nil
}

// fakeGateway records announcements; failures are scripted per test.
type fakeGateway struct {
	mu        sync.Mutex
	announced []model.PaymentObligation
	err       error
}

func (g *fakeGateway) AnnounceObligation(_ context.Context, obligation model.PaymentObligation) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.announced = append(g.announced, obligation)
	return nil
}

type nopRenderer struct{}

func (nopRenderer) Generate(model.AwardDocument) ([]byte, error) {
	return []byte("%PDF"), nil
}

type nopStatement struct{}

func (nopStatement) Generate(model.LeadStatement) ([]byte, error) {
	return []byte("xlsx"), nil
}
