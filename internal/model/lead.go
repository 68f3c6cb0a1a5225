package model

import (
	"time"

	"github.com/google/uuid"
)

// LeadUsage is the per contractor, per billing cycle lead counter.
type LeadUsage struct {
	ContractorID uuid.UUID
	CycleStart   time.Time
	LeadsUsed    int
	LeadsLimit   int
}

func (u LeadUsage) Remaining() int {
	if u.LeadsLimit < u.LeadsUsed {
		return 0
	}
	return u.LeadsLimit - u.LeadsUsed
}

// LeadCharge records that a job has been charged against a contractor's
// cycle; its presence makes repeat views free.
type LeadCharge struct {
	ContractorID uuid.UUID
	CycleStart   time.Time
	JobID        uuid.UUID
	ChargedAt    time.Time
}

// LeadChargeOutcome reports how an atomic check-and-deduct resolved.
type LeadChargeOutcome int

const (
	LeadCharged LeadChargeOutcome = iota
	LeadAlreadyCharged
	LeadLimitReached
)
