package model

import (
	"time"

	"github.com/google/uuid"
)

type BidStatus string

const (
	BidStatusPending  BidStatus = "PENDING"
	BidStatusAccepted BidStatus = "ACCEPTED"
	BidStatusRejected BidStatus = "REJECTED"
)

func ValidBidStatus(s BidStatus) bool {
	switch s {
	case BidStatusPending, BidStatusAccepted, BidStatusRejected:
		return true
	default:
		return false
	}
}

type Bid struct {
	ID            uuid.UUID
	JobID         uuid.UUID
	ContractorID  uuid.UUID
	Amount        float64
	TimelineStart time.Time
	TimelineEnd   time.Time
	Materials     *string
	Warranty      *string
	Status        BidStatus
	CreatedAt     time.Time
}

// BidDecisionOutcome reports how an atomic accept/reject attempt on a job's
// bid set resolved. Storage implementations must evaluate all preconditions
// and apply the transition inside one serialization scope per job.
type BidDecisionOutcome int

const (
	DecisionApplied BidDecisionOutcome = iota
	DecisionJobNotFound
	DecisionBidNotFound
	DecisionJobNotOpen
	DecisionBidAlreadyDecided
	DecisionJobHasAcceptedBid
	DecisionVersionConflict
)
