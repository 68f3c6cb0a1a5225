package model

import (
	"time"

	"github.com/google/uuid"
)

type ObligationType string

const (
	ObligationDeposit    ObligationType = "DEPOSIT"
	ObligationCompletion ObligationType = "COMPLETION"
)

type ObligationStatus string

const (
	ObligationUnpaid ObligationStatus = "UNPAID"
	ObligationPaid   ObligationStatus = "PAID"
)

// PaymentObligation is one of the two payment milestones created when a bid
// is accepted. (bid, type) is unique so the trigger can be re-run safely.
type PaymentObligation struct {
	ID        uuid.UUID
	BidID     uuid.UUID
	JobID     uuid.UUID
	Type      ObligationType
	Amount    float64
	Status    ObligationStatus
	CreatedAt time.Time
}
