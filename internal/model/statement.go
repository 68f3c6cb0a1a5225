package model

import (
	"time"

	"github.com/google/uuid"
)

// LeadStatementLine is one charged job in a contractor's cycle statement.
type LeadStatementLine struct {
	JobID     uuid.UUID
	Category  string
	ChargedAt time.Time
}

// LeadStatement is the exportable view of a contractor's lead usage for one
// billing cycle.
type LeadStatement struct {
	ContractorID uuid.UUID
	Tier         MembershipTier
	CycleStart   time.Time
	LeadsUsed    int
	LeadsLimit   int
	Lines        []LeadStatementLine
}

// AwardDocument is what the award PDF renders once a job has a winner.
type AwardDocument struct {
	Job         Job
	Bid         Bid
	Obligations []PaymentObligation
}
