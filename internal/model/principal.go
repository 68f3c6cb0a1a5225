package model

import "github.com/google/uuid"

type Role string

const (
	RoleContractor Role = "CONTRACTOR"
	RoleCustomer   Role = "CUSTOMER"
	RoleAdmin      Role = "ADMIN"
)

// Principal is the authenticated caller extracted from the access token.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

func (p Principal) IsContractor() bool { return p.Role == RoleContractor }
func (p Principal) IsCustomer() bool   { return p.Role == RoleCustomer }
func (p Principal) IsAdmin() bool      { return p.Role == RoleAdmin }
