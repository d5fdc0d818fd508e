package model

import "github.com/google/uuid"

type Professional struct {
	ID      uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name    string    `json:"name"`
	Contact string    `json:"contact"`
	Online  bool      `json:"online"` // display only, does not gate claiming
}

func (Professional) TableName() string { return "professionals" }

type Role string

const (
	RoleProfessional Role = "PROFESSIONAL"
	RoleAdmin        Role = "ADMIN"
	RoleCustomer     Role = "CUSTOMER"
)

// Principal is the caller identity extracted from an access token.
type Principal struct {
	UserID uuid.UUID
	Role   Role
	Name   string
}

func (p Principal) IsProfessional() bool { return p.Role == RoleProfessional }
func (p Principal) IsAdmin() bool        { return p.Role == RoleAdmin }
func (p Principal) IsCustomer() bool     { return p.Role == RoleCustomer }
