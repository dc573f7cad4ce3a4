package models

import "time"

// Role of an authenticated user
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleCustomer:
		return true
	}
	return false
}

type User struct {
	ID         int        `json:"id" example:"1"`
	Email      string     `json:"email" example:"trainer@mantrailing.example"`
	FirstName  string     `json:"firstName" example:"Anna"`
	LastName   string     `json:"lastName" example:"Berger"`
	Role       Role       `json:"role" example:"staff"`
	CustomerID *string    `json:"customerId,omitempty" example:"4821937560"` // linked card for customer users
	LastLogin  *time.Time `json:"lastLogin,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}
