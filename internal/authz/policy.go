// Package authz decides which actions an authenticated user may perform.
// Every protected route asks the same Policy instead of repeating role
// checks per handler.
package authz

import "github.com/mantrailing/cardservice/internal/models"

// Action names an operation guarded by the policy
type Action string

const (
	CustomerRead   Action = "customer:read"
	CustomerList   Action = "customer:list"
	CustomerCreate Action = "customer:create"
	CustomerUpdate Action = "customer:update"

	TransactionCreate Action = "transaction:create"
	TransactionRead   Action = "transaction:read"

	CardQR      Action = "card:qr"
	CardResolve Action = "card:resolve"

	ReportRead    Action = "report:read"
	DashboardRead Action = "dashboard:read"

	UserManage Action = "user:manage"
)

// Decision is the outcome of an authorization check
type Decision bool

const (
	Allow Decision = true
	Deny  Decision = false
)

// Actor is the authenticated caller
type Actor struct {
	UserID     string
	Email      string
	Role       models.Role
	CustomerID string // set for customer users with a linked card
}

// Resource identifies the object an action applies to. An empty CustomerID
// means the action is not bound to a single customer.
type Resource struct {
	CustomerID string
}

type Policy interface {
	Authorize(actor Actor, action Action, resource Resource) Decision
}

// RolePolicy grants actions per role. Customers are additionally limited to
// their own card.
type RolePolicy struct {
	grants map[models.Role]map[Action]bool
}

func NewRolePolicy() *RolePolicy {
	staff := []Action{
		CustomerRead, CustomerList, CustomerCreate, CustomerUpdate,
		TransactionCreate, TransactionRead,
		CardQR, CardResolve,
		ReportRead, DashboardRead,
	}
	customer := []Action{CustomerRead, TransactionRead, CardQR, DashboardRead}

	p := &RolePolicy{grants: map[models.Role]map[Action]bool{}}
	p.grant(models.RoleStaff, staff...)
	p.grant(models.RoleAdmin, append(staff, UserManage)...)
	p.grant(models.RoleCustomer, customer...)
	return p
}

func (p *RolePolicy) grant(role models.Role, actions ...Action) {
	set := p.grants[role]
	if set == nil {
		set = make(map[Action]bool, len(actions))
		p.grants[role] = set
	}
	for _, a := range actions {
		set[a] = true
	}
}

// Authorize implements Policy
func (p *RolePolicy) Authorize(actor Actor, action Action, resource Resource) Decision {
	if !p.grants[actor.Role][action] {
		return Deny
	}
	if actor.Role != models.RoleCustomer {
		return Allow
	}
	// customers only ever see their own card
	if actor.CustomerID == "" {
		return Deny
	}
	if resource.CustomerID != "" && resource.CustomerID != actor.CustomerID {
		return Deny
	}
	return Allow
}
