package authz

import (
	"testing"

	"github.com/mantrailing/cardservice/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestRolePolicy_Authorize(t *testing.T) {
	p := NewRolePolicy()

	admin := Actor{UserID: "1", Role: models.RoleAdmin}
	staff := Actor{UserID: "2", Role: models.RoleStaff}
	customer := Actor{UserID: "3", Role: models.RoleCustomer, CustomerID: "4821937560"}
	unlinked := Actor{UserID: "4", Role: models.RoleCustomer}
	unknown := Actor{UserID: "5", Role: "guest"}

	own := Resource{CustomerID: "4821937560"}
	other := Resource{CustomerID: "1111111111"}

	tests := []struct {
		name     string
		actor    Actor
		action   Action
		resource Resource
		want     Decision
	}{
		{"admin manages users", admin, UserManage, Resource{}, Allow},
		{"admin books", admin, TransactionCreate, other, Allow},
		{"staff books", staff, TransactionCreate, other, Allow},
		{"staff cannot manage users", staff, UserManage, Resource{}, Deny},
		{"staff reads reports", staff, ReportRead, Resource{}, Allow},
		{"customer reads own card", customer, CustomerRead, own, Allow},
		{"customer reads own transactions", customer, TransactionRead, own, Allow},
		{"customer cannot read other card", customer, CustomerRead, other, Deny},
		{"customer cannot book", customer, TransactionCreate, own, Deny},
		{"customer cannot list customers", customer, CustomerList, Resource{}, Deny},
		{"customer dashboard", customer, DashboardRead, Resource{}, Allow},
		{"customer without card", unlinked, DashboardRead, Resource{}, Deny},
		{"unknown role", unknown, CustomerRead, own, Deny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Authorize(tt.actor, tt.action, tt.resource))
		})
	}
}
