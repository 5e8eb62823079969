package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	cases := []struct {
		in   string
		role Role
		ok   bool
	}{
		{"CUSTOMER", RoleCustomer, true},
		{"customer", RoleCustomer, true},
		{"  Partner ", RolePartner, true},
		{"admin", RoleAdmin, true},
		{"ADMIN", RoleAdmin, true},
		{"owner", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		role, ok := ParseRole(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.role, role, "input %q", tc.in)
	}
}

func TestActorAuditAuthor(t *testing.T) {
	assert.Equal(t, "customer:17", Actor{ID: 17, Role: RoleCustomer}.AuditAuthor())
	assert.Equal(t, "partner:4", Actor{ID: 4, Role: RolePartner}.AuditAuthor())
}

func TestStatusBlocking(t *testing.T) {
	assert.True(t, StatusPending.Blocking())
	assert.True(t, StatusConfirmed.Blocking())
	assert.True(t, StatusInProgress.Blocking())
	assert.False(t, StatusRejected.Blocking())
	assert.False(t, StatusCancelled.Blocking())
	assert.False(t, StatusCompleted.Blocking())
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusRejected, StatusCancelled, StatusCompleted} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusInProgress} {
		assert.False(t, s.Terminal(), s)
	}
}
