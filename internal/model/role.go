package model

import (
	"strconv"
	"strings"
)

// Role is the closed set of caller roles the engine understands.  The
// previous generation of this codebase compared free-form role strings
// ("admin", "PARTNER", mixed case) at every call site; Role funnels
// every comparison through one canonical uppercase form.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RolePartner  Role = "PARTNER"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole canonicalizes a role string.  Unknown values return false.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleCustomer:
		return RoleCustomer, true
	case RolePartner:
		return RolePartner, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// Actor identifies the authenticated caller of an engine operation.
// The identity layer resolves credentials to an Actor before the
// engine is invoked; the engine trusts the role it is given.
type Actor struct {
	ID   uint64
	Role Role
}

// AuditAuthor renders the actor as a note author string.
func (a Actor) AuditAuthor() string {
	return strings.ToLower(string(a.Role)) + ":" + strconv.FormatUint(a.ID, 10)
}
