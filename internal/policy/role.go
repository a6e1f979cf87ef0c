package policy

import (
	"errors"
	"fmt"
	"strings"
)

// Role is a closed set. Anything outside it fails closed: no permissions,
// full masking.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleViewer  Role = "viewer"
	RoleAuditor Role = "auditor"
)

// ErrUnknownRole marks a role outside the closed set.
var ErrUnknownRole = errors.New("policy: unknown role")

// ParseRole normalizes and validates a role name.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	switch role {
	case RoleAdmin, RoleManager, RoleViewer, RoleAuditor:
		return role, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
}

// Capability is a named permission checked by the access mediator.
type Capability string

const (
	CapViewAllData  Capability = "view-all-data"
	CapViewTeamData Capability = "view-team-data"
	CapExportData   Capability = "export-data"
	CapViewAuditLog Capability = "view-audit-log"
	CapManageUsers  Capability = "manage-users"
	CapViewReports  Capability = "view-reports"
)

// ErrUnknownCapability marks a capability name outside the closed set.
var ErrUnknownCapability = errors.New("policy: unknown capability")

// ParseCapability normalizes and validates a capability name.
func ParseCapability(raw string) (Capability, error) {
	cap := Capability(strings.TrimSpace(strings.ToLower(raw)))
	switch cap {
	case CapViewAllData, CapViewTeamData, CapExportData,
		CapViewAuditLog, CapManageUsers, CapViewReports:
		return cap, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCapability, raw)
	}
}

// rolePermissions is the fixed role table. Roles are immutable once
// defined; only a user's membership changes.
var rolePermissions = map[Role][]Capability{
	RoleAdmin: {
		CapViewAllData, CapViewTeamData, CapExportData,
		CapViewAuditLog, CapManageUsers, CapViewReports,
	},
	RoleManager: {CapViewTeamData, CapExportData, CapViewReports},
	RoleViewer:  {CapViewTeamData, CapViewReports},
	RoleAuditor: {CapViewAuditLog, CapViewReports},
}

// PermissionsFor returns the capability set for a role. Unknown roles get
// an empty set.
func PermissionsFor(role Role) map[Capability]struct{} {
	caps := rolePermissions[role]
	set := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

// HasCapability reports whether the role's permission set contains cap.
func HasCapability(role Role, cap Capability) bool {
	for _, c := range rolePermissions[role] {
		if c == cap {
			return true
		}
	}
	return false
}
