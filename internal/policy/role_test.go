package policy

import (
	"errors"
	"testing"
)

func TestParseRole(t *testing.T) {
	role, err := ParseRole("  Admin ")
	if err != nil || role != RoleAdmin {
		t.Fatalf("ParseRole(Admin)=%s, %v", role, err)
	}
	if _, err := ParseRole("superuser"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestPermissionTable(t *testing.T) {
	if !HasCapability(RoleAdmin, CapViewAuditLog) {
		t.Fatal("admin must view the audit log")
	}
	if !HasCapability(RoleAuditor, CapViewAuditLog) {
		t.Fatal("auditor must view the audit log")
	}
	if HasCapability(RoleViewer, CapExportData) {
		t.Fatal("viewer must not export data")
	}
	if HasCapability(RoleManager, CapViewAllData) {
		t.Fatal("manager must not see all data")
	}
	if !HasCapability(RoleManager, CapViewTeamData) {
		t.Fatal("manager must see team data")
	}
	if HasCapability(Role("intern"), CapViewReports) {
		t.Fatal("unknown role must have no capabilities")
	}
}

func TestPermissionsForReturnsCopy(t *testing.T) {
	set := PermissionsFor(RoleViewer)
	set[CapExportData] = struct{}{}
	if HasCapability(RoleViewer, CapExportData) {
		t.Fatal("mutating the returned set leaked into the table")
	}
	if len(PermissionsFor(Role("intern"))) != 0 {
		t.Fatal("unknown role must map to an empty set")
	}
}
