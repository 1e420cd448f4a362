package objs

import "testing"

func TestTokenScopeLattice(t *testing.T) {
	if !TokenScopePowerUser.HasAccessTo(TokenScopeUser) {
		t.Fatal("PowerUser should have access to User-level routes")
	}
	if TokenScopeUser.HasAccessTo(TokenScopePowerUser) {
		t.Fatal("User must not have access to PowerUser-level routes")
	}
}

func TestResourceRoleLattice(t *testing.T) {
	if !ResourceRoleAdmin.HasAccessTo(ResourceRoleManager) {
		t.Fatal("Admin should dominate Manager")
	}
	if ResourceRoleUser.HasAccessTo(ResourceRoleAdmin) {
		t.Fatal("User must not dominate Admin")
	}
}

func TestHighestResourceRole(t *testing.T) {
	role, ok := HighestResourceRole([]string{"resource_user", "resource_manager", "garbage"})
	if !ok {
		t.Fatal("expected a role to be found")
	}
	if role != ResourceRoleManager {
		t.Fatalf("expected Manager as the highest role, got %v", role)
	}
}

func TestUserScopeLattice(t *testing.T) {
	if !UserScopeManager.HasAccessTo(UserScopePowerUser) {
		t.Fatal("Manager should dominate PowerUser")
	}
	if UserScopeUser.HasAccessTo(UserScopeManager) {
		t.Fatal("User must not dominate Manager")
	}
}
