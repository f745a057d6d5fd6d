package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephnangue/steward/authz"
	"github.com/stephnangue/steward/graph"
)

// failingDirectory wraps an in-memory directory and fails CreateGroup for
// selected group names.
type failingDirectory struct {
	*graph.InmemDirectory
	failGroups map[string]error
	created    []string
}

func (f *failingDirectory) CreateGroup(ctx context.Context, name, auID, owner string) (*graph.Group, error) {
	if err, ok := f.failGroups[name]; ok {
		return nil, err
	}
	f.created = append(f.created, name)
	return f.InmemDirectory.CreateGroup(ctx, name, auID, owner)
}

func newOrchestrator(t *testing.T, dir Directory, memberAdd MemberAddPolicy) *Orchestrator {
	t.Helper()

	checker, ok := dir.(authz.ScopedRoleChecker)
	require.True(t, ok)

	orch, err := NewOrchestrator(Config{
		Directory:  dir,
		Authorizer: authz.NewGate(checker, nil),
		MemberAdd:  memberAdd,
	})
	require.NoError(t, err)
	return orch
}

func TestProvision_HappyPath(t *testing.T) {
	dir := graph.NewInmemDirectory()
	orch := newOrchestrator(t, dir, MemberAddPolicy{})

	result, err := orch.Provision(context.Background(), ProvisionRequest{
		AUName:  "Sales",
		Groups:  []string{"Reps", "Managers"},
		UserUPN: "admin@corp.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "Sales", result.AdministrativeUnit.DisplayName)
	assert.Equal(t, "admin@corp.com", result.RequestedBy)
	assert.Nil(t, result.AppRegistration)

	require.Len(t, result.Groups, 2)
	assert.Equal(t, "AUG_Reps", result.Groups[0].DisplayName)
	assert.Equal(t, "AUG_Managers", result.Groups[1].DisplayName)
	assert.Len(t, dir.GroupsInAU(result.AdministrativeUnit.ID), 2)
}

func TestProvision_WithAppRegistration(t *testing.T) {
	dir := graph.NewInmemDirectory()
	orch := newOrchestrator(t, dir, MemberAddPolicy{})

	result, err := orch.Provision(context.Background(), ProvisionRequest{
		AUName:                "Sales",
		CreateAppRegistration: true,
		UserUPN:               "admin@corp.com",
	})
	require.NoError(t, err)

	require.NotNil(t, result.AppRegistration)
	assert.Equal(t, result.AdministrativeUnit.ID, result.AppRegistration.AUID)
	assert.Equal(t,
		"/directory/administrativeUnits/"+result.AdministrativeUnit.ID,
		result.AppRegistration.RoleAssignment.DirectoryScopeID)
}

func TestProvision_PartialGroupFailure(t *testing.T) {
	bindErr := &graph.ServiceError{Operation: "bindGroupToAU", StatusCode: 403, Body: "denied"}
	dir := &failingDirectory{
		InmemDirectory: graph.NewInmemDirectory(),
		failGroups:     map[string]error{"B": bindErr},
	}
	orch := newOrchestrator(t, dir, MemberAddPolicy{})

	_, err := orch.Provision(context.Background(), ProvisionRequest{
		AUName:  "Sales",
		Groups:  []string{"A", "B", "C"},
		UserUPN: "admin@corp.com",
	})
	require.Error(t, err)

	var gpe *GroupProvisionError
	require.True(t, errors.As(err, &gpe))

	// Group A survives bound, B is named as the failure, C was never attempted.
	require.Len(t, gpe.Provisioned, 1)
	assert.Equal(t, "AUG_A", gpe.Provisioned[0].DisplayName)
	assert.Equal(t, "B", gpe.FailedGroup)
	assert.Equal(t, []string{"A"}, dir.created)
	assert.ErrorIs(t, err, bindErr)

	// The unit itself is reported so the caller can see the partial state.
	require.NotNil(t, gpe.AdministrativeUnit)
	assert.Len(t, dir.GroupsInAU(gpe.AdministrativeUnit.ID), 1)
}

func TestProvision_Idempotent(t *testing.T) {
	dir := graph.NewInmemDirectory()
	orch := newOrchestrator(t, dir, MemberAddPolicy{})
	ctx := context.Background()

	first, err := orch.Provision(ctx, ProvisionRequest{AUName: "Sales", UserUPN: "admin@corp.com"})
	require.NoError(t, err)

	second, err := orch.Provision(ctx, ProvisionRequest{AUName: "Sales", UserUPN: "admin@corp.com"})
	require.NoError(t, err)
	assert.Equal(t, first.AdministrativeUnit.ID, second.AdministrativeUnit.ID)
}

func TestRemoveGroup_RequiresScopedAdmin(t *testing.T) {
	dir := graph.NewInmemDirectory()
	orch := newOrchestrator(t, dir, MemberAddPolicy{})
	ctx := context.Background()

	result, err := orch.Provision(ctx, ProvisionRequest{
		AUName:  "Sales",
		Groups:  []string{"Reps"},
		UserUPN: "admin@corp.com",
	})
	require.NoError(t, err)

	auID := result.AdministrativeUnit.ID
	groupID := result.Groups[0].ID

	err = orch.RemoveGroup(ctx, RemoveGroupRequest{
		GroupID: groupID,
		AUID:    auID,
		UserUPN: "eve@corp.com",
	})
	var denied *authz.NotScopedAdminError
	require.True(t, errors.As(err, &denied))
	assert.Len(t, dir.GroupsInAU(auID), 1)

	require.NoError(t, orch.RemoveGroup(ctx, RemoveGroupRequest{
		GroupID: groupID,
		AUID:    auID,
		UserUPN: "admin@corp.com",
	}))
	assert.Empty(t, dir.GroupsInAU(auID))

	require.NoError(t, orch.AddGroup(ctx, AddGroupRequest{
		GroupID: groupID,
		AUID:    auID,
		UserUPN: "admin@corp.com",
	}))
	assert.Len(t, dir.GroupsInAU(auID), 1)
}

func TestAddAdmin(t *testing.T) {
	dir := graph.NewInmemDirectory()
	orch := newOrchestrator(t, dir, MemberAddPolicy{})
	ctx := context.Background()

	result, err := orch.Provision(ctx, ProvisionRequest{AUName: "Sales", UserUPN: "admin@corp.com"})
	require.NoError(t, err)
	auID := result.AdministrativeUnit.ID

	// Only an existing scoped admin may mint new ones.
	err = orch.AddAdmin(ctx, AddAdminRequest{AUID: auID, AdminUPN: "new@corp.com", UserUPN: "eve@corp.com"})
	var denied *authz.NotScopedAdminError
	require.True(t, errors.As(err, &denied))

	require.NoError(t, orch.AddAdmin(ctx, AddAdminRequest{
		AUID:     auID,
		AdminUPN: "new@corp.com",
		UserUPN:  "admin@corp.com",
	}))

	ok, err := dir.IsUserAdminOfAU(ctx, "new@corp.com", auID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAddMembers_GatingPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("ungated by default", func(t *testing.T) {
		dir := graph.NewInmemDirectory()
		orch := newOrchestrator(t, dir, MemberAddPolicy{})

		result, err := orch.Provision(ctx, ProvisionRequest{
			AUName:  "Sales",
			Groups:  []string{"Reps"},
			UserUPN: "admin@corp.com",
		})
		require.NoError(t, err)
		groupID := result.Groups[0].ID

		// No scoped-admin requirement: any shared-secret caller may add.
		require.NoError(t, orch.AddMembers(ctx, AddMembersRequest{
			GroupID: groupID,
			Members: []string{"a@corp.com"},
			UserUPN: "eve@corp.com",
		}))
		assert.Equal(t, []string{"a@corp.com"}, dir.GroupMembers(groupID))
	})

	t.Run("gated when configured", func(t *testing.T) {
		dir := graph.NewInmemDirectory()

		au, err := dir.CreateAdminUnit(ctx, "Sales", "admin@corp.com")
		require.NoError(t, err)
		group, err := dir.CreateGroup(ctx, "Reps", au.ID, "admin@corp.com")
		require.NoError(t, err)

		orch := newOrchestrator(t, dir, MemberAddPolicy{Gate: true, AUID: au.ID})

		err = orch.AddMembers(ctx, AddMembersRequest{
			GroupID: group.ID,
			Members: []string{"a@corp.com"},
			UserUPN: "eve@corp.com",
		})
		var denied *authz.NotScopedAdminError
		require.True(t, errors.As(err, &denied))
		assert.Empty(t, dir.GroupMembers(group.ID))

		require.NoError(t, orch.AddMembers(ctx, AddMembersRequest{
			GroupID: group.ID,
			Members: []string{"a@corp.com"},
			UserUPN: "admin@corp.com",
		}))
		assert.Equal(t, []string{"a@corp.com"}, dir.GroupMembers(group.ID))
	})
}

func TestNewOrchestrator_Validation(t *testing.T) {
	dir := graph.NewInmemDirectory()
	gate := authz.NewGate(dir, nil)

	_, err := NewOrchestrator(Config{Authorizer: gate})
	require.Error(t, err)

	_, err = NewOrchestrator(Config{Directory: dir})
	require.Error(t, err)

	_, err = NewOrchestrator(Config{
		Directory:  dir,
		Authorizer: gate,
		MemberAdd:  MemberAddPolicy{Gate: true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "member-add gating")
}

func TestTools(t *testing.T) {
	orch := newOrchestrator(t, graph.NewInmemDirectory(), MemberAddPolicy{})
	assert.Equal(t, []string{
		"provision", "remove_group", "add_group", "add_members", "add_admin", "list_tools",
	}, orch.Tools())
}
