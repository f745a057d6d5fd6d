package graph

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInmemDirectory_CreateAdminUnit(t *testing.T) {
	d := NewInmemDirectory()
	ctx := context.Background()

	au, err := d.CreateAdminUnit(ctx, "Sales", "admin@corp.com")
	require.NoError(t, err)
	assert.Equal(t, "Sales", au.DisplayName)
	assert.Equal(t, "AU managed by admin@corp.com", au.Description)

	// Same name comes back with the same id, no second unit.
	again, err := d.CreateAdminUnit(ctx, "Sales", "other@corp.com")
	require.NoError(t, err)
	assert.Equal(t, au.ID, again.ID)

	// The requesting admin passes the scoped-role check, strangers do not.
	ok, err := d.IsUserAdminOfAU(ctx, "ADMIN@corp.com", au.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.IsUserAdminOfAU(ctx, "eve@corp.com", au.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInmemDirectory_GroupLifecycle(t *testing.T) {
	d := NewInmemDirectory()
	ctx := context.Background()

	au, err := d.CreateAdminUnit(ctx, "Sales", "admin@corp.com")
	require.NoError(t, err)

	group, err := d.CreateGroup(ctx, "Reps", au.ID, "admin@corp.com")
	require.NoError(t, err)
	assert.Equal(t, "AUG_Reps", group.DisplayName)
	assert.Equal(t, au.ID, group.AUID)
	assert.Equal(t, []string{group.ID}, d.GroupsInAU(au.ID))

	require.NoError(t, d.AddMembersToGroup(ctx, group.ID, []string{"a@corp.com", "b@corp.com"}))
	assert.Equal(t, []string{"a@corp.com", "b@corp.com"}, d.GroupMembers(group.ID))

	require.NoError(t, d.RemoveGroupFromAU(ctx, group.ID, au.ID))
	assert.Empty(t, d.GroupsInAU(au.ID))

	// Removing the edge twice is a 404, matching the live directory.
	err = d.RemoveGroupFromAU(ctx, group.ID, au.ID)
	se, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestInmemDirectory_UnknownUnit(t *testing.T) {
	d := NewInmemDirectory()
	ctx := context.Background()

	_, err := d.CreateGroup(ctx, "Reps", "au-missing", "admin@corp.com")
	se, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)

	_, err = d.IsUserAdminOfAU(ctx, "admin@corp.com", "au-missing")
	require.Error(t, err)
}

func TestInmemDirectory_AddAdminIdempotent(t *testing.T) {
	d := NewInmemDirectory()
	ctx := context.Background()

	au, err := d.CreateAdminUnit(ctx, "Sales", "admin@corp.com")
	require.NoError(t, err)

	require.NoError(t, d.AddAdminToAU(ctx, au.ID, "second@corp.com"))
	require.NoError(t, d.AddAdminToAU(ctx, au.ID, "SECOND@corp.com"))

	members, err := d.ListScopedRoleMembers(ctx, au.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
	for _, m := range members {
		assert.Equal(t, DirectoryWritersRoleID, m.RoleID)
	}
}

func TestInmemDirectory_AppRegistrationScope(t *testing.T) {
	d := NewInmemDirectory()
	ctx := context.Background()

	au, err := d.CreateAdminUnit(ctx, "Sales", "admin@corp.com")
	require.NoError(t, err)

	reg, err := d.CreateAppRegistration(ctx, au.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, reg.ClientSecret)
	require.NotNil(t, reg.RoleAssignment)
	assert.Equal(t, DirectoryWritersRoleID, reg.RoleAssignment.RoleDefinitionID)
	assert.Equal(t, "/directory/administrativeUnits/"+au.ID, reg.RoleAssignment.DirectoryScopeID)
	assert.Equal(t, reg.ServicePrincipalID, reg.RoleAssignment.PrincipalID)
}
