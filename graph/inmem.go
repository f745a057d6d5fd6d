package graph

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// InmemDirectory is a deterministic in-memory stand-in for the directory
// service. It honors the same contracts as Client: idempotent AU creation,
// the AUG_ group naming convention, scoped-role admin semantics, and
// *ServiceError results with directory-like status codes. Used by dev mode
// and by tests; it holds no authority beyond the process lifetime.
type InmemDirectory struct {
	mu sync.Mutex

	seq     int
	units   map[string]*AdministrativeUnit // by id
	groups  map[string]*Group              // by id
	owners  map[string][]string            // group id -> owner UPNs
	auEdges map[string]map[string]bool     // au id -> group ids
	admins  map[string][]ScopedRoleMember  // au id -> scoped role members
	members map[string][]string            // group id -> member UPNs
	appRegs map[string]*AppRegistration    // client id -> app registration
}

// NewInmemDirectory creates an empty in-memory directory.
func NewInmemDirectory() *InmemDirectory {
	return &InmemDirectory{
		units:   make(map[string]*AdministrativeUnit),
		groups:  make(map[string]*Group),
		owners:  make(map[string][]string),
		auEdges: make(map[string]map[string]bool),
		admins:  make(map[string][]ScopedRoleMember),
		members: make(map[string][]string),
		appRegs: make(map[string]*AppRegistration),
	}
}

// nextID returns a deterministic id with the given prefix. Callers hold mu.
func (d *InmemDirectory) nextID(prefix string) string {
	d.seq++
	return fmt.Sprintf("%s-%04d", prefix, d.seq)
}

func notFound(operation, detail string) *ServiceError {
	return &ServiceError{
		Operation:  operation,
		StatusCode: http.StatusNotFound,
		Body:       fmt.Sprintf(`{"error":{"code":"Request_ResourceNotFound","message":"%s"}}`, detail),
	}
}

// FindAdminUnitByName returns the unit with the exact display name, or nil.
func (d *InmemDirectory) FindAdminUnitByName(ctx context.Context, name string) (*AdministrativeUnit, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, au := range d.units {
		if au.DisplayName == name {
			cp := *au
			return &cp, nil
		}
	}
	return nil, nil
}

// CreateAdminUnit creates a unit or returns the existing one with the same
// display name. The requesting admin is seeded as a scoped-role member so
// that subsequent mutations of the unit pass the authorization gate.
func (d *InmemDirectory) CreateAdminUnit(ctx context.Context, name, requestingAdmin string) (*AdministrativeUnit, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, au := range d.units {
		if au.DisplayName == name {
			cp := *au
			return &cp, nil
		}
	}

	au := &AdministrativeUnit{
		ID:          d.nextID("au"),
		DisplayName: name,
		Description: fmt.Sprintf("AU managed by %s", requestingAdmin),
		Visibility:  "Public",
	}
	d.units[au.ID] = au
	d.auEdges[au.ID] = make(map[string]bool)
	d.admins[au.ID] = append(d.admins[au.ID], ScopedRoleMember{
		ID:     d.nextID("srm"),
		RoleID: DirectoryWritersRoleID,
		RoleMemberInfo: Identity{
			ID:                d.nextID("user"),
			UserPrincipalName: requestingAdmin,
		},
	})

	cp := *au
	return &cp, nil
}

// CreateGroup creates a security group named GroupNamePrefix+name and binds
// it to the unit.
func (d *InmemDirectory) CreateGroup(ctx context.Context, name, auID, owner string) (*Group, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.units[auID]; !ok {
		return nil, notFound("bindGroupToAU", "administrative unit "+auID+" not found")
	}

	group := &Group{
		ID:          d.nextID("group"),
		DisplayName: GroupNamePrefix + name,
		AUID:        auID,
	}
	d.groups[group.ID] = group
	d.owners[group.ID] = []string{owner}
	d.auEdges[auID][group.ID] = true

	cp := *group
	return &cp, nil
}

// CreateAppRegistration mints a fake application identity with the same
// shape and role-assignment scope as the live client.
func (d *InmemDirectory) CreateAppRegistration(ctx context.Context, auID string) (*AppRegistration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.units[auID]; !ok {
		return nil, notFound("createRoleAssignment", "administrative unit "+auID+" not found")
	}

	reg := &AppRegistration{
		AppID:              d.nextID("app"),
		ClientID:           d.nextID("obj"),
		ClientSecret:       d.nextID("secret"),
		ServicePrincipalID: d.nextID("sp"),
		AUID:               auID,
		RoleAssignment: &RoleAssignment{
			ID:               d.nextID("ra"),
			RoleDefinitionID: DirectoryWritersRoleID,
			DirectoryScopeID: "/directory/administrativeUnits/" + auID,
		},
	}
	reg.RoleAssignment.PrincipalID = reg.ServicePrincipalID
	d.appRegs[reg.ClientID] = reg

	cp := *reg
	return &cp, nil
}

// ListScopedRoleMembers lists the unit's scoped-role membership.
func (d *InmemDirectory) ListScopedRoleMembers(ctx context.Context, auID string) ([]ScopedRoleMember, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.units[auID]; !ok {
		return nil, notFound("listScopedRoleMembers", "administrative unit "+auID+" not found")
	}
	return append([]ScopedRoleMember(nil), d.admins[auID]...), nil
}

// IsUserAdminOfAU reports whether userUPN holds a scoped role on the unit.
func (d *InmemDirectory) IsUserAdminOfAU(ctx context.Context, userUPN, auID string) (bool, error) {
	members, err := d.ListScopedRoleMembers(ctx, auID)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if strings.EqualFold(m.RoleMemberInfo.UserPrincipalName, userUPN) {
			return true, nil
		}
	}
	return false, nil
}

// AddGroupToAU binds an existing group into a unit.
func (d *InmemDirectory) AddGroupToAU(ctx context.Context, groupID, auID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.units[auID]; !ok {
		return notFound("bindGroupToAU", "administrative unit "+auID+" not found")
	}
	if _, ok := d.groups[groupID]; !ok {
		return notFound("bindGroupToAU", "group "+groupID+" not found")
	}
	d.auEdges[auID][groupID] = true
	d.groups[groupID].AUID = auID
	return nil
}

// RemoveGroupFromAU removes the membership edge; the group object survives.
func (d *InmemDirectory) RemoveGroupFromAU(ctx context.Context, groupID, auID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	edges, ok := d.auEdges[auID]
	if !ok {
		return notFound("unbindGroupFromAU", "administrative unit "+auID+" not found")
	}
	if !edges[groupID] {
		return notFound("unbindGroupFromAU", "group "+groupID+" is not a member of "+auID)
	}
	delete(edges, groupID)
	if g, ok := d.groups[groupID]; ok && g.AUID == auID {
		g.AUID = ""
	}
	return nil
}

// AddMembersToGroup adds user principal names to a group.
func (d *InmemDirectory) AddMembersToGroup(ctx context.Context, groupID string, members []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.groups[groupID]; !ok {
		return notFound("addMembersToGroup", "group "+groupID+" not found")
	}
	d.members[groupID] = append(d.members[groupID], members...)
	return nil
}

// AddAdminToAU grants adminUPN a Directory Writers scoped role on the unit.
func (d *InmemDirectory) AddAdminToAU(ctx context.Context, auID, adminUPN string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.units[auID]; !ok {
		return notFound("addScopedRoleMember", "administrative unit "+auID+" not found")
	}
	for _, m := range d.admins[auID] {
		if strings.EqualFold(m.RoleMemberInfo.UserPrincipalName, adminUPN) {
			return nil // already an admin, idempotent
		}
	}
	d.admins[auID] = append(d.admins[auID], ScopedRoleMember{
		ID:     d.nextID("srm"),
		RoleID: DirectoryWritersRoleID,
		RoleMemberInfo: Identity{
			ID:                d.nextID("user"),
			UserPrincipalName: adminUPN,
		},
	})
	return nil
}

// GroupMembers returns the recorded membership of a group. Test helper.
func (d *InmemDirectory) GroupMembers(groupID string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.members[groupID]...)
}

// GroupsInAU returns the ids of groups currently bound to a unit. Test helper.
func (d *InmemDirectory) GroupsInAU(auID string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var ids []string
	for id := range d.auEdges[auID] {
		ids = append(ids, id)
	}
	return ids
}
