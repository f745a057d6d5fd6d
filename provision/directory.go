package provision

import (
	"context"

	"github.com/stephnangue/steward/graph"
)

// Directory is the slice of the directory service the orchestrator drives.
// graph.Client implements it against Microsoft Graph; graph.InmemDirectory
// implements it for tests and dev mode. The directory is the single source
// of truth: no provisioned entity is persisted locally.
type Directory interface {
	CreateAdminUnit(ctx context.Context, name, requestingAdmin string) (*graph.AdministrativeUnit, error)
	CreateGroup(ctx context.Context, name, auID, owner string) (*graph.Group, error)
	CreateAppRegistration(ctx context.Context, auID string) (*graph.AppRegistration, error)
	AddGroupToAU(ctx context.Context, groupID, auID string) error
	RemoveGroupFromAU(ctx context.Context, groupID, auID string) error
	AddMembersToGroup(ctx context.Context, groupID string, members []string) error
	AddAdminToAU(ctx context.Context, auID, adminUPN string) error
}

// Authorizer gates mutations of existing administrative units.
type Authorizer interface {
	Authorize(ctx context.Context, callerUPN, auID string) error
}

var _ Directory = (*graph.Client)(nil)
var _ Directory = (*graph.InmemDirectory)(nil)
