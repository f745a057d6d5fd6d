package provision

import (
	"context"
	"fmt"

	"github.com/stephnangue/steward/graph"
	"github.com/stephnangue/steward/logger"
)

// MemberAddPolicy makes the AU-scoping of member addition an explicit
// configuration choice. With Gate disabled (the default) /add_members is
// protected by the shared secret alone. With Gate enabled the caller must
// be a scoped admin of AUID before members are added.
type MemberAddPolicy struct {
	Gate bool
	AUID string
}

// Config wires an Orchestrator.
type Config struct {
	Directory  Directory
	Authorizer Authorizer
	MemberAdd  MemberAddPolicy
	Logger     logger.Logger
}

// Orchestrator sequences directory calls to satisfy provisioning and
// mutation requests. One request is one strictly sequential chain of remote
// calls, terminal on the first unrecovered error; concurrent requests are
// isolated only by the directory service itself.
type Orchestrator struct {
	directory  Directory
	authorizer Authorizer
	memberAdd  MemberAddPolicy
	logger     logger.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Directory == nil {
		return nil, fmt.Errorf("directory is required")
	}
	if cfg.Authorizer == nil {
		return nil, fmt.Errorf("authorizer is required")
	}
	if cfg.MemberAdd.Gate && cfg.MemberAdd.AUID == "" {
		return nil, fmt.Errorf("member-add gating requires an administrative unit id")
	}

	return &Orchestrator{
		directory:  cfg.Directory,
		authorizer: cfg.Authorizer,
		memberAdd:  cfg.MemberAdd,
		logger:     cfg.Logger,
	}, nil
}

// Tools returns the operation catalog exposed by the API surface.
func (o *Orchestrator) Tools() []string {
	return []string{
		"provision",
		"remove_group",
		"add_group",
		"add_members",
		"add_admin",
		"list_tools",
	}
}

// Provision runs the provisioning state machine:
//
//  1. Resolve the administrative unit (idempotent find-or-create).
//  2. Create and bind the requested groups in the order supplied. The loop
//     aborts on the first failure; groups provisioned before it stay bound
//     and are reported via *GroupProvisionError.
//  3. Optionally create the application identity. This is the last step, so
//     a failure here leaves the unit and groups provisioned.
//
// The gate is not consulted: the creator of a new unit cannot yet be in its
// admin set.
func (o *Orchestrator) Provision(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error) {
	au, err := o.directory.CreateAdminUnit(ctx, req.AUName, req.UserUPN)
	if err != nil {
		return nil, err
	}

	groups := make([]graph.Group, 0, len(req.Groups))
	for _, name := range req.Groups {
		group, err := o.directory.CreateGroup(ctx, name, au.ID, req.UserUPN)
		if err != nil {
			return nil, &GroupProvisionError{
				AdministrativeUnit: au,
				Provisioned:        groups,
				FailedGroup:        name,
				Err:                err,
			}
		}
		groups = append(groups, *group)
	}

	var appReg *graph.AppRegistration
	if req.CreateAppRegistration {
		appReg, err = o.directory.CreateAppRegistration(ctx, au.ID)
		if err != nil {
			return nil, err
		}
	}

	if o.logger != nil {
		o.logger.Info("provisioning complete",
			logger.String("au_id", au.ID),
			logger.String("requested_by", req.UserUPN),
			logger.Int("groups", len(groups)),
			logger.Bool("app_registration", appReg != nil),
		)
	}

	return &ProvisionResult{
		AdministrativeUnit: au,
		Groups:             groups,
		AppRegistration:    appReg,
		RequestedBy:        req.UserUPN,
	}, nil
}

// RemoveGroup detaches a group from a unit. Caller must be a scoped admin.
func (o *Orchestrator) RemoveGroup(ctx context.Context, req RemoveGroupRequest) error {
	if err := o.authorizer.Authorize(ctx, req.UserUPN, req.AUID); err != nil {
		return err
	}
	return o.directory.RemoveGroupFromAU(ctx, req.GroupID, req.AUID)
}

// AddGroup reattaches a group to a unit. Caller must be a scoped admin.
func (o *Orchestrator) AddGroup(ctx context.Context, req AddGroupRequest) error {
	if err := o.authorizer.Authorize(ctx, req.UserUPN, req.AUID); err != nil {
		return err
	}
	return o.directory.AddGroupToAU(ctx, req.GroupID, req.AUID)
}

// AddMembers adds users to a group. Scoped-admin gating is a configuration
// choice (see MemberAddPolicy); by default the shared secret is the only
// protection.
func (o *Orchestrator) AddMembers(ctx context.Context, req AddMembersRequest) error {
	if o.memberAdd.Gate {
		if err := o.authorizer.Authorize(ctx, req.UserUPN, o.memberAdd.AUID); err != nil {
			return err
		}
	}
	return o.directory.AddMembersToGroup(ctx, req.GroupID, req.Members)
}

// AddAdmin grants a scoped admin role on a unit. Caller must already be a
// scoped admin of that unit.
func (o *Orchestrator) AddAdmin(ctx context.Context, req AddAdminRequest) error {
	if err := o.authorizer.Authorize(ctx, req.UserUPN, req.AUID); err != nil {
		return err
	}
	return o.directory.AddAdminToAU(ctx, req.AUID, req.AdminUPN)
}
