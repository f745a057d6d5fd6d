package provision

import "github.com/stephnangue/steward/graph"

// ProvisionRequest asks for an administrative unit with bound groups and an
// optional application identity. Transient value object; never persisted.
type ProvisionRequest struct {
	AUName                string   `json:"au_name" mapstructure:"au_name"`
	Groups                []string `json:"groups" mapstructure:"groups"`
	CreateAppRegistration bool     `json:"create_app_registration" mapstructure:"create_app_registration"`
	UserUPN               string   `json:"user_upn" mapstructure:"user_upn"`
}

// ProvisionResult aggregates everything a provisioning run produced.
type ProvisionResult struct {
	AdministrativeUnit *graph.AdministrativeUnit `json:"administrative_unit"`
	Groups             []graph.Group             `json:"groups"`
	AppRegistration    *graph.AppRegistration    `json:"app_registration"`
	RequestedBy        string                    `json:"requested_by"`
}

// RemoveGroupRequest detaches a group from an administrative unit.
type RemoveGroupRequest struct {
	GroupID string `json:"group_id" mapstructure:"group_id"`
	AUID    string `json:"au_id" mapstructure:"au_id"`
	UserUPN string `json:"user_upn" mapstructure:"user_upn"`
}

// AddGroupRequest reattaches a group to an administrative unit.
type AddGroupRequest struct {
	GroupID string `json:"group_id" mapstructure:"group_id"`
	AUID    string `json:"au_id" mapstructure:"au_id"`
	UserUPN string `json:"user_upn" mapstructure:"user_upn"`
}

// AddMembersRequest adds users to a group.
type AddMembersRequest struct {
	GroupID string   `json:"group_id" mapstructure:"group_id"`
	Members []string `json:"members" mapstructure:"members"`
	UserUPN string   `json:"user_upn" mapstructure:"user_upn"`
}

// AddAdminRequest grants a scoped admin role on an administrative unit.
type AddAdminRequest struct {
	AUID     string `json:"au_id" mapstructure:"au_id"`
	AdminUPN string `json:"admin_upn" mapstructure:"admin_upn"`
	UserUPN  string `json:"user_upn" mapstructure:"user_upn"`
}
