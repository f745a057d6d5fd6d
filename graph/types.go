package graph

// DefaultBaseURL is the fixed Microsoft Graph endpoint for directory operations.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// DirectoryWritersRoleID is the fixed role definition granting write access
// within its assigned scope ("Directory Writers").
const DirectoryWritersRoleID = "fe930be7-5e62-47db-91af-98c3a49a38b1"

// GroupNamePrefix is prepended to every requested group name at creation.
const GroupNamePrefix = "AUG_"

// AdministrativeUnit is a directory container scoping administration of a
// subset of groups and users. Immutable from this system's perspective once
// created; admin membership is a directory-side relation.
type AdministrativeUnit struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
	Visibility  string `json:"visibility,omitempty"`
}

// Group is a security group bound to exactly one administrative unit at
// creation time. AUID records the unit the group was bound to at bind time.
type Group struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AUID        string `json:"auId,omitempty"`
}

// RoleAssignment scopes a role definition to a directory resource for a
// principal. Write-once.
type RoleAssignment struct {
	ID               string `json:"id,omitempty"`
	PrincipalID      string `json:"principalId"`
	RoleDefinitionID string `json:"roleDefinitionId"`
	DirectoryScopeID string `json:"directoryScopeId"`
}

// AppRegistration is the unit created by CreateAppRegistration: application
// object, password credential, service principal, and a role assignment
// scoping Directory Writers to the administrative unit.
//
// ClientSecret is one-time-visible credential material; it is returned to the
// caller and never persisted by this system.
type AppRegistration struct {
	AppID              string          `json:"appId"`
	ClientID           string          `json:"clientId"`
	ClientSecret       string          `json:"clientSecret"`
	ServicePrincipalID string          `json:"servicePrincipalId"`
	AUID               string          `json:"auId"`
	RoleAssignment     *RoleAssignment `json:"roleAssignment,omitempty"`
}

// ScopedRoleMember is one entry of an administrative unit's scoped-role
// membership list.
type ScopedRoleMember struct {
	ID             string   `json:"id,omitempty"`
	RoleID         string   `json:"roleId,omitempty"`
	RoleMemberInfo Identity `json:"roleMemberInfo"`
}

// Identity describes the principal behind a scoped role membership.
type Identity struct {
	ID                string `json:"id,omitempty"`
	DisplayName       string `json:"displayName,omitempty"`
	UserPrincipalName string `json:"userPrincipalName,omitempty"`
}
