// Copyright (c) 2025 Steward Project
// SPDX-License-Identifier: MPL-2.0

package http

import "github.com/stephnangue/steward/graph"

// The response types below are the public API contract: snake_case keys with
// `name` for display names, decoupled from the directory wire format of the
// graph package. Changing a graph struct tag must not change what callers see.

type adminUnitResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type groupResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	AUID string `json:"au_id"`
}

type roleAssignmentResponse struct {
	ID               string `json:"id,omitempty"`
	PrincipalID      string `json:"principal_id"`
	RoleDefinitionID string `json:"role_definition_id"`
	DirectoryScopeID string `json:"directory_scope_id"`
}

type appRegistrationResponse struct {
	AppID              string                  `json:"app_id"`
	ClientID           string                  `json:"client_id"`
	ClientSecret       string                  `json:"client_secret"`
	ServicePrincipalID string                  `json:"service_principal_id"`
	AUID               string                  `json:"au_id"`
	RoleAssignment     *roleAssignmentResponse `json:"role_assignment,omitempty"`
}

func newAdminUnitResponse(au *graph.AdministrativeUnit) *adminUnitResponse {
	if au == nil {
		return nil
	}
	return &adminUnitResponse{
		ID:          au.ID,
		Name:        au.DisplayName,
		Description: au.Description,
	}
}

func newGroupResponses(groups []graph.Group) []groupResponse {
	out := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupResponse{
			ID:   g.ID,
			Name: g.DisplayName,
			AUID: g.AUID,
		})
	}
	return out
}

func newAppRegistrationResponse(reg *graph.AppRegistration) *appRegistrationResponse {
	if reg == nil {
		return nil
	}
	resp := &appRegistrationResponse{
		AppID:              reg.AppID,
		ClientID:           reg.ClientID,
		ClientSecret:       reg.ClientSecret,
		ServicePrincipalID: reg.ServicePrincipalID,
		AUID:               reg.AUID,
	}
	if ra := reg.RoleAssignment; ra != nil {
		resp.RoleAssignment = &roleAssignmentResponse{
			ID:               ra.ID,
			PrincipalID:      ra.PrincipalID,
			RoleDefinitionID: ra.RoleDefinitionID,
			DirectoryScopeID: ra.DirectoryScopeID,
		}
	}
	return resp
}
