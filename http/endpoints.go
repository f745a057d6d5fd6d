// Copyright (c) 2025 Steward Project
// SPDX-License-Identifier: MPL-2.0

package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stephnangue/steward/logger"
	"github.com/stephnangue/steward/provision"
)

// provisionResponse is the aggregate returned by POST /provision.
type provisionResponse struct {
	Status             string                   `json:"status"`
	AdministrativeUnit *adminUnitResponse       `json:"administrative_unit"`
	Groups             []groupResponse          `json:"groups"`
	AppRegistration    *appRegistrationResponse `json:"app_registration"`
	RequestedBy        string                   `json:"requested_by"`
}

func handleProvision(props *HandlerProperties) http.Handler {
	return requirePost(func(w http.ResponseWriter, r *http.Request) {
		var req provision.ProvisionRequest
		if err := decodeRequest(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.AUName == "" || req.UserUPN == "" {
			respondError(w, http.StatusBadRequest, "au_name and user_upn are required")
			return
		}

		result, err := props.Orchestrator.Provision(r.Context(), req)
		if err != nil {
			logRequestError(props, r, "provision", err)

			// Group-loop failures carry the partial state; report it so the
			// caller can see which groups made it before the failure.
			var gpe *provision.GroupProvisionError
			if errors.As(err, &gpe) {
				respondErrorBody(w, errorToStatusCode(err), &ErrorResponse{
					Detail:             err.Error(),
					AdministrativeUnit: newAdminUnitResponse(gpe.AdministrativeUnit),
					ProvisionedGroups:  newGroupResponses(gpe.Provisioned),
				})
				return
			}

			respondError(w, errorToStatusCode(err), err.Error())
			return
		}

		respondOk(w, &provisionResponse{
			Status:             "success",
			AdministrativeUnit: newAdminUnitResponse(result.AdministrativeUnit),
			Groups:             newGroupResponses(result.Groups),
			AppRegistration:    newAppRegistrationResponse(result.AppRegistration),
			RequestedBy:        result.RequestedBy,
		})
	})
}

func handleRemoveGroup(props *HandlerProperties) http.Handler {
	return requirePost(func(w http.ResponseWriter, r *http.Request) {
		var req provision.RemoveGroupRequest
		if err := decodeRequest(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.GroupID == "" || req.AUID == "" || req.UserUPN == "" {
			respondError(w, http.StatusBadRequest, "group_id, au_id and user_upn are required")
			return
		}

		if err := props.Orchestrator.RemoveGroup(r.Context(), req); err != nil {
			logRequestError(props, r, "remove_group", err)
			respondError(w, errorToStatusCode(err), err.Error())
			return
		}

		respondOk(w, map[string]any{
			"status":       "success",
			"group_id":     req.GroupID,
			"requested_by": req.UserUPN,
		})
	})
}

func handleAddGroup(props *HandlerProperties) http.Handler {
	return requirePost(func(w http.ResponseWriter, r *http.Request) {
		var req provision.AddGroupRequest
		if err := decodeRequest(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.GroupID == "" || req.AUID == "" || req.UserUPN == "" {
			respondError(w, http.StatusBadRequest, "group_id, au_id and user_upn are required")
			return
		}

		if err := props.Orchestrator.AddGroup(r.Context(), req); err != nil {
			logRequestError(props, r, "add_group", err)
			respondError(w, errorToStatusCode(err), err.Error())
			return
		}

		respondOk(w, map[string]any{
			"status":       "success",
			"group_id":     req.GroupID,
			"au_id":        req.AUID,
			"requested_by": req.UserUPN,
		})
	})
}

func handleAddMembers(props *HandlerProperties) http.Handler {
	return requirePost(func(w http.ResponseWriter, r *http.Request) {
		var req provision.AddMembersRequest
		if err := decodeRequest(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.GroupID == "" || len(req.Members) == 0 || req.UserUPN == "" {
			respondError(w, http.StatusBadRequest, "group_id, members and user_upn are required")
			return
		}

		if err := props.Orchestrator.AddMembers(r.Context(), req); err != nil {
			logRequestError(props, r, "add_members", err)
			respondError(w, errorToStatusCode(err), err.Error())
			return
		}

		respondOk(w, map[string]any{
			"group_id":      req.GroupID,
			"added_members": req.Members,
			"requested_by":  req.UserUPN,
		})
	})
}

func handleAddAdmin(props *HandlerProperties) http.Handler {
	return requirePost(func(w http.ResponseWriter, r *http.Request) {
		var req provision.AddAdminRequest
		if err := decodeRequest(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.AUID == "" || req.AdminUPN == "" || req.UserUPN == "" {
			respondError(w, http.StatusBadRequest, "au_id, admin_upn and user_upn are required")
			return
		}

		if err := props.Orchestrator.AddAdmin(r.Context(), req); err != nil {
			logRequestError(props, r, "add_admin", err)
			respondError(w, errorToStatusCode(err), err.Error())
			return
		}

		respondOk(w, map[string]any{
			"au_id":        req.AUID,
			"admin":        req.AdminUPN,
			"requested_by": req.UserUPN,
		})
	})
}

func handleListTools(props *HandlerProperties) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			respondError(w, http.StatusMethodNotAllowed, "method "+r.Method+" not allowed")
			return
		}

		respondOk(w, map[string]any{
			"available_tools": props.Orchestrator.Tools(),
		})
	})
}

func logRequestError(props *HandlerProperties, r *http.Request, operation string, err error) {
	if props.Logger == nil {
		return
	}
	props.Logger.Error("request failed",
		logger.String("operation", operation),
		logger.String("request_id", middleware.GetReqID(r.Context())),
		logger.Err(err),
	)
}
