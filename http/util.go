// Copyright (c) 2025 Steward Project
// SPDX-License-Identifier: MPL-2.0

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-viper/mapstructure/v2"
	"github.com/stephnangue/steward/authz"
	"github.com/stephnangue/steward/graph"
)

// ErrorResponse is the JSON error envelope. Detail carries the message; for
// partial provisioning failures the envelope also reports what remains
// provisioned.
type ErrorResponse struct {
	Detail             string             `json:"detail"`
	AdministrativeUnit *adminUnitResponse `json:"administrative_unit,omitempty"`
	ProvisionedGroups  []groupResponse    `json:"provisioned_groups,omitempty"`
}

// respondError writes an error response with the given status code and message.
func respondError(w http.ResponseWriter, status int, message string) {
	respondErrorBody(w, status, &ErrorResponse{Detail: message})
}

func respondErrorBody(w http.ResponseWriter, status int, resp *ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// respondOk writes a successful JSON response with status 200.
func respondOk(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// decodeRequest parses a JSON body into a typed request struct. Bodies are
// decoded weakly: a JSON number is accepted for a string field and vice
// versa, but unknown keys are refused.
func decodeRequest(r *http.Request, out any) error {
	var raw map[string]any
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// errorToStatusCode maps orchestration errors to HTTP status codes. Upstream
// directory status codes are preserved as-is, not translated; everything
// without one is a 500.
func errorToStatusCode(err error) int {
	var notAdmin *authz.NotScopedAdminError
	if errors.As(err, &notAdmin) {
		return http.StatusForbidden
	}

	if se, ok := graph.AsServiceError(err); ok {
		if se.StatusCode > 0 {
			return se.StatusCode
		}
		return http.StatusInternalServerError
	}

	return http.StatusInternalServerError
}
