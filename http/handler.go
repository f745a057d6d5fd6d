// Copyright (c) 2025 Steward Project
// SPDX-License-Identifier: MPL-2.0

package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/stephnangue/steward/logger"
	"github.com/stephnangue/steward/provision"
)

// HandlerProperties contains configuration for the HTTP handler
type HandlerProperties struct {
	Orchestrator *provision.Orchestrator

	// APIKey is the expected Authorization header value for every request.
	APIKey string

	Logger logger.Logger
}

// Handler creates and returns the main HTTP handler for steward. Every
// route sits behind the shared-secret check; the per-AU authorization gate
// is the orchestrator's concern.
func Handler(props *HandlerProperties) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/provision", handleProvision(props))
	mux.Handle("/remove_group", handleRemoveGroup(props))
	mux.Handle("/add_group", handleAddGroup(props))
	mux.Handle("/add_members", handleAddMembers(props))
	mux.Handle("/add_admin", handleAddAdmin(props))
	mux.Handle("/list_tools", handleListTools(props))

	return wrapSharedSecret(mux, props)
}

// wrapSharedSecret enforces the static shared-secret check uniformly across
// every route, instead of repeating the comparison per handler. The header
// is compared byte-for-byte against the configured expected value.
func wrapSharedSecret(handler http.Handler, props *HandlerProperties) http.Handler {
	expected := []byte(props.APIKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(presented, expected) != 1 {
			if props.Logger != nil {
				props.Logger.Warn("shared secret mismatch",
					logger.String("path", r.URL.Path),
					logger.String("remote", r.RemoteAddr),
				)
			}
			respondError(w, http.StatusForbidden, "Unauthorized")
			return
		}

		handler.ServeHTTP(w, r)
	})
}

// requirePost rejects non-POST methods before the inner handler runs.
func requirePost(inner http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondError(w, http.StatusMethodNotAllowed, "method "+r.Method+" not allowed")
			return
		}
		inner(w, r)
	})
}
