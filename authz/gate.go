// Copyright (c) 2025 Steward Project
// SPDX-License-Identifier: MPL-2.0

package authz

import (
	"context"
	"fmt"

	"github.com/stephnangue/steward/logger"
)

// ScopedRoleChecker is the slice of the directory client the gate needs.
type ScopedRoleChecker interface {
	IsUserAdminOfAU(ctx context.Context, userUPN, auID string) (bool, error)
}

// NotScopedAdminError is returned when a caller is not a registered scoped
// administrator of the administrative unit it is trying to mutate.
type NotScopedAdminError struct {
	UPN  string
	AUID string
}

func (e *NotScopedAdminError) Error() string {
	return fmt.Sprintf("caller %q is not a scoped admin of administrative unit %q", e.UPN, e.AUID)
}

// Gate decides whether a caller may mutate an administrative unit. The
// decision depends on directory state, not request state: the caller must
// appear in the unit's scoped-role membership at check time.
//
// The gate is not consulted for AU creation (the creator of a new unit
// cannot yet be in its admin set).
type Gate struct {
	checker ScopedRoleChecker
	logger  logger.Logger
}

// NewGate creates an authorization gate backed by the given checker.
func NewGate(checker ScopedRoleChecker, log logger.Logger) *Gate {
	return &Gate{checker: checker, logger: log}
}

// Authorize returns nil when callerUPN holds a scoped role on the unit, a
// *NotScopedAdminError when it does not, and the lookup error otherwise.
// A failed lookup is never treated as a denial.
func (g *Gate) Authorize(ctx context.Context, callerUPN, auID string) error {
	isAdmin, err := g.checker.IsUserAdminOfAU(ctx, callerUPN, auID)
	if err != nil {
		return err
	}
	if !isAdmin {
		if g.logger != nil {
			g.logger.Warn("authorization denied",
				logger.String("caller", callerUPN),
				logger.String("au_id", auID),
			)
		}
		return &NotScopedAdminError{UPN: callerUPN, AUID: auID}
	}
	return nil
}
