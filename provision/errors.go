package provision

import (
	"fmt"

	"github.com/stephnangue/steward/graph"
)

// GroupProvisionError reports a failure inside the group-creation loop
// together with the partial state that remains provisioned: the resolved
// administrative unit and every group created and bound before the failing
// one. Nothing is rolled back; the caller decides what to do with the
// partial result.
type GroupProvisionError struct {
	AdministrativeUnit *graph.AdministrativeUnit
	Provisioned        []graph.Group
	FailedGroup        string
	Err                error
}

func (e *GroupProvisionError) Error() string {
	return fmt.Sprintf("provisioning group %q failed (%d group(s) already provisioned): %v",
		e.FailedGroup, len(e.Provisioned), e.Err)
}

func (e *GroupProvisionError) Unwrap() error {
	return e.Err
}
