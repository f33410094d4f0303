// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package supervisor

import (
	"sort"

	"github.com/tomtom215/agentfleet/internal/fleet"
)

// Observed is what the reconciler knows about a tracked worker.
type Observed struct {
	Spec  fleet.WorkerSpec
	Alive bool
}

// Plan lists the effects needed to converge. Stops are applied before starts.
type Plan struct {
	Start []fleet.WorkerSpec
	Stop  []string
}

// Empty reports whether the plan has no effects.
func (p Plan) Empty() bool {
	return len(p.Start) == 0 && len(p.Stop) == 0
}

// StartNames returns the names in Start.
func (p Plan) StartNames() []string {
	return fleet.Names(p.Start)
}

// Diff computes the plan that takes current to desired.
//
//   - Start: desired workers that are not tracked, not alive, or whose spec changed.
//   - Stop: tracked workers that are no longer desired or whose spec changed.
//
// A changed spec therefore appears once in each list. Both lists are sorted
// by name. Diff does not touch any process.
func Diff(desired []fleet.WorkerSpec, current map[string]Observed) Plan {
	var plan Plan
	wanted := make(map[string]struct{}, len(desired))

	for _, spec := range desired {
		wanted[spec.Name] = struct{}{}
		obs, tracked := current[spec.Name]
		switch {
		case !tracked:
			plan.Start = append(plan.Start, spec)
		case !obs.Spec.Equal(spec):
			plan.Stop = append(plan.Stop, spec.Name)
			plan.Start = append(plan.Start, spec)
		case !obs.Alive:
			plan.Start = append(plan.Start, spec)
		}
	}

	for name := range current {
		if _, ok := wanted[name]; !ok {
			plan.Stop = append(plan.Stop, name)
		}
	}

	sort.Slice(plan.Start, func(i, j int) bool { return plan.Start[i].Name < plan.Start[j].Name })
	sort.Strings(plan.Stop)
	return plan
}
