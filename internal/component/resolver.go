// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package component

import (
	"log/slog"

	"github.com/holomush/componenthost/pkg/errutil"
)

// Resolution is the outcome of dependency resolution.
type Resolution struct {
	// Order is the activation order: every hard dependency precedes its
	// dependent, independent components keep registration order.
	Order []Component
	// Excluded maps each excluded component to the reason it was excluded.
	Excluded map[ID]error
	// Warnings holds unresolved soft dependencies.
	Warnings []error
	// Cycles holds one CYCLIC_DEPENDENCY error per detected hard cycle.
	Cycles []error
}

// Resolve orders components depth-first.
//
// Hard dependencies are placed before their dependent in declared order; a
// hard dependency that is not registered, or is itself excluded, excludes the
// dependent for the rest of the run. Soft dependencies are placed first when
// present and only produce a warning when missing. A hard edge back onto the
// current path is a cycle: every component on it is excluded. A hard edge back
// across a soft edge is not a cycle; the soft edge gives way.
func Resolve(components []Component, logger *slog.Logger) *Resolution {
	if logger == nil {
		logger = slog.Default()
	}
	r := &resolver{
		byID:     make(map[ID]Component, len(components)),
		placed:   make(map[ID]bool, len(components)),
		visiting: make(map[ID]bool),
		logger:   logger,
		res:      &Resolution{Excluded: make(map[ID]error)},
	}
	for _, c := range components {
		r.byID[c.ID()] = c
	}
	for _, c := range components {
		r.visit(c, false)
	}
	return r.res
}

type resolver struct {
	byID     map[ID]Component
	placed   map[ID]bool
	visiting map[ID]bool
	path     []ID
	// soft[i] reports whether path[i] was reached through a soft edge.
	soft   []bool
	logger *slog.Logger
	res    *Resolution
}

type outcome int

const (
	outcomePlaced outcome = iota
	outcomeExcluded
	// outcomeDeferred means a hard dependency is still being visited higher up a
	// soft edge; the component is placed on a later visit.
	outcomeDeferred
)

// visit places c and reports the outcome.
func (r *resolver) visit(c Component, viaSoft bool) outcome {
	id := c.ID()
	if r.placed[id] {
		return outcomePlaced
	}
	if _, ok := r.res.Excluded[id]; ok {
		return outcomeExcluded
	}
	if r.visiting[id] {
		if r.throughSoftEdge(id) {
			return outcomeDeferred
		}
		r.cycle(id)
		return outcomeExcluded
	}

	r.visiting[id] = true
	r.path = append(r.path, id)
	r.soft = append(r.soft, viaSoft)
	defer func() {
		delete(r.visiting, id)
		r.path = r.path[:len(r.path)-1]
		r.soft = r.soft[:len(r.soft)-1]
	}()

	for _, depID := range c.Dependencies(Hard) {
		dep, ok := r.byID[depID]
		if !ok {
			r.exclude(id, ErrMissingHardDependency(id, depID), "hard dependency missing")
			return outcomeExcluded
		}
		switch r.visit(dep, false) {
		case outcomeExcluded:
			if _, ok := r.res.Excluded[id]; !ok {
				r.exclude(id, ErrExcludedDependency(id, depID, r.res.Excluded[depID]), "hard dependency excluded")
			}
			return outcomeExcluded
		case outcomeDeferred:
			return outcomeDeferred
		}
	}

	for _, depID := range c.Dependencies(Soft) {
		dep, ok := r.byID[depID]
		if !ok {
			err := ErrMissingSoftDependency(id, depID)
			r.res.Warnings = append(r.res.Warnings, err)
			errutil.LogWarn(r.logger, "soft dependency missing", err, "component", string(id))
			continue
		}
		if r.visiting[depID] {
			r.logger.Debug("ignoring soft dependency back onto the current path",
				"component", string(id),
				"dependency", string(depID))
			continue
		}
		r.visit(dep, true)
	}

	if _, ok := r.res.Excluded[id]; ok {
		// A hard cycle through this component closed below a soft edge.
		return outcomeExcluded
	}

	r.placed[id] = true
	c.base().setState(StateOrdered)
	r.res.Order = append(r.res.Order, c)
	return outcomePlaced
}

// throughSoftEdge reports whether the path from id down to the current
// component crosses a soft edge, so the hard back-edge is not a hard cycle.
func (r *resolver) throughSoftEdge(id ID) bool {
	for i := len(r.path) - 1; i >= 0 && r.path[i] != id; i-- {
		if r.soft[i] {
			return true
		}
	}
	return false
}

// cycle excludes every component on the path from the first occurrence of id.
func (r *resolver) cycle(id ID) {
	start := 0
	for i, p := range r.path {
		if p == id {
			start = i
			break
		}
	}
	members := append(append([]ID{}, r.path[start:]...), id)
	err := ErrCyclicDependency(members)
	r.res.Cycles = append(r.res.Cycles, err)
	errutil.LogError(r.logger, "cyclic hard dependency", err)

	for _, member := range members[:len(members)-1] {
		if _, ok := r.res.Excluded[member]; !ok {
			r.res.Excluded[member] = err
			if c, ok := r.byID[member]; ok {
				c.base().setState(StateExcluded)
			}
		}
	}
}

func (r *resolver) exclude(id ID, err error, msg string) {
	r.res.Excluded[id] = err
	if c, ok := r.byID[id]; ok {
		c.base().setState(StateExcluded)
	}
	errutil.LogWarn(r.logger, msg, err, "component", string(id))
}
