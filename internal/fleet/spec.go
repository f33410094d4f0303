// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package fleet

import (
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/tomtom215/agentfleet/internal/validation"
)

// WorkerSpec describes one desired worker. Name is the identity; every other
// field participates in Equal, so any edit to an entry causes a restart.
type WorkerSpec struct {
	Name string `koanf:"name" json:"name" validate:"required,max=128,workername"`

	// File is the executable or script to run. Relative paths are resolved
	// against the fleet work directory.
	File string `koanf:"file" json:"file" validate:"required"`

	// Executable is accepted as an alias for File and folded into it by Normalize.
	Executable string `koanf:"executable" json:"-"`

	Port        int      `koanf:"port" json:"port" validate:"min=1,max=65535"`
	Description string   `koanf:"description" json:"description"`
	Version     string   `koanf:"version" json:"version,omitempty"`
	Tags        []string `koanf:"tags" json:"tags,omitempty" validate:"dive,required"`

	Args []string          `koanf:"args" json:"args,omitempty"`
	Env  map[string]string `koanf:"env" json:"env,omitempty"`

	// Socket is a stale listening artifact (e.g. a unix socket path) removed before launch.
	Socket string `koanf:"socket" json:"socket,omitempty"`

	// WorkDir overrides the fleet work directory for this worker.
	WorkDir string `koanf:"workdir" json:"workdir,omitempty"`
}

// Normalize folds the executable alias into File.
func (s *WorkerSpec) Normalize() {
	if s.File == "" {
		s.File = s.Executable
	}
	s.Executable = ""
}

// Equal reports whether two specs describe the same worker configuration.
// Tag order is not significant.
func (s WorkerSpec) Equal(o WorkerSpec) bool {
	if s.Name != o.Name ||
		s.File != o.File ||
		s.Port != o.Port ||
		s.Description != o.Description ||
		s.Version != o.Version ||
		s.Socket != o.Socket ||
		s.WorkDir != o.WorkDir {
		return false
	}
	if !sameSet(s.Tags, o.Tags) {
		return false
	}
	if !slices.Equal(s.Args, o.Args) {
		return false
	}
	return maps.Equal(s.Env, o.Env)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := slices.Clone(a)
	bs := slices.Clone(b)
	sort.Strings(as)
	sort.Strings(bs)
	return slices.Equal(as, bs)
}

// Document is the on-disk fleet description.
type Document struct {
	Agents []WorkerSpec `koanf:"agents" json:"agents" validate:"dive"`
}

// Validate checks every entry and the fleet-wide uniqueness of names and ports.
func (d *Document) Validate() error {
	if err := validation.ValidateStruct(d); err != nil {
		return err
	}

	names := make(map[string]int, len(d.Agents))
	ports := make(map[int]string, len(d.Agents))
	for i, a := range d.Agents {
		if j, dup := names[a.Name]; dup {
			return fmt.Errorf("agents[%d]: duplicate name %q (also agents[%d])", i, a.Name, j)
		}
		names[a.Name] = i
		if other, dup := ports[a.Port]; dup {
			return fmt.Errorf("agents[%d]: port %d already used by %q", i, a.Port, other)
		}
		ports[a.Port] = a.Name
	}
	return nil
}

// Names returns the sorted worker names of specs.
func Names(specs []WorkerSpec) []string {
	out := make([]string, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.Name)
	}
	sort.Strings(out)
	return out
}
