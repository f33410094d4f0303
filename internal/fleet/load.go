// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package fleet

import (
	"errors"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrConfigRead is returned when the fleet document cannot be read, parsed or validated.
var ErrConfigRead = errors.New("fleet document unreadable")

// Load reads and validates the fleet document at path. JSON documents are
// accepted because JSON is a subset of YAML.
func Load(path string) ([]WorkerSpec, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigRead, path, err)
	}
	return decode(k, path)
}

// Parse reads a fleet document from raw bytes.
func Parse(data []byte) ([]WorkerSpec, error) {
	k := koanf.New(".")
	if err := k.Load(rawBytes(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigRead, err)
	}
	return decode(k, "<bytes>")
}

func decode(k *koanf.Koanf, source string) ([]WorkerSpec, error) {
	if !k.Exists("agents") {
		return nil, fmt.Errorf("%w: %s: missing top-level \"agents\" list", ErrConfigRead, source)
	}

	var doc Document
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigRead, source, err)
	}
	for i := range doc.Agents {
		doc.Agents[i].Normalize()
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigRead, source, err)
	}
	if doc.Agents == nil {
		doc.Agents = []WorkerSpec{}
	}
	return doc.Agents, nil
}

// rawBytes is a koanf.Provider over an in-memory document.
type rawBytes []byte

func (r rawBytes) ReadBytes() ([]byte, error) { return r, nil }

func (r rawBytes) Read() (map[string]interface{}, error) {
	return nil, errors.New("raw bytes provider does not support Read")
}
