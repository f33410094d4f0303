// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package process

import (
	"bytes"
	"sync"

	"github.com/rs/zerolog"
)

// maxLineBytes caps a single buffered line; longer lines are split.
const maxLineBytes = 4096

// OutputBuffer is an io.Writer that keeps the last N complete lines written
// to it and mirrors each line to a logger at debug level.
type OutputBuffer struct {
	mu      sync.Mutex
	lines   []string
	next    int
	full    bool
	partial []byte
	log     zerolog.Logger
}

// NewOutputBuffer creates a buffer holding up to capacity lines.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewOutputBuffer(capacity int, log zerolog.Logger) *OutputBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &OutputBuffer{
		lines: make([]string, capacity),
		log:   log,
	}
}

// Write splits p into lines. It never fails.
func (b *OutputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			b.partial = append(b.partial, p...)
			for len(b.partial) >= maxLineBytes {
				b.push(b.partial[:maxLineBytes])
				b.partial = append(b.partial[:0], b.partial[maxLineBytes:]...)
			}
			break
		}
		b.partial = append(b.partial, p[:i]...)
		b.push(b.partial)
		b.partial = b.partial[:0]
		p = p[i+1:]
	}
	return n, nil
}

func (b *OutputBuffer) push(line []byte) {
	s := string(bytes.TrimRight(line, "\r"))
	b.lines[b.next] = s
	b.next = (b.next + 1) % len(b.lines)
	if b.next == 0 {
		b.full = true
	}
	b.log.Debug().Str("line", s).Msg("worker output")
}

// Flush emits any buffered partial line. Called once the process has exited.
func (b *OutputBuffer) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.partial) > 0 {
		b.push(b.partial)
		b.partial = b.partial[:0]
	}
}

// Lines returns the retained lines, oldest first.
func (b *OutputBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		return append([]string(nil), b.lines[:b.next]...)
	}
	out := make([]string, 0, len(b.lines))
	out = append(out, b.lines[b.next:]...)
	return append(out, b.lines[:b.next]...)
}
