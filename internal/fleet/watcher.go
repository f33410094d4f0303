// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package fleet

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/providers/file"

	"github.com/tomtom215/agentfleet/internal/logging"
	"github.com/tomtom215/agentfleet/internal/metrics"
)

// ChangeFunc receives a freshly loaded desired set.
type ChangeFunc func(ctx context.Context, specs []WorkerSpec)

// Watcher observes the fleet document and reports each successfully reloaded
// desired set. Reloads are debounced on the trailing edge: a reload happens
// once the file has been quiet for the debounce window. A document that fails
// to load is logged and skipped, so the previous desired set stays in effect.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange ChangeFunc
}

// NewWatcher creates a watcher for path.
func NewWatcher(path string, debounce time.Duration, onChange ChangeFunc) *Watcher {
	return &Watcher{
		path:     path,
		debounce: debounce,
		onChange: onChange,
	}
}

// Run watches until ctx is cancelled. It returns an error when the underlying
// file watch fails or stops (for example because the file was removed), so a
// supervising tree can restart it once the file is back.
func (w *Watcher) Run(ctx context.Context) error {
	// The file provider watches the parent directory, which must be non-empty.
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", w.path, err)
	}

	events := make(chan struct{}, 1)
	watchErrs := make(chan error, 1)

	provider := file.Provider(abs)
	err = provider.Watch(func(_ interface{}, err error) {
		if err != nil {
			select {
			case watchErrs <- err:
			default:
			}
			return
		}
		select {
		case events <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", abs, err)
	}
	defer func() {
		if uerr := provider.Unwatch(); uerr != nil {
			logging.Warn().Err(uerr).Str("path", abs).Msg("Failed to stop fleet document watch")
		}
	}()

	logging.Info().Str("path", abs).Dur("debounce", w.debounce).Msg("Watching fleet document")

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-watchErrs:
			return fmt.Errorf("watch %s: %w", abs, err)

		case <-events:
			timer.Reset(w.debounce)

		case <-timer.C:
			w.reload(ctx, abs)
		}
	}
}

func (w *Watcher) reload(ctx context.Context, path string) {
	specs, err := Load(path)
	if err != nil {
		metrics.RecordConfigReload(false)
		logging.Err(err).
			Bool("config_read_error", errors.Is(err, ErrConfigRead)).
			Str("path", path).
			Msg("Fleet document reload failed; keeping previous desired set")
		return
	}

	metrics.RecordConfigReload(true)
	logging.Info().Str("path", path).Int("workers", len(specs)).Msg("Fleet document reloaded")
	w.onChange(ctx, specs)
}
