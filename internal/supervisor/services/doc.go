// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

/*
Package services provides suture.Service wrappers for agentfleet's background tasks.

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

and stops cooperatively when its context is canceled.

# Available Services

Registration (RegistrationService):
  - One per desired worker, added to the registration layer
  - Posts the worker's AgentCard immediately and then every interval
  - Failures are logged and counted, never returned

Fleet watcher (FleetWatchService):
  - Runs fleet.Watcher in the control layer
  - A failed watch returns an error so suture retries with backoff

Status server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Runs the status API in the control layer
*/
package services
