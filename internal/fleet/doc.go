// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

// Package fleet models the desired fleet: the WorkerSpec entries of the fleet
// document, loading and validating that document, and watching it for edits.
//
// The document is YAML or JSON with a single top-level list:
//
//	{
//	  "agents": [
//	    {"name": "summarizer", "file": "summarizer.py", "port": 5001,
//	     "description": "Summarizes text", "version": "1.0.0", "tags": ["text"]}
//	  ]
//	}
//
// Names and ports must be unique across the document. The supervisor never
// writes this file.
package fleet
