// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Credential check modes for SupervisorConfig.Credentials.
const (
	CredentialsOpenAI = "openai"
	CredentialsNone   = "none"
)

// Providers reported by CheckCredentials.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
	ProviderNone   = "none"
)

// ErrMissingCredentials is returned when workers would start without the
// LLM credentials they need.
var ErrMissingCredentials = errors.New("missing worker credentials")

var azureVars = []string{
	"AZURE_OPENAI_API_KEY",
	"AZURE_OPENAI_ENDPOINT",
	"AZURE_OPENAI_API_VERSION",
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// CheckCredentials verifies that the environment carries credentials workers
// can use: OPENAI_API_KEY, or the complete set of Azure OpenAI variables.
// It returns the provider that will be used. A nil lookup uses os.LookupEnv.
func CheckCredentials(mode string, lookup LookupFunc) (string, error) {
	if mode == CredentialsNone {
		return ProviderNone, nil
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := lookup("OPENAI_API_KEY"); ok && strings.TrimSpace(v) != "" {
		return ProviderOpenAI, nil
	}

	var missing []string
	for _, name := range azureVars {
		if v, ok := lookup(name); !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return ProviderAzure, nil
	}

	return "", fmt.Errorf("%w: set OPENAI_API_KEY or all of %s (missing %s)",
		ErrMissingCredentials, strings.Join(azureVars, ", "), strings.Join(missing, ", "))
}
