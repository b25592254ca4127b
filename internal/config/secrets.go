package config

import (
	"os"
	"strings"
)

// ResolveSecret reads the secret held in the environment variable envName.
// field names the config key for error messages.
func ResolveSecret(field, envName string) (string, error) {
	envName = strings.TrimSpace(envName)
	if envName == "" {
		return "", &MissingSecretError{Field: field}
	}
	value, ok := os.LookupEnv(envName)
	if !ok || value == "" {
		return "", &MissingSecretError{Field: field, Var: envName}
	}
	return value, nil
}
