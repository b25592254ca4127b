package config

import (
	"fmt"
	"strings"
)

// ValidateAccountName rejects names that are empty or could escape the
// accounts directory when used to build a file path.
func ValidateAccountName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidAccountName)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q contains '..'", ErrInvalidAccountName, name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidAccountName, name)
	}
	return nil
}
