//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"fmt"
	"os"
)

// CheckPresent returns nil when path exists, an error wrapping
// ErrAbsentResource when it does not, and the stat error otherwise.
func CheckPresent(path string) error {
	_, err := os.Stat(path)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrAbsentResource, path)
	default:
		return fmt.Errorf("stat %s: %w", path, err)
	}
}
