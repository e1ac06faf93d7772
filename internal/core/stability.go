package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrStabilityTimeout is returned when a file keeps changing past the deadline.
var ErrStabilityTimeout = errors.New("file did not stabilise")

// statSize is swapped out in tests.
var statSize = func(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// WaitUntilStable polls the size of path every interval and returns once two
// consecutive reads agree. A missing file counts as not yet stable.
func WaitUntilStable(ctx context.Context, path string, interval, timeout time.Duration, logger Logger) error {
	deadline := time.Now().Add(timeout)
	lastSize := int64(-1)

	for time.Now().Before(deadline) {
		size, err := statSize(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			debugLog(logger, "Stability check for %s: file not present yet", filepath.Base(path))
		case err != nil:
			return fmt.Errorf("stability check %s: %w", filepath.Base(path), err)
		case size == lastSize:
			debugLog(logger, "Stability check PASSED for %s (%d bytes)", filepath.Base(path), size)
			return nil
		default:
			debugLog(logger, "Stability check for %s: size %d -> %d", filepath.Base(path), lastSize, size)
			lastSize = size
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("%w: %s within %s", ErrStabilityTimeout, path, timeout)
}
