package geoclust

import (
	"errors"
	"fmt"

	"github.com/fergl/geoclust/blobstore"
	"github.com/fergl/geoclust/collector"
	"github.com/fergl/geoclust/fetch"
	"github.com/fergl/geoclust/kmeans"
)

var (
	// ErrNotFound is returned when a dataset is not found.
	ErrNotFound = errors.New("not found")

	// ErrTimeout is returned when a collection run exceeds the global timeout.
	ErrTimeout = errors.New("collection timed out")

	// ErrAccessDenied is returned when the upstream source rejects the
	// configured credentials.
	ErrAccessDenied = errors.New("access denied")

	// ErrInsufficientData is returned when clustering is requested with fewer
	// points than clusters.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
)

// translateError normalizes subpackage errors to the root sentinels. The
// original error remains reachable via errors.Is / errors.Unwrap.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, collector.ErrTimeout):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, fetch.ErrAccessDenied):
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	case errors.Is(err, kmeans.ErrInsufficientData):
		return fmt.Errorf("%w: %w", ErrInsufficientData, err)
	case errors.Is(err, kmeans.ErrInvalidK):
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	case errors.Is(err, blobstore.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}
