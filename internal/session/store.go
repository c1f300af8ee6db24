// Package session stores processing runs between the upload that creates
// them and the refinement/export calls that read and mutate them.
package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/deckvoice/deckvoice/internal/domain"
)

// Store is the run-session contract. Implementations must serialize Mutate
// calls targeting the same run: a mutation sees the latest committed state
// and either commits its full result or leaves the run unchanged. Get always
// returns an independent copy the caller may modify freely.
type Store interface {
	// Create stores a new run. The run's ID must be set by the caller.
	Create(ctx context.Context, run *domain.ProcessingRun) error

	// Get returns a deep copy of the run, or a RunNotFound error.
	Get(ctx context.Context, id uuid.UUID) (*domain.ProcessingRun, error)

	// Mutate applies fn to the current run state under the run's lock and
	// commits the result. If fn returns an error nothing is written and the
	// error is returned. The committed state is returned on success.
	Mutate(ctx context.Context, id uuid.UUID, fn func(*domain.ProcessingRun) error) (*domain.ProcessingRun, error)

	// Delete removes the run. Deleting an absent run is not an error.
	Delete(ctx context.Context, id uuid.UUID) error

	Close() error
}
