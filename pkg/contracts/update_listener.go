package contracts

import (
	"context"

	"github.com/XavierBriggs/Pythia/pkg/models"
)

// UpdateListener is notified after every successful upstream fetch.
// Listener errors are logged by the scheduler and never fail the update.
type UpdateListener interface {
	Name() string
	OnOddsUpdated(ctx context.Context, snapshot models.Snapshot) error
}
