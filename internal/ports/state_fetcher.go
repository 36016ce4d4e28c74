package ports

import (
	"context"

	"github.com/wateringctl/wateringctl/internal/domain"
)

// StateFetcher reloads the irrigation state from the device. The mirror uses
// it whenever a push event names an entity it does not know.
type StateFetcher interface {
	FetchValves(ctx context.Context) ([]domain.Valve, error)
	FetchDay(ctx context.Context, day domain.Weekday) (domain.Day, error)
}
