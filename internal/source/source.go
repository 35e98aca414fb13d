// Package source defines the collaborator interface that supplies position
// snapshots and price history. The core performs no fetching, auth, or
// caching itself; staleness and backoff are the collaborator's concern.
package source

import (
	"context"

	"github.com/aistm7/riskstream/pkg/models"
)

// PositionDataSource supplies current positions and historical prices for an
// account.
type PositionDataSource interface {
	// GetPositions returns the current position snapshot for the account.
	GetPositions(ctx context.Context, accountID string) ([]models.Position, error)

	// GetHistoricalData returns per-symbol closing price series for the
	// account's holdings. period is a broker-style duration ("1 Y", "6 M");
	// barSize the bar granularity ("1 day").
	GetHistoricalData(ctx context.Context, accountID, period, barSize string) (models.PriceSeries, error)
}
