package connectors

import (
	"context"
	"sync"

	"posbot/src/model"
)

// MockSupplier reports one BTCUSDT LONG position whose PNL walks -0.8, -0.6, ... 1.8, -1.0 and repeats,
// so it crosses a small threshold band in both directions.
type MockSupplier struct {
	mu   sync.Mutex
	tick int
}

func NewMockSupplier() *MockSupplier {
	return &MockSupplier{}
}

func (m *MockSupplier) FetchPositions(ctx context.Context) ([]model.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.tick++
	n := m.tick
	m.mu.Unlock()

	pnl := -1.0 + 0.2*float64(n%15)
	return []model.Position{{Symbol: "BTCUSDT", Side: model.PositionSideLong, UnrealizedPnl: pnl}}, nil
}
