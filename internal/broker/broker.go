// Package broker provides broker adapter interfaces and implementations.
package broker

import (
	"context"
	"strings"

	"github.com/jcgs2503/vestbridge/internal/errors"
	"github.com/jcgs2503/vestbridge/internal/models"
)

// Broker defines the operations the gateway forwards to an execution venue.
// Implementations must be safe for concurrent use: the dispatcher serializes
// per agent, not per broker.
type Broker interface {
	// Market Data
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)

	// Orders
	PlaceOrder(ctx context.Context, order models.OrderRequest) (*models.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) (*models.CancelResult, error)

	// Positions & Account
	GetPositions(ctx context.Context) ([]models.Position, error)
	GetAccount(ctx context.Context) (*models.Account, error)

	// Name identifies the adapter in logs and audit entries.
	Name() string
}

// Factory constructs a broker adapter from its data directory.
type Factory func(dataDir string) (Broker, error)

var registry = map[string]Factory{
	"paper": func(dataDir string) (Broker, error) {
		return NewPaperBroker(PaperConfig{DataDir: dataDir})
	},
}

// Register adds a broker factory under a name. Later registrations
// overwrite earlier ones.
func Register(name string, factory Factory) {
	registry[strings.ToLower(name)] = factory
}

// New creates the named broker adapter.
func New(name, dataDir string) (Broker, error) {
	factory, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, errors.Wrapf(errors.ErrBrokerNotFound, "broker %q", name)
	}
	return factory(dataDir)
}

// Names returns the registered broker names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
