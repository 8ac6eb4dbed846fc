package interfaces

import (
	"context"
	"sync"
)

// -----------------------------------------------------------------------------
// IPublisher fans snapshots out to a message broker.
// -----------------------------------------------------------------------------

type IPublisher interface {
	IPriceListener

	Start(ctx context.Context, wg *sync.WaitGroup) error
	Connect() error
	Disconnect() error
	IsConnected() bool
	Publish(subject string, data []byte) error
}
