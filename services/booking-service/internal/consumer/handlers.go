package consumer

import (
	"context"

	"github.com/segmentio/kafka-go"
)

type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// InvalidateConfig drops the cached availability configuration whenever another
// instance reports a config change.
func InvalidateConfig(inv Invalidator) Handler {
	return func(ctx context.Context, _ kafka.Message) error {
		return inv.Invalidate(ctx)
	}
}
