package items

import (
	"context"
	"fmt"

	"github.com/spindlehq/spindle/internal/publisher"
)

// StreamTo subscribes to the sink and publishes every kept item to topic
// until the sink closes or ctx ends. It blocks, so callers typically run it
// in its own goroutine alongside the crawl. The first publish failure stops
// the stream and is returned.
func StreamTo(ctx context.Context, sink *Sink, pub publisher.Publisher, topic string, buffer int) error {
	ch := sink.Subscribe(buffer)
	defer sink.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("items: stream canceled: %w", ctx.Err())
		case item, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := pub.Publish(ctx, topic, item); err != nil {
				return fmt.Errorf("items: publish item: %w", err)
			}
		}
	}
}
