// Package publisher defines the interface for streaming kept items to an
// external message bus.
package publisher

import "context"

// Publisher pushes one payload per kept item to a topic.
type Publisher interface {
	// Publish sends the payload and returns a backend message id.
	Publish(ctx context.Context, topic string, payload any) (string, error)

	// Close cleans up client connections and resources.
	Close() error
}
