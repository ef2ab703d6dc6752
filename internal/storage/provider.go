// Package storage defines the interfaces for a blob storage provider used
// to persist item exports. The abstraction keeps the engine independent of
// a specific backend (Google Cloud Storage, the local filesystem, memory).
package storage

import "context"

// Provider is the common interface for a blob storage provider.
type Provider interface {
	// Save uploads data to the specified object path/key in the blob store.
	Save(ctx context.Context, objectName string, data []byte) error
}

// NoOpProvider discards everything. It is useful for dry runs where items
// are collected but never exported.
type NoOpProvider struct{}

// Save for NoOpProvider does nothing and always returns nil.
func (n *NoOpProvider) Save(_ context.Context, _ string, _ []byte) error {
	return nil
}
