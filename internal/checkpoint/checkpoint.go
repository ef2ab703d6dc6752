// Package checkpoint persists crawl state so a crawl can be paused and
// resumed. A checkpoint is an internally consistent snapshot: the pending
// list and the fingerprint seen-set are captured under one lock, so no
// request is lost or duplicated across an interruption.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spindlehq/spindle/internal/spider"
	"github.com/spindlehq/spindle/internal/stats"
)

// FormatVersion is the current checkpoint blob version. Loading any other
// version fails with ErrVersion; it is never silently reset.
const FormatVersion = 1

var (
	// ErrNotFound is returned by Load when no state exists for the crawl id.
	ErrNotFound = errors.New("checkpoint: not found")
	// ErrVersion is returned by Load for an unrecognized format version.
	ErrVersion = errors.New("checkpoint: unsupported format version")
)

// Checkpoint is the serialized crawl state keyed by crawl id.
type Checkpoint struct {
	Version   int               `json:"version"`
	CrawlID   string            `json:"crawl_id"`
	Spider    string            `json:"spider,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Pending   []*spider.Request `json:"pending"`
	Seen      []string          `json:"seen"`
	Stats     stats.Snapshot    `json:"stats"`
}

// New builds a version-stamped Checkpoint. seen is the full fingerprint
// seen-set, pending entries included; restoring it first and re-queueing
// pending through the dedup bypass keeps both sides consistent.
func New(crawlID, spiderName string, pending []*spider.Request, seen []string, snap stats.Snapshot, now time.Time) *Checkpoint {
	return &Checkpoint{
		Version:   FormatVersion,
		CrawlID:   crawlID,
		Spider:    spiderName,
		CreatedAt: now,
		Pending:   pending,
		Seen:      seen,
		Stats:     snap,
	}
}

// Validate checks the format version after decoding.
func (c *Checkpoint) Validate() error {
	if c.Version != FormatVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrVersion, c.Version, FormatVersion)
	}
	if c.CrawlID == "" {
		return errors.New("checkpoint: empty crawl id")
	}
	return nil
}

// Store is the durable backing for checkpoints. Save replaces any previous
// state for the same crawl id.
type Store interface {
	Save(ctx context.Context, cp *Checkpoint) error
	Load(ctx context.Context, crawlID string) (*Checkpoint, error)
	Clear(ctx context.Context, crawlID string) error
}
