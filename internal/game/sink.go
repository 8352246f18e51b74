package game

import (
	"context"
	"errors"
)

// SnapshotSink receives every committed version of a match. Sinks are called
// under the match lock and should not block for long.
type SnapshotSink interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
}

// SinkFunc adapts a function to SnapshotSink.
type SinkFunc func(ctx context.Context, snap Snapshot) error

// SaveSnapshot calls f.
func (f SinkFunc) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	return f(ctx, snap)
}

// MultiSink fans a snapshot out to several sinks. Every sink is called; the
// errors are joined.
type MultiSink []SnapshotSink

// SaveSnapshot implements SnapshotSink.
func (m MultiSink) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.SaveSnapshot(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
