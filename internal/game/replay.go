package game

import (
	"compress/gzip"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const replayFormatVersion = 1

// Replay is a recorded match: every committed snapshot in version order,
// with a cursor for stepping through them.
type Replay struct {
	MatchID      string
	Snapshots    []Snapshot
	CurrentIndex int
	mu           sync.RWMutex
}

// NewReplay creates an empty replay.
func NewReplay(matchID string) *Replay {
	return &Replay{MatchID: matchID}
}

// Record appends a snapshot. Snapshots at or below the last recorded version
// are ignored.
func (r *Replay) Record(snap Snapshot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.Snapshots); n > 0 && snap.Version <= r.Snapshots[n-1].Version {
		return false
	}
	r.Snapshots = append(r.Snapshots, snap)
	return true
}

// Start rewinds the cursor.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CurrentIndex = 0
}

// Next returns the snapshot under the cursor and advances it.
func (r *Replay) Next() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex >= len(r.Snapshots) {
		return Snapshot{}, false
	}
	snap := r.Snapshots[r.CurrentIndex]
	r.CurrentIndex++
	return snap, true
}

// Previous steps the cursor back and returns that snapshot.
func (r *Replay) Previous() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex == 0 {
		return Snapshot{}, false
	}
	r.CurrentIndex--
	return r.Snapshots[r.CurrentIndex], true
}

// Skip moves the cursor by count, clamped to the recorded range.
func (r *Replay) Skip(count int) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Snapshots) == 0 {
		return Snapshot{}, false
	}
	r.CurrentIndex = min(max(r.CurrentIndex+count, 0), len(r.Snapshots)-1)
	return r.Snapshots[r.CurrentIndex], true
}

// Size returns the number of recorded snapshots.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Snapshots)
}

// At returns the snapshot at index.
func (r *Replay) At(index int) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index < 0 || index >= len(r.Snapshots) {
		return Snapshot{}, false
	}
	return r.Snapshots[index], true
}

// SaveToFile writes the replay as gzipped gob to <directory>/<match id>.replay.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("create replay directory: %w", err)
	}
	file, err := os.Create(replayPath(directory, r.MatchID))
	if err != nil {
		return fmt.Errorf("create replay file: %w", err)
	}
	defer file.Close()

	zw := gzip.NewWriter(file)
	enc := gob.NewEncoder(zw)
	meta := replayMetadata{
		MatchID:       r.MatchID,
		Timestamp:     time.Now().UTC(),
		Version:       replayFormatVersion,
		SnapshotCount: len(r.Snapshots),
	}
	if err := enc.Encode(&meta); err != nil {
		return fmt.Errorf("encode replay metadata: %w", err)
	}
	for i := range r.Snapshots {
		if err := enc.Encode(&r.Snapshots[i]); err != nil {
			return fmt.Errorf("encode snapshot %d: %w", i, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush replay: %w", err)
	}
	return nil
}

// LoadReplayFromFile reads a replay written by SaveToFile. Every snapshot's
// checksum is verified.
func LoadReplayFromFile(directory, matchID string) (*Replay, error) {
	file, err := os.Open(replayPath(directory, matchID))
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer zr.Close()

	dec := gob.NewDecoder(zr)
	var meta replayMetadata
	if err := dec.Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode replay metadata: %w", err)
	}
	if meta.Version != replayFormatVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", meta.Version)
	}

	replay := NewReplay(meta.MatchID)
	replay.Snapshots = make([]Snapshot, 0, meta.SnapshotCount)
	for i := 0; i < meta.SnapshotCount; i++ {
		var snap Snapshot
		if err := dec.Decode(&snap); err != nil {
			return nil, fmt.Errorf("decode snapshot %d: %w", i, err)
		}
		if err := snap.Verify(); err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", i, err)
		}
		replay.Snapshots = append(replay.Snapshots, snap)
	}
	return replay, nil
}

func replayPath(directory, matchID string) string {
	return filepath.Join(directory, matchID+".replay")
}

type replayMetadata struct {
	MatchID       string
	Timestamp     time.Time
	Version       int
	SnapshotCount int
}

// ReplayRecorder is a SnapshotSink that keeps a replay per recorded match.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	replays map[string]*Replay
	enabled map[string]bool
	saveDir string
}

// NewReplayRecorder creates a recorder saving finished replays under saveDir.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayRecorder{
		logger:  logger,
		replays: make(map[string]*Replay),
		enabled: make(map[string]bool),
		saveDir: saveDir,
	}
}

// StartRecording begins recording a match.
func (rr *ReplayRecorder) StartRecording(matchID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if _, ok := rr.replays[matchID]; !ok {
		rr.replays[matchID] = NewReplay(matchID)
	}
	rr.enabled[matchID] = true
	rr.logger.Info("started replay recording", zap.String("match_id", matchID))
}

// StopRecording pauses recording. The recorded snapshots are kept.
func (rr *ReplayRecorder) StopRecording(matchID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rr.enabled[matchID] = false
	rr.logger.Info("stopped replay recording", zap.String("match_id", matchID))
}

// IsRecording reports whether a match is being recorded.
func (rr *ReplayRecorder) IsRecording(matchID string) bool {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return rr.enabled[matchID]
}

// SaveSnapshot records snap when its match is being recorded.
func (rr *ReplayRecorder) SaveSnapshot(_ context.Context, snap Snapshot) error {
	rr.mu.RLock()
	enabled := rr.enabled[snap.MatchID]
	replay := rr.replays[snap.MatchID]
	rr.mu.RUnlock()

	if !enabled || replay == nil {
		return nil
	}
	if replay.Record(snap) {
		rr.logger.Debug("recorded replay snapshot",
			zap.String("match_id", snap.MatchID),
			zap.Int64("version", snap.Version),
			zap.Int("snapshot_count", replay.Size()),
		)
	}
	return nil
}

// GetReplay returns the in-memory replay of a match.
func (rr *ReplayRecorder) GetReplay(matchID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	replay, ok := rr.replays[matchID]
	return replay, ok
}

// SaveReplay writes a replay to disk and drops it from memory.
func (rr *ReplayRecorder) SaveReplay(matchID string) error {
	rr.mu.Lock()
	replay, ok := rr.replays[matchID]
	if !ok {
		rr.mu.Unlock()
		return fmt.Errorf("no replay found for match %s", matchID)
	}
	delete(rr.replays, matchID)
	delete(rr.enabled, matchID)
	rr.mu.Unlock()

	if err := replay.SaveToFile(rr.saveDir); err != nil {
		return fmt.Errorf("save replay: %w", err)
	}
	rr.logger.Info("saved replay to disk",
		zap.String("match_id", matchID),
		zap.Int("snapshot_count", replay.Size()),
		zap.String("directory", rr.saveDir),
	)
	return nil
}

// LoadReplay reads a saved replay from disk.
func (rr *ReplayRecorder) LoadReplay(matchID string) (*Replay, error) {
	replay, err := LoadReplayFromFile(rr.saveDir, matchID)
	if err != nil {
		return nil, err
	}
	rr.logger.Info("loaded replay from disk",
		zap.String("match_id", matchID),
		zap.Int("snapshot_count", replay.Size()),
	)
	return replay, nil
}

// ClearReplay drops a replay without saving it.
func (rr *ReplayRecorder) ClearReplay(matchID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	delete(rr.replays, matchID)
	delete(rr.enabled, matchID)
	rr.logger.Debug("cleared replay from memory", zap.String("match_id", matchID))
}
