// Package archive writes finished matches to parquet files for offline
// analysis, one row per committed version.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/clinicsim/clinic-server-go/internal/game"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
	"go.uber.org/zap"
)

const schemaVersion = "match_turn_v1"

// TurnRow is one committed version of a match.
type TurnRow struct {
	MatchID    string `parquet:"match_id,dict"`
	ScenarioID string `parquet:"scenario_id,dict"`
	Difficulty string `parquet:"difficulty,dict"`
	Version    int64  `parquet:"version"`
	Turn       int32  `parquet:"turn"`
	ActiveRole string `parquet:"active_role,dict"`
	Phase      string `parquet:"phase,dict"`
	Status     string `parquet:"status,dict"`
	Checksum   int64  `parquet:"checksum"`
	UnixMillis int64  `parquet:"unix_millis"`

	Resources []ResourceValue `parquet:"resources"`

	CluesDiscovered int32   `parquet:"clues_discovered"`
	ClinicianScore  float32 `parquet:"clinician_score"`
	PatientScore    float32 `parquet:"patient_score"`

	LastActor  string `parquet:"last_actor,dict,optional"`
	LastAction string `parquet:"last_action,dict,optional"`
	LastCardID string `parquet:"last_card_id,dict,optional"`

	Winner       string `parquet:"winner,dict,optional"`
	ResultReason string `parquet:"result_reason,optional"`
}

// ResourceValue is one resource of one role.
type ResourceValue struct {
	Role  string `parquet:"role,dict"`
	Name  string `parquet:"name,dict"`
	Value int32  `parquet:"value"`
}

// NewTurnRow flattens a snapshot.
func NewTurnRow(snap game.Snapshot) TurnRow {
	s := snap.State
	row := TurnRow{
		MatchID:         snap.MatchID,
		ScenarioID:      s.ScenarioID,
		Difficulty:      string(s.Difficulty),
		Version:         snap.Version,
		Turn:            int32(s.Turn),
		ActiveRole:      string(s.ActiveRole),
		Phase:           string(s.Phase),
		Status:          string(s.Status),
		Checksum:        int64(snap.Checksum),
		UnixMillis:      snap.Timestamp.UnixMilli(),
		CluesDiscovered: int32(len(s.DiscoveredClues)),
		ClinicianScore:  float32(s.Progress.ClinicianScore),
		PatientScore:    float32(s.Progress.PatientScore),
	}
	for _, role := range model.Roles {
		pool := s.Pool(role)
		for _, name := range pool.Names() {
			row.Resources = append(row.Resources, ResourceValue{
				Role:  string(role),
				Name:  string(name),
				Value: int32(pool.Get(name)),
			})
		}
	}
	if n := len(s.Log); n > 0 {
		last := s.Log[n-1]
		row.LastActor = string(last.Actor)
		row.LastAction = string(last.Action)
		row.LastCardID = last.CardID
	}
	if s.Result != nil {
		row.Winner = string(s.Result.Winner)
		row.ResultReason = s.Result.Reason
	}
	return row
}

// Sink buffers rows per match and writes <dir>/<match_id>.parquet once the
// match finishes. It is a game.SnapshotSink.
type Sink struct {
	mu      sync.Mutex
	dir     string
	pending map[string][]TurnRow
	logger  *zap.Logger
}

// NewSink creates a sink writing into dir.
func NewSink(dir string, logger *zap.Logger) (*Sink, error) {
	if dir == "" {
		return nil, errors.New("archive dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{dir: dir, pending: make(map[string][]TurnRow), logger: logger}, nil
}

// SaveSnapshot implements game.SnapshotSink.
func (s *Sink) SaveSnapshot(_ context.Context, snap game.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[snap.MatchID] = append(s.pending[snap.MatchID], NewTurnRow(snap))
	if !snap.State.Finished() {
		return nil
	}
	return s.flushLocked(snap.MatchID)
}

// Flush writes whatever has been buffered for a match, finished or not.
func (s *Sink) Flush(matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(matchID)
}

// Close flushes every buffered match.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var errs []error
	for _, id := range ids {
		errs = append(errs, s.flushLocked(id))
	}
	return errors.Join(errs...)
}

// Path returns the file a match is archived to.
func (s *Sink) Path(matchID string) string {
	return filepath.Join(s.dir, matchID+".parquet")
}

func (s *Sink) flushLocked(matchID string) error {
	rows := s.pending[matchID]
	delete(s.pending, matchID)
	if len(rows) == 0 {
		return nil
	}
	path := s.Path(matchID)
	if err := WriteFile(path, rows); err != nil {
		s.logger.Error("archive write failed", zap.String("match_id", matchID), zap.Error(err))
		return err
	}
	s.logger.Info("match archived",
		zap.String("match_id", matchID),
		zap.String("path", path),
		zap.Int("rows", len(rows)),
	)
	return nil
}

// WriteFile writes rows to path atomically.
func WriteFile(path string, rows []TurnRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmpPath := path + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", schemaVersion),
	); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write parquet: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// ReadFile reads every row of an archive file.
func ReadFile(path string) ([]TurnRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, err
	}
	if schema, ok := pf.Lookup("schema"); ok && schema != schemaVersion {
		return nil, fmt.Errorf("archive %s: unsupported schema %q", path, schema)
	}

	reader := parquet.NewGenericReader[TurnRow](pf)
	defer reader.Close()

	rows := make([]TurnRow, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return rows[:n], nil
}
