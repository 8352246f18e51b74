package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinicsim/clinic-server-go/internal/game"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// SnapshotRepository stores every committed match version. It is a
// game.SnapshotSink.
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a snapshot repository.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// SaveSnapshot inserts snap. Re-saving a version is a no-op.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, snap game.Snapshot) error {
	data, err := game.MarshalSnapshotJSON(snap)
	if err != nil {
		return err
	}
	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO match_snapshots (match_id, version, checksum, turn, status, created_at, snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (match_id, version) DO NOTHING`,
		snap.MatchID, snap.Version, int64(snap.Checksum), snap.State.Turn,
		string(snap.State.Status), snap.Timestamp, data,
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s@%d: %w", snap.MatchID, snap.Version, err)
	}
	r.db.logger.Debug("snapshot stored",
		zap.String("match_id", snap.MatchID),
		zap.Int64("version", snap.Version),
	)
	return nil
}

// Latest returns the highest stored version of a match.
func (r *SnapshotRepository) Latest(ctx context.Context, matchID string) (game.Snapshot, error) {
	var data []byte
	err := r.db.pool.QueryRow(ctx, `
		SELECT snapshot FROM match_snapshots
		WHERE match_id = $1
		ORDER BY version DESC
		LIMIT 1`, matchID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Snapshot{}, fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	}
	if err != nil {
		return game.Snapshot{}, fmt.Errorf("load snapshot %s: %w", matchID, err)
	}
	return game.UnmarshalSnapshotJSON(data)
}

// History returns every stored version of a match in order, ready to be
// loaded into a replay.
func (r *SnapshotRepository) History(ctx context.Context, matchID string) (*game.Replay, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT snapshot FROM match_snapshots
		WHERE match_id = $1
		ORDER BY version`, matchID)
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", matchID, err)
	}
	defer rows.Close()

	replay := game.NewReplay(matchID)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		snap, err := game.UnmarshalSnapshotJSON(data)
		if err != nil {
			return nil, err
		}
		replay.Record(snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if replay.Size() == 0 {
		return nil, fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	}
	return replay, nil
}

// Delete removes every version of a match.
func (r *SnapshotRepository) Delete(ctx context.Context, matchID string) error {
	_, err := r.db.pool.Exec(ctx, `DELETE FROM match_snapshots WHERE match_id = $1`, matchID)
	return err
}
