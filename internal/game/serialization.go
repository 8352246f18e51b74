package game

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
)

// ErrChecksumMismatch is returned when a decoded snapshot does not hash to
// its recorded checksum.
var ErrChecksumMismatch = errors.New("snapshot checksum mismatch")

// Snapshot is a versioned copy of a match state with an integrity checksum.
type Snapshot struct {
	MatchID   string            `json:"match_id"`
	Version   int64             `json:"version"`
	Checksum  uint64            `json:"checksum"`
	Timestamp time.Time         `json:"timestamp"`
	State     *model.MatchState `json:"state"`
}

// NewSnapshot wraps state. The caller hands over ownership of state.
func NewSnapshot(state *model.MatchState) Snapshot {
	return Snapshot{
		MatchID:   state.MatchID,
		Version:   state.Version,
		Checksum:  Checksum(state),
		Timestamp: time.Now().UTC(),
		State:     state,
	}
}

// Checksum hashes the gameplay-relevant fields of a state: turn, active
// role, every resource value in role and name order, and the discovered
// clue count. Two replicas that agree on these agree on the match.
func Checksum(state *model.MatchState) uint64 {
	h := xxhash.New()
	var buf [8]byte
	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		_, _ = h.Write(buf[:])
	}

	writeInt(state.Turn)
	_, _ = h.WriteString(string(state.ActiveRole))
	for _, role := range model.Roles {
		pool := state.Pool(role)
		if pool == nil {
			continue
		}
		_, _ = h.WriteString(string(role))
		for _, name := range pool.Names() {
			_, _ = h.WriteString(string(name))
			writeInt(pool.Get(name))
		}
	}
	writeInt(len(state.DiscoveredClues))
	return h.Sum64()
}

// Verify recomputes the checksum of the snapshot's state.
func (s Snapshot) Verify() error {
	if s.State == nil {
		return fmt.Errorf("snapshot %s v%d: no state", s.MatchID, s.Version)
	}
	if got := Checksum(s.State); got != s.Checksum {
		return fmt.Errorf("%w: match %s v%d: have %016x, computed %016x",
			ErrChecksumMismatch, s.MatchID, s.Version, s.Checksum, got)
	}
	return nil
}

// EncodeSnapshot serializes a snapshot with gob.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&s); err != nil {
		return nil, fmt.Errorf("encode snapshot %s v%d: %w", s.MatchID, s.Version, err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot reverses EncodeSnapshot and verifies the checksum.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, s.Verify()
}

// MarshalSnapshotJSON renders a snapshot for JSON transports and stores.
func MarshalSnapshotJSON(s Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSnapshotJSON parses a JSON snapshot and verifies the checksum.
func UnmarshalSnapshotJSON(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return s, s.Verify()
}
