package model

import (
	"math/rand/v2"

	"github.com/google/uuid"
)

// IDSource mints identifiers for instances, log entries and effects.
type IDSource interface {
	NewID() string
}

// SeededIDs draws version 4 UUIDs from a seeded generator, so a match
// replayed from the same seed and actions reproduces every identifier.
type SeededIDs struct {
	rng *rand.Rand
}

// NewSeededIDs wraps rng. The generator is shared with the caller and is
// not safe for concurrent use.
func NewSeededIDs(rng *rand.Rand) *SeededIDs {
	return &SeededIDs{rng: rng}
}

// Read fills p from the generator.
func (s *SeededIDs) Read(p []byte) (int, error) {
	for i := 0; i < len(p); {
		v := s.rng.Uint64()
		for b := 0; b < 8 && i < len(p); b++ {
			p[i] = byte(v >> (8 * b))
			i++
		}
	}
	return len(p), nil
}

// NewID returns the next identifier.
func (s *SeededIDs) NewID() string {
	id, err := uuid.NewRandomFromReader(s)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// SetIDSource installs the identifier source used by NewID. Clones share it.
func (s *MatchState) SetIDSource(src IDSource) {
	s.ids = src
}

// NewID mints an identifier from the state's source, falling back to a
// random UUID when none is installed (decoded snapshots, hand-built fixtures).
func (s *MatchState) NewID() string {
	if s.ids == nil {
		return uuid.NewString()
	}
	return s.ids.NewID()
}

// NewCard wraps def with an instance id from the state's source.
func (s *MatchState) NewCard(def CardDefinition) CardInstance {
	return CardInstance{InstanceID: s.NewID(), Definition: def}
}
