package game

import (
	"fmt"
	"sort"
	"sync"

	"github.com/clinicsim/clinic-server-go/internal/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager owns the running matches of a process.
type Manager struct {
	mu      sync.RWMutex
	matches map[string]*Match

	cfg     config.GameConfig
	content Content
	sink    SnapshotSink
	logger  *zap.Logger
}

// NewManager creates a manager whose matches share cfg, content and sink.
func NewManager(cfg config.GameConfig, content Content, sink SnapshotSink, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		matches: make(map[string]*Match),
		cfg:     cfg,
		content: content,
		sink:    sink,
		logger:  logger,
	}
}

// AddSink attaches another snapshot sink to matches created from now on.
func (m *Manager) AddSink(sink SnapshotSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch current := m.sink.(type) {
	case nil:
		m.sink = sink
	case MultiSink:
		m.sink = append(append(MultiSink(nil), current...), sink)
	default:
		m.sink = MultiSink{current, sink}
	}
}

// Create starts a match. Options left empty take the manager's sink and
// logger, and a fresh id.
func (m *Manager) Create(opts Options) (*Match, error) {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = m.logger
	}

	m.mu.Lock()
	if opts.Sink == nil {
		opts.Sink = m.sink
	}
	if _, exists := m.matches[opts.ID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("match %s already exists", opts.ID)
	}
	// reserve the id while the match is built outside the lock
	m.matches[opts.ID] = nil
	m.mu.Unlock()

	match, err := NewMatch(m.cfg, m.content, opts)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		delete(m.matches, opts.ID)
		return nil, err
	}
	m.matches[opts.ID] = match
	m.logger.Debug("match registered", zap.String("match_id", opts.ID), zap.Int("active_matches", len(m.matches)))
	return match, nil
}

// Get returns a running match.
func (m *Manager) Get(id string) (*Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	match, ok := m.matches[id]
	if !ok || match == nil {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, id)
	}
	return match, nil
}

// Remove closes and forgets a match.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	match, ok := m.matches[id]
	if !ok || match == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMatchNotFound, id)
	}
	delete(m.matches, id)
	m.mu.Unlock()

	match.Close()
	m.logger.Debug("match removed", zap.String("match_id", id))
	return nil
}

// List returns the ids of running matches in sorted order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.matches))
	for id, match := range m.matches {
		if match != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Close stops every match's scheduled opponent turn.
func (m *Manager) Close() {
	m.mu.Lock()
	matches := make([]*Match, 0, len(m.matches))
	for _, match := range m.matches {
		if match != nil {
			matches = append(matches, match)
		}
	}
	m.matches = make(map[string]*Match)
	m.mu.Unlock()

	for _, match := range matches {
		match.Close()
	}
}
