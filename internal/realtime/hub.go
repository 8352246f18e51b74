package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/clinicsim/clinic-server-go/internal/config"
	"github.com/clinicsim/clinic-server-go/internal/game"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/rules"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message types.
const (
	MsgJoin      = "join"
	MsgAction    = "action"
	MsgState     = "state"
	MsgRejection = "rejection"
	MsgConflict  = "conflict"
	MsgError     = "error"
)

// WSMessage is the envelope of every websocket frame.
type WSMessage struct {
	Type    string          `json:"type"`
	MatchID string          `json:"match_id,omitempty"`
	Role    model.Role      `json:"role,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RejectionPayload describes a refused action.
type RejectionPayload struct {
	Code        rules.Code `json:"code"`
	Reason      string     `json:"reason"`
	Suggestions []string   `json:"suggestions,omitempty"`
}

// ConflictPayload reports two near-simultaneous actions and which one the
// priority policy puts first.
type ConflictPayload struct {
	First  Action `json:"first"`
	Second Action `json:"second"`
}

// Matches looks up running matches.
type Matches interface {
	Get(id string) (*game.Match, error)
}

// Client is one websocket connection. Role is empty for spectators.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	matchID string
	role    model.Role
	mu      sync.RWMutex
}

func (c *Client) subscription() (string, model.Role) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.matchID, c.role
}

// Hub tracks connected observers and fans out match snapshots to them. It
// implements game.SnapshotSink.
type Hub struct {
	matches  Matches
	cfg      config.WebSocketConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader
	window   time.Duration

	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	actionsMu   sync.Mutex
	lastActions map[string]Action
}

// NewHub creates a hub. Call Run before serving connections.
func NewHub(matches Matches, cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		matches: matches,
		cfg:     cfg,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		window:      ConflictWindow,
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
		lastActions: make(map[string]Action),
	}
}

// Run processes registrations until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client] {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered")

		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// ServeHTTP upgrades the request and starts the client's pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{conn: conn, send: make(chan []byte, 256)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(client)
	go h.readPump(client)
}

// SaveSnapshot sends a reduced broadcast to every client watching the match.
// Slow clients are dropped rather than blocking the match.
func (h *Hub) SaveSnapshot(_ context.Context, snap game.Snapshot) error {
	if snap.State == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		matchID, role := client.subscription()
		if matchID != snap.MatchID {
			continue
		}
		msg, err := encode(MsgState, snap.MatchID, role, BuildBroadcast(snap.State, role))
		if err != nil {
			return err
		}
		select {
		case client.send <- msg:
		default:
			delete(h.clients, client)
			close(client.send)
			h.logger.Warn("dropped slow websocket client", zap.String("match_id", matchID))
		}
	}
	return nil
}

func (h *Hub) handleMessage(ctx context.Context, client *Client, msg WSMessage) {
	switch msg.Type {
	case MsgJoin:
		h.join(client, msg)
	case MsgAction:
		var action Action
		if err := json.Unmarshal(msg.Data, &action); err != nil {
			h.reply(client, MsgError, map[string]string{"error": "malformed action"})
			return
		}
		matchID, role := client.subscription()
		action.MatchID = matchID
		action.Role = role
		if action.Timestamp.IsZero() {
			action.Timestamp = time.Now().UTC()
		}
		h.act(ctx, client, action)
	default:
		h.reply(client, MsgError, map[string]string{"error": fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

func (h *Hub) join(client *Client, msg WSMessage) {
	if msg.Role != "" && !msg.Role.Valid() {
		h.reply(client, MsgError, map[string]string{"error": fmt.Sprintf("unknown role %q", msg.Role)})
		return
	}
	match, err := h.matches.Get(msg.MatchID)
	if err != nil {
		h.reply(client, MsgError, map[string]string{"error": err.Error()})
		return
	}
	client.mu.Lock()
	client.matchID = msg.MatchID
	client.role = msg.Role
	client.mu.Unlock()

	h.logger.Debug("client joined match", zap.String("match_id", msg.MatchID), zap.String("role", string(msg.Role)))
	h.reply(client, MsgState, BuildBroadcast(match.State(), msg.Role))
}

func (h *Hub) act(ctx context.Context, client *Client, action Action) {
	if action.MatchID == "" || action.Role == "" {
		h.reply(client, MsgError, map[string]string{"error": "join a match with a role before acting"})
		return
	}
	match, err := h.matches.Get(action.MatchID)
	if err != nil {
		h.reply(client, MsgError, map[string]string{"error": err.Error()})
		return
	}
	h.noteConflict(action)

	switch action.Kind {
	case ActionPlayCard:
		_, err = match.PlayCard(ctx, action.Role, action.InstanceID, action.TargetID)
	case ActionEndTurn:
		_, err = match.EndTurn(ctx, action.Role)
	case ActionCounter:
		_, err = match.Counter(ctx, action.Role, action.OpportunityID)
	default:
		err = fmt.Errorf("unknown action kind %q", action.Kind)
	}
	if err == nil {
		return
	}
	var rej *rules.Rejection
	if errors.As(err, &rej) {
		h.reply(client, MsgRejection, RejectionPayload{Code: rej.Code, Reason: rej.Reason, Suggestions: rej.Suggestions})
		return
	}
	h.logger.Warn("websocket action failed", zap.String("match_id", action.MatchID), zap.Error(err))
	h.reply(client, MsgError, map[string]string{"error": err.Error()})
}

// noteConflict tells the match's observers when two roles acted within the
// conflict window.
func (h *Hub) noteConflict(action Action) {
	h.actionsMu.Lock()
	prev, ok := h.lastActions[action.MatchID]
	h.lastActions[action.MatchID] = action
	h.actionsMu.Unlock()

	if !ok || prev.Role == action.Role {
		return
	}
	gap := action.Timestamp.Sub(prev.Timestamp)
	if gap < 0 {
		gap = -gap
	}
	if gap > h.window {
		return
	}
	first, second := ResolveConflict(prev, action, h.window)
	h.logger.Debug("near-simultaneous actions",
		zap.String("match_id", action.MatchID),
		zap.String("first", string(first.Kind)),
		zap.String("second", string(second.Kind)),
	)

	msg, err := encode(MsgConflict, action.MatchID, "", ConflictPayload{First: first, Second: second})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if matchID, _ := client.subscription(); matchID == action.MatchID {
			select {
			case client.send <- msg:
			default:
			}
		}
	}
}

func (h *Hub) reply(client *Client, typ string, data any) {
	matchID, role := client.subscription()
	msg, err := encode(typ, matchID, role, data)
	if err != nil {
		h.logger.Error("encode websocket message", zap.String("type", typ), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- msg:
	default:
	}
}

func encode(typ, matchID string, role model.Role, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return json.Marshal(WSMessage{Type: typ, MatchID: matchID, Role: role, Data: raw})
}

func (h *Hub) readPump(client *Client) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
		client.conn.Close()
	}()

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(client, MsgError, map[string]string{"error": "malformed message"})
			continue
		}
		h.handleMessage(context.Background(), client, msg)
	}
}

func (h *Hub) writePump(client *Client) {
	var ping <-chan time.Time
	if h.cfg.PingInterval > 0 {
		ticker := time.NewTicker(h.cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer client.conn.Close()

	for {
		select {
		case msg, ok := <-client.send:
			h.setWriteDeadline(client)
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping:
			h.setWriteDeadline(client)
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) setWriteDeadline(client *Client) {
	if h.cfg.WriteTimeout > 0 {
		_ = client.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	}
}
