package server

import (
	"context"
	"strings"

	"github.com/clinicsim/clinic-server-go/internal/game/rules"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the match service. Rejected actions come back as
// *rules.Rejection errors.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Call invokes method with fields as the request and returns the response
// decoded into plain Go values.
func (c *Client) Call(ctx context.Context, method string, fields map[string]any) (map[string]any, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp); err != nil {
		return nil, FromStatus(err)
	}
	return resp.AsMap(), nil
}

func (c *Client) CreateMatch(ctx context.Context, scenarioID, difficulty string, seed uint64, opponentRole string) (map[string]any, error) {
	return c.Call(ctx, "CreateMatch", map[string]any{
		"scenario_id":   scenarioID,
		"difficulty":    difficulty,
		"seed":          float64(seed),
		"opponent_role": opponentRole,
	})
}

func (c *Client) GetState(ctx context.Context, matchID, role string) (map[string]any, error) {
	return c.Call(ctx, "GetState", map[string]any{"match_id": matchID, "role": role})
}

func (c *Client) PlayCard(ctx context.Context, matchID, role, instanceID, targetID string) (map[string]any, error) {
	return c.Call(ctx, "PlayCard", map[string]any{
		"match_id":    matchID,
		"role":        role,
		"instance_id": instanceID,
		"target_id":   targetID,
	})
}

func (c *Client) EndTurn(ctx context.Context, matchID, role string) (map[string]any, error) {
	return c.Call(ctx, "EndTurn", map[string]any{"match_id": matchID, "role": role})
}

func (c *Client) Counter(ctx context.Context, matchID, role, opportunityID string) (map[string]any, error) {
	return c.Call(ctx, "Counter", map[string]any{
		"match_id":       matchID,
		"role":           role,
		"opportunity_id": opportunityID,
	})
}

func (c *Client) RunOpponentTurn(ctx context.Context, matchID string) (map[string]any, error) {
	return c.Call(ctx, "RunOpponentTurn", map[string]any{"match_id": matchID})
}

// FromStatus rebuilds a rules rejection from a gRPC status carrying one.
// Other errors are returned unchanged.
func FromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != RejectionDomain {
			continue
		}
		rej := &rules.Rejection{
			Code:   rules.Code(info.GetReason()),
			Reason: st.Message(),
		}
		for k, v := range info.GetMetadata() {
			if k == suggestionsKey {
				rej.Suggestions = strings.Split(v, "\n")
				continue
			}
			if rej.Details == nil {
				rej.Details = map[string]string{}
			}
			rej.Details[k] = v
		}
		return rej
	}
	return err
}
