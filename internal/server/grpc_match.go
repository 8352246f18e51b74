package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/clinicsim/clinic-server-go/internal/game"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/rules"
	"github.com/clinicsim/clinic-server-go/internal/realtime"
	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// RejectionDomain tags ErrorInfo details carrying a rules rejection.
const RejectionDomain = "clinic.rules"

const suggestionsKey = "suggestions"

// CreateMatch starts a match.
// Request: scenario_id, difficulty, seed, opponent_role, auto_opponent, role.
// Response: match_id and the state as seen by role.
func (s *clinicServer) CreateMatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	scenarioID := stringField(fields, "scenario_id")
	if scenarioID == "" {
		return nil, status.Error(codes.InvalidArgument, "scenario_id is required")
	}

	opts := game.Options{
		ScenarioID:   scenarioID,
		Seed:         uint64(fields["seed"].GetNumberValue()),
		AutoOpponent: fields["auto_opponent"].GetBoolValue(),
	}
	if d := stringField(fields, "difficulty"); d != "" {
		difficulty, err := model.ParseDifficulty(d)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		opts.Difficulty = difficulty
	}
	if r := stringField(fields, "opponent_role"); r != "" {
		role, err := model.ParseRole(r)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		opts.OpponentRole = role
	}
	viewer, err := optionalRole(fields)
	if err != nil {
		return nil, err
	}

	match, err := s.matches.Create(opts)
	if err != nil {
		return nil, s.toStatus("create match", err)
	}
	s.logger.Info("match created over grpc",
		zap.String("match_id", match.ID()),
		zap.String("scenario_id", scenarioID),
	)
	return respond(map[string]any{
		"match_id": match.ID(),
		"state":    realtime.BuildBroadcast(match.State(), viewer),
	})
}

// GetState returns a match as seen by role (empty for a spectator view).
func (s *clinicServer) GetState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	match, err := s.match(req)
	if err != nil {
		return nil, err
	}
	viewer, err := optionalRole(req.GetFields())
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{
		"match_id": match.ID(),
		"state":    realtime.BuildBroadcast(match.State(), viewer),
	})
}

// PlayCard plays instance_id for role, optionally at target_id.
func (s *clinicServer) PlayCard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	match, role, err := s.matchAndRole(req)
	if err != nil {
		return nil, err
	}
	fields := req.GetFields()
	instanceID := stringField(fields, "instance_id")
	if instanceID == "" {
		return nil, status.Error(codes.InvalidArgument, "instance_id is required")
	}
	out, err := match.PlayCard(ctx, role, instanceID, stringField(fields, "target_id"))
	if err != nil {
		return nil, s.toStatus("play card", err)
	}
	return outcomeResponse(match.ID(), role, out)
}

// EndTurn ends role's turn.
func (s *clinicServer) EndTurn(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	match, role, err := s.matchAndRole(req)
	if err != nil {
		return nil, err
	}
	out, err := match.EndTurn(ctx, role)
	if err != nil {
		return nil, s.toStatus("end turn", err)
	}
	return outcomeResponse(match.ID(), role, out)
}

// Counter answers opportunity_id for role.
func (s *clinicServer) Counter(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	match, role, err := s.matchAndRole(req)
	if err != nil {
		return nil, err
	}
	opportunityID := stringField(req.GetFields(), "opportunity_id")
	if opportunityID == "" {
		return nil, status.Error(codes.InvalidArgument, "opportunity_id is required")
	}
	out, err := match.Counter(ctx, role, opportunityID)
	if err != nil {
		return nil, s.toStatus("counter", err)
	}
	return outcomeResponse(match.ID(), role, out)
}

// RunOpponentTurn plays the computer opponent's turn immediately.
func (s *clinicServer) RunOpponentTurn(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	match, err := s.match(req)
	if err != nil {
		return nil, err
	}
	out, err := match.RunOpponentTurn(ctx)
	if err != nil {
		return nil, s.toStatus("opponent turn", err)
	}
	return outcomeResponse(match.ID(), match.OpponentRole().Opponent(), out)
}

// ListMatches returns the ids of running matches.
func (s *clinicServer) ListMatches(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return respond(map[string]any{"match_ids": s.matches.List()})
}

// ListScenarios returns the scenarios matches can be created from.
func (s *clinicServer) ListScenarios(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	var scenarios []model.Scenario
	if s.scenarios != nil {
		scenarios = s.scenarios.Scenarios()
	}
	return respond(map[string]any{
		"server_version": s.serverVersion,
		"scenarios":      scenarios,
	})
}

func (s *clinicServer) match(req *structpb.Struct) (*game.Match, error) {
	id := stringField(req.GetFields(), "match_id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "match_id is required")
	}
	match, err := s.matches.Get(id)
	if err != nil {
		return nil, s.toStatus("get match", err)
	}
	return match, nil
}

func (s *clinicServer) matchAndRole(req *structpb.Struct) (*game.Match, model.Role, error) {
	match, err := s.match(req)
	if err != nil {
		return nil, "", err
	}
	role, err := model.ParseRole(stringField(req.GetFields(), "role"))
	if err != nil {
		return nil, "", status.Error(codes.InvalidArgument, err.Error())
	}
	return match, role, nil
}

// toStatus maps match errors onto gRPC codes. Rejections carry their code in
// an ErrorInfo detail so clients can rebuild them.
func (s *clinicServer) toStatus(op string, err error) error {
	var rej *rules.Rejection
	switch {
	case errors.As(err, &rej):
		st := status.New(codes.FailedPrecondition, rej.Reason)
		metadata := make(map[string]string, len(rej.Details)+1)
		for k, v := range rej.Details {
			metadata[k] = v
		}
		if len(rej.Suggestions) > 0 {
			metadata[suggestionsKey] = strings.Join(rej.Suggestions, "\n")
		}
		info := &errdetails.ErrorInfo{
			Reason:   string(rej.Code),
			Domain:   RejectionDomain,
			Metadata: metadata,
		}
		if detailed, derr := st.WithDetails(info); derr == nil {
			st = detailed
		}
		return st.Err()
	case errors.Is(err, game.ErrMatchNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, game.ErrUnknownScenario), errors.Is(err, game.ErrNoOpponent):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	s.logger.Error("match operation failed", zap.String("op", op), zap.Error(err))
	return status.Errorf(codes.Internal, "%s: %v", op, err)
}

type interactionsView struct {
	Kinds             []model.EffectKind         `json:"kinds"`
	Triggered         int                        `json:"triggered"`
	Counters          []model.CounterOpportunity `json:"counters,omitempty"`
	AssessmentFailed  bool                       `json:"assessment_failed"`
	EducationalImpact string                     `json:"educational_impact,omitempty"`
}

func outcomeResponse(matchID string, viewer model.Role, out game.Outcome) (*structpb.Struct, error) {
	return respond(map[string]any{
		"match_id": matchID,
		"state":    realtime.BuildBroadcast(out.State, viewer),
		"interactions": interactionsView{
			Kinds:             out.Interactions.Kinds(),
			Triggered:         len(out.Interactions.Triggered),
			Counters:          out.Interactions.Counters,
			AssessmentFailed:  out.Interactions.AssessmentFailed,
			EducationalImpact: out.Interactions.EducationalImpact,
		},
	})
}

// respond converts any JSON-encodable payload into a Struct.
func respond(payload map[string]any) (*structpb.Struct, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func stringField(fields map[string]*structpb.Value, key string) string {
	return strings.TrimSpace(fields[key].GetStringValue())
}

func optionalRole(fields map[string]*structpb.Value) (model.Role, error) {
	r := stringField(fields, "role")
	if r == "" {
		return "", nil
	}
	role, err := model.ParseRole(r)
	if err != nil {
		return "", status.Error(codes.InvalidArgument, fmt.Sprintf("role: %v", err))
	}
	return role, nil
}
