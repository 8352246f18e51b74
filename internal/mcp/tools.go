// Package mcp exposes matches as MCP tools so an assistant can play one
// side of an encounter against the decision engine.
package mcp

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
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ScenarioSource lists playable scenarios.
type ScenarioSource interface {
	Scenarios() []model.Scenario
}

// Tools holds the tool handlers.
type Tools struct {
	matches   *game.Manager
	scenarios ScenarioSource
}

// NewTools creates the handlers over a match manager.
func NewTools(matches *game.Manager, scenarios ScenarioSource) *Tools {
	return &Tools{matches: matches, scenarios: scenarios}
}

// Register adds every tool to s.
func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(listScenariosTool(), t.handleListScenarios)
	s.AddTool(startMatchTool(), t.handleStartMatch)
	s.AddTool(getStateTool(), t.handleGetState)
	s.AddTool(playCardTool(), t.handlePlayCard)
	s.AddTool(counterTool(), t.handleCounter)
	s.AddTool(endTurnTool(), t.handleEndTurn)
}

func listScenariosTool() mcp.Tool {
	return mcp.NewTool("list_scenarios",
		mcp.WithDescription("List the clinical scenarios a match can be started from."),
	)
}

func startMatchTool() mcp.Tool {
	return mcp.NewTool("start_match",
		mcp.WithDescription("Start an encounter. You play the role opposite opponent_role; the computer plays opponent_role. "+
			"Returns the match id and your view of the state."),
		mcp.WithString("scenario_id", mcp.Required(), mcp.Description("Scenario id from list_scenarios")),
		mcp.WithString("difficulty", mcp.Description("beginner, intermediate or advanced"), mcp.Enum("beginner", "intermediate", "advanced")),
		mcp.WithString("opponent_role", mcp.Description("Role the computer plays"), mcp.Enum("clinician", "patient"), mcp.DefaultString("patient")),
		mcp.WithNumber("seed", mcp.Description("Random seed; 0 picks one")),
	)
}

func getStateTool() mcp.Tool {
	return mcp.NewTool("get_state",
		mcp.WithDescription("Get the current state of a match as seen by role. Read-only."),
		mcp.WithString("match_id", mcp.Required()),
		mcp.WithString("role", mcp.Required(), mcp.Enum("clinician", "patient")),
	)
}

func playCardTool() mcp.Tool {
	return mcp.NewTool("play_card",
		mcp.WithDescription("Play a card from your hand by instance id."),
		mcp.WithString("match_id", mcp.Required()),
		mcp.WithString("role", mcp.Required(), mcp.Enum("clinician", "patient")),
		mcp.WithString("instance_id", mcp.Required(), mcp.Description("instance_id of a card in your hand")),
		mcp.WithString("target_id", mcp.Description("Clue, active effect or modifier id for targeted cards")),
	)
}

func counterTool() mcp.Tool {
	return mcp.NewTool("counter",
		mcp.WithDescription("Answer a counter opportunity offered to you."),
		mcp.WithString("match_id", mcp.Required()),
		mcp.WithString("role", mcp.Required(), mcp.Enum("clinician", "patient")),
		mcp.WithString("opportunity_id", mcp.Required()),
	)
}

func endTurnTool() mcp.Tool {
	return mcp.NewTool("end_turn",
		mcp.WithDescription("End your turn. The computer opponent then plays its turn before this returns."),
		mcp.WithString("match_id", mcp.Required()),
		mcp.WithString("role", mcp.Required(), mcp.Enum("clinician", "patient")),
	)
}

func (t *Tools) handleListScenarios(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var scenarios []model.Scenario
	if t.scenarios != nil {
		scenarios = t.scenarios.Scenarios()
	}
	return jsonResult(scenarios)
}

func (t *Tools) handleStartMatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scenarioID := request.GetString("scenario_id", "")
	if scenarioID == "" {
		return mcp.NewToolResultError("scenario_id is required"), nil
	}
	opponent, err := model.ParseRole(request.GetString("opponent_role", string(model.RolePatient)))
	if err != nil {
		return mcp.NewToolResultErrorFromErr("invalid opponent_role", err), nil
	}
	opts := game.Options{
		ScenarioID:   scenarioID,
		Seed:         uint64(request.GetFloat("seed", 0)),
		OpponentRole: opponent,
	}
	if d := request.GetString("difficulty", ""); d != "" {
		if opts.Difficulty, err = model.ParseDifficulty(d); err != nil {
			return mcp.NewToolResultErrorFromErr("invalid difficulty", err), nil
		}
	}
	match, err := t.matches.Create(opts)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to start match", err), nil
	}

	you := opponent.Opponent()
	if match.State().ActiveRole == opponent {
		if _, err := match.RunOpponentTurn(ctx); err != nil {
			return mcp.NewToolResultErrorFromErr("opponent turn failed", err), nil
		}
	}
	return jsonResult(map[string]any{
		"match_id": match.ID(),
		"you":      you,
		"state":    realtime.BuildBroadcast(match.State(), you),
	})
}

func (t *Tools) handleGetState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	match, role, res := t.resolve(request)
	if res != nil {
		return res, nil
	}
	return jsonResult(realtime.BuildBroadcast(match.State(), role))
}

func (t *Tools) handlePlayCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	match, role, res := t.resolve(request)
	if res != nil {
		return res, nil
	}
	instanceID := request.GetString("instance_id", "")
	if instanceID == "" {
		return mcp.NewToolResultError("instance_id is required"), nil
	}
	out, err := match.PlayCard(ctx, role, instanceID, request.GetString("target_id", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return outcomeResult(out, role)
}

func (t *Tools) handleCounter(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	match, role, res := t.resolve(request)
	if res != nil {
		return res, nil
	}
	out, err := match.Counter(ctx, role, request.GetString("opportunity_id", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return outcomeResult(out, role)
}

func (t *Tools) handleEndTurn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	match, role, res := t.resolve(request)
	if res != nil {
		return res, nil
	}
	out, err := match.EndTurn(ctx, role)
	if err != nil {
		return errorResult(err), nil
	}
	if opponent := match.OpponentRole(); opponent != "" && !out.State.Finished() && out.State.ActiveRole == opponent {
		if out, err = match.RunOpponentTurn(ctx); err != nil {
			return errorResult(err), nil
		}
	}
	return outcomeResult(out, role)
}

func (t *Tools) resolve(request mcp.CallToolRequest) (*game.Match, model.Role, *mcp.CallToolResult) {
	match, err := t.matches.Get(request.GetString("match_id", ""))
	if err != nil {
		return nil, "", mcp.NewToolResultErrorFromErr("unknown match", err)
	}
	role, err := model.ParseRole(request.GetString("role", ""))
	if err != nil {
		return nil, "", mcp.NewToolResultErrorFromErr("invalid role", err)
	}
	return match, role, nil
}

func outcomeResult(out game.Outcome, role model.Role) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"effects":            out.Interactions.Kinds(),
		"assessment_failed":  out.Interactions.AssessmentFailed,
		"educational_impact": out.Interactions.EducationalImpact,
		"state":              realtime.BuildBroadcast(out.State, role),
	})
}

// errorResult turns a rejection into a tool error the model can act on.
func errorResult(err error) *mcp.CallToolResult {
	var rej *rules.Rejection
	if !errors.As(err, &rej) {
		return mcp.NewToolResultErrorFromErr("action failed", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "rejected (%s): %s", rej.Code, rej.Reason)
	for _, s := range rej.Suggestions {
		fmt.Fprintf(&b, "\n- %s", s)
	}
	return mcp.NewToolResultError(b.String())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
