package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/clinicsim/clinic-server-go/internal/game"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/clinicsim/clinic-server-go/internal/game/rules"
	"github.com/clinicsim/clinic-server-go/internal/game/targeting"
)

const logLines = 8

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// tuiModel is the terminal view of one match seen from the human role.
type tuiModel struct {
	match  *game.Match
	role   model.Role
	state  *model.MatchState
	cursor int
	status string
}

func newModel(match *game.Match, role model.Role) tuiModel {
	return tuiModel{match: match, role: role, state: match.State()}
}

func (m tuiModel) Init() tea.Cmd {
	return tickCmd()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.state.Hands[m.role])-1 {
				m.cursor++
			}
		case "enter", " ":
			m = m.play()
		case "c":
			m = m.counter()
		case "e":
			_, err := m.match.EndTurn(context.Background(), m.role)
			m = m.refresh(err, "turn ended")
		}
	case tickMsg:
		m.state = m.match.State()
		m.clampCursor()
		return m, tickCmd()
	}
	return m, nil
}

func (m tuiModel) play() tuiModel {
	hand := m.state.Hands[m.role]
	if len(hand) == 0 {
		m.status = "hand is empty"
		return m
	}
	inst := hand[m.cursor]
	var target string
	if kind := inst.Definition.RequiresTarget; kind != model.TargetNone {
		candidates := targeting.Candidates(m.state, m.role, kind)
		if len(candidates) > 0 {
			target = candidates[0]
		}
	}
	out, err := m.match.PlayCard(context.Background(), m.role, inst.InstanceID, target)
	if err != nil {
		return m.refresh(err, "")
	}
	kinds := make([]string, 0, len(out.Interactions.Kinds()))
	for _, k := range out.Interactions.Kinds() {
		kinds = append(kinds, string(k))
	}
	return m.refresh(nil, fmt.Sprintf("played %s: %s", inst.Definition.Name, strings.Join(kinds, ", ")))
}

func (m tuiModel) counter() tuiModel {
	for _, opp := range m.state.PendingCounters {
		if opp.Role != m.role {
			continue
		}
		_, err := m.match.Counter(context.Background(), m.role, opp.ID)
		return m.refresh(err, "countered "+opp.AgainstCardID)
	}
	m.status = "no counter available"
	return m
}

func (m tuiModel) refresh(err error, ok string) tuiModel {
	m.state = m.match.State()
	m.clampCursor()
	switch rej, isRej := rules.AsRejection(err); {
	case isRej:
		m.status = fmt.Sprintf("rejected (%s): %s", rej.Code, rej.Reason)
		if len(rej.Suggestions) > 0 {
			m.status += "\n  try: " + strings.Join(rej.Suggestions, "; ")
		}
	case err != nil:
		m.status = "error: " + err.Error()
	default:
		m.status = ok
	}
	return m
}

func (m *tuiModel) clampCursor() {
	if n := len(m.state.Hands[m.role]); m.cursor >= n {
		m.cursor = max(0, n-1)
	}
}

func (m tuiModel) View() string {
	s := m.state
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario %s (%s)  turn %d/%d  active: %s  phase: %s\n\n",
		s.ScenarioID, s.Difficulty, s.Turn, s.MaxTurns, s.ActiveRole, s.Phase)

	for _, role := range model.Roles {
		pool := s.Pool(role)
		names := pool.Names()
		sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s %d", name, pool.Get(name)))
		}
		fmt.Fprintf(&b, "%-10s %s\n", role, strings.Join(parts, "  "))
	}
	fmt.Fprintf(&b, "\nScore  clinician %.0f  patient %.0f   clues %d\n\n",
		s.Progress.ClinicianScore, s.Progress.PatientScore, len(s.DiscoveredClues))

	b.WriteString("Hand:\n")
	for i, inst := range s.Hands[m.role] {
		cursor := " "
		if i == m.cursor {
			cursor = ">"
		}
		fmt.Fprintf(&b, "%s %-28s %-20s %v\n", cursor, inst.Definition.Name, inst.Definition.Type, inst.Definition.Costs)
	}
	for _, opp := range s.PendingCounters {
		if opp.Role == m.role {
			fmt.Fprintf(&b, "  counter available: %s against %s (press c)\n", opp.CardID, opp.AgainstCardID)
		}
	}

	b.WriteString("\nRecent:\n")
	start := max(0, len(s.Log)-logLines)
	for _, entry := range s.Log[start:] {
		fmt.Fprintf(&b, "  %-10s %-12s %s\n", entry.Actor, entry.Action, entry.CardID)
	}

	if s.Finished() && s.Result != nil {
		winner := string(s.Result.Winner)
		if s.Result.Draw {
			winner = "draw"
		}
		fmt.Fprintf(&b, "\nMatch over: %s (%s)\n", winner, s.Result.Reason)
	}
	if m.status != "" {
		fmt.Fprintf(&b, "\n%s\n", m.status)
	}
	b.WriteString("\nj/k move  enter play  c counter  e end turn  q quit\n")
	return b.String()
}
