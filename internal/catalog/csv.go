package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"gopkg.in/yaml.v3"
)

// listColumns hold ";"-separated values.
var listColumns = map[string]bool{
	"counters":           true,
	"phase_restrictions": true,
}

// ReadCardsCSV decodes card definitions from a CSV export. The header names
// columns after the catalog YAML keys. "costs" is written as
// "energy:2;time:1", list columns are ";"-separated and "lingering" holds
// an inline YAML mapping. Empty cells are left at their zero value.
func ReadCardsCSV(r io.Reader) ([]model.CardDefinition, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("card CSV has no header")
	}
	if err != nil {
		return nil, fmt.Errorf("read card CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var cards []model.CardDefinition
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read card CSV line %d: %w", line, err)
		}
		card, err := decodeCardRow(header, record)
		if err != nil {
			return nil, fmt.Errorf("card CSV line %d: %w", line, err)
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func decodeCardRow(header, record []string) (model.CardDefinition, error) {
	row := make(map[string]any, len(header))
	for i, name := range header {
		if i >= len(record) {
			break
		}
		cell := strings.TrimSpace(record[i])
		if cell == "" {
			continue
		}
		switch {
		case name == "costs":
			costs, err := parseCosts(cell)
			if err != nil {
				return model.CardDefinition{}, err
			}
			row[name] = costs
		case name == "lingering":
			var v map[string]any
			if err := yaml.Unmarshal([]byte(cell), &v); err != nil {
				return model.CardDefinition{}, fmt.Errorf("lingering: %w", err)
			}
			row[name] = v
		case listColumns[name]:
			row[name] = strings.Split(cell, ";")
		default:
			row[name] = scalar(cell)
		}
	}

	// Round-trip through YAML so the definition's own tags drive decoding.
	data, err := yaml.Marshal(row)
	if err != nil {
		return model.CardDefinition{}, err
	}
	var card model.CardDefinition
	if err := yaml.Unmarshal(data, &card); err != nil {
		return model.CardDefinition{}, err
	}
	if card.ID == "" {
		return card, fmt.Errorf("missing id")
	}
	return card, nil
}

func parseCosts(cell string) (map[string]int, error) {
	costs := make(map[string]int)
	for _, part := range strings.Split(cell, ";") {
		name, amount, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("cost %q: want resource:amount", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(amount))
		if err != nil {
			return nil, fmt.Errorf("cost %q: %w", part, err)
		}
		costs[strings.TrimSpace(name)] = n
	}
	return costs, nil
}

func scalar(cell string) any {
	if n, err := strconv.Atoi(cell); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(cell); err == nil && (cell == "true" || cell == "false") {
		return b
	}
	return cell
}

// MergeCards overlays cards onto the catalog's own by id and returns the
// combined list, catalog order first.
func (c *Catalog) MergeCards(cards []model.CardDefinition) []model.CardDefinition {
	byID := make(map[string]model.CardDefinition, len(cards))
	for _, card := range cards {
		byID[card.ID] = card
	}
	var merged []model.CardDefinition
	for _, card := range c.Cards() {
		if override, ok := byID[card.ID]; ok {
			card = override
			delete(byID, card.ID)
		}
		merged = append(merged, card)
	}
	for _, card := range cards {
		if _, ok := byID[card.ID]; ok {
			merged = append(merged, card)
			delete(byID, card.ID)
		}
	}
	return merged
}
