package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clinicsim/clinic-server-go/internal/catalog"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// CardRepository stores card definitions and deck lists.
type CardRepository struct {
	db *DB
}

// NewCardRepository creates a card repository.
func NewCardRepository(db *DB) *CardRepository {
	return &CardRepository{db: db}
}

// Import upserts cards and replaces the deck lists of the given roles in a
// single transaction.
func (r *CardRepository) Import(ctx context.Context, cards []model.CardDefinition, decks map[model.Role][]catalog.DeckEntry) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, card := range cards {
		data, err := json.Marshal(card)
		if err != nil {
			return fmt.Errorf("encode card %s: %w", card.ID, err)
		}
		batch.Queue(`
			INSERT INTO cards (id, role, card_type, definition, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (id) DO UPDATE
			SET role = EXCLUDED.role, card_type = EXCLUDED.card_type,
			    definition = EXCLUDED.definition, updated_at = now()`,
			card.ID, string(card.Role), string(card.Type), data)
	}
	for role, entries := range decks {
		batch.Queue(`DELETE FROM deck_entries WHERE role = $1`, string(role))
		for i, entry := range entries {
			batch.Queue(`
				INSERT INTO deck_entries (role, position, card_id, count)
				VALUES ($1, $2, $3, $4)`,
				string(role), i, entry.Card, entry.Count)
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("import cards: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	r.db.logger.Info("cards imported",
		zap.Int("cards", len(cards)),
		zap.Int("decks", len(decks)),
	)
	return nil
}

// Load returns every stored card ordered by id, and the deck lists.
func (r *CardRepository) Load(ctx context.Context) ([]model.CardDefinition, map[model.Role][]catalog.DeckEntry, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT definition FROM cards ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("load cards: %w", err)
	}
	cards, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.CardDefinition, error) {
		var data []byte
		var card model.CardDefinition
		if err := row.Scan(&data); err != nil {
			return card, err
		}
		return card, json.Unmarshal(data, &card)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("decode cards: %w", err)
	}

	rows, err = r.db.pool.Query(ctx, `SELECT role, card_id, count FROM deck_entries ORDER BY role, position`)
	if err != nil {
		return nil, nil, fmt.Errorf("load decks: %w", err)
	}
	defer rows.Close()
	decks := make(map[model.Role][]catalog.DeckEntry)
	for rows.Next() {
		var role string
		var entry catalog.DeckEntry
		if err := rows.Scan(&role, &entry.Card, &entry.Count); err != nil {
			return nil, nil, err
		}
		decks[model.Role(role)] = append(decks[model.Role(role)], entry)
	}
	return cards, decks, rows.Err()
}

// Catalog overlays the stored cards and decks on base.
func (r *CardRepository) Catalog(ctx context.Context, base *catalog.Catalog) (*catalog.Catalog, error) {
	cards, decks, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("cards table is empty: %w", ErrNotFound)
	}
	return base.WithCards(cards, decks)
}
