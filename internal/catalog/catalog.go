// internal/catalog/catalog.go
package catalog

import (
	"errors"
	"fmt"

	"github.com/jason-s-yu/playtogether/internal/game"
)

// ErrNotFound is returned by Get for an id that is not in the catalog.
var ErrNotFound = errors.New("game not found")

// GameDefinition describes one playable game type. Definitions are immutable once the
// catalog is built.
type GameDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Category    string `json:"category"`
	Difficulty  string `json:"difficulty"`
	MinPlayers  int    `json:"minPlayers"`
	MaxPlayers  int    `json:"maxPlayers"`

	Reducer game.Reducer `json:"-"`
}

// NewState builds the initial state for a fresh session of this game.
func (d GameDefinition) NewState() game.State {
	return d.Reducer.NewState()
}

// Catalog is the fixed list of game definitions, keyed by id for dispatch.
type Catalog struct {
	defs []GameDefinition
	byID map[string]GameDefinition
}

// New builds a catalog from defs, in the order given. Duplicate ids are rejected.
func New(defs ...GameDefinition) (*Catalog, error) {
	c := &Catalog{
		defs: make([]GameDefinition, 0, len(defs)),
		byID: make(map[string]GameDefinition, len(defs)),
	}
	for _, d := range defs {
		if d.ID == "" || d.Reducer == nil {
			return nil, fmt.Errorf("game definition %q is incomplete", d.Name)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate game id %q", d.ID)
		}
		c.defs = append(c.defs, d)
		c.byID[d.ID] = d
	}
	return c, nil
}

// Default returns the catalog served by the site: Love Trivia, Tic-Tac-Hearts and Memory Match.
func Default() *Catalog {
	c, err := New(
		GameDefinition{
			ID:          game.LoveTriviaID,
			Name:        "Love Trivia",
			Description: "How well do you know each other?",
			Icon:        "❤️",
			Category:    "Romance",
			Difficulty:  "Easy",
			MinPlayers:  2,
			MaxPlayers:  2,
			Reducer:     game.LoveTrivia{},
		},
		GameDefinition{
			ID:          game.TicTacHeartsID,
			Name:        "Tic Tac Hearts",
			Description: "Classic game with a romantic twist",
			Icon:        "💕",
			Category:    "Strategy",
			Difficulty:  "Easy",
			MinPlayers:  2,
			MaxPlayers:  2,
			Reducer:     game.TicTacHearts{},
		},
		GameDefinition{
			ID:          game.MemoryMatchID,
			Name:        "Memory Match",
			Description: "Match cards of your favorite moments",
			Icon:        "🧠",
			Category:    "Memory",
			Difficulty:  "Medium",
			MinPlayers:  2,
			MaxPlayers:  2,
			Reducer:     game.MemoryMatch{},
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// List returns every definition in catalog order. The slice is a copy; callers may keep it.
func (c *Catalog) List() []GameDefinition {
	out := make([]GameDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Get looks up a definition by id.
func (c *Catalog) Get(id string) (GameDefinition, error) {
	d, ok := c.byID[id]
	if !ok {
		return GameDefinition{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return d, nil
}

// DecodeState restores the JSON state of a session playing gameID.
func (c *Catalog) DecodeState(gameID string, data []byte) (game.State, error) {
	d, err := c.Get(gameID)
	if err != nil {
		return nil, err
	}
	st, err := d.Reducer.DecodeState(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s state: %w", gameID, err)
	}
	return st, nil
}
