package catalog

import (
	"testing"

	"github.com/jason-s-yu/playtogether/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultListIsStable(t *testing.T) {
	c := Default()
	first := c.List()
	require.Len(t, first, 3)

	first[0].Name = "mutated"
	second := c.List()
	assert.Equal(t, "Love Trivia", second[0].Name)

	ids := []string{second[0].ID, second[1].ID, second[2].ID}
	assert.Equal(t, []string{game.LoveTriviaID, game.TicTacHeartsID, game.MemoryMatchID}, ids)
	for _, d := range second {
		assert.Equal(t, 2, d.MinPlayers, d.ID)
		assert.Equal(t, 2, d.MaxPlayers, d.ID)
	}
}

func TestGet(t *testing.T) {
	c := Default()
	d, err := c.Get(game.TicTacHeartsID)
	require.NoError(t, err)
	assert.IsType(t, &game.TicTacState{}, d.NewState())

	_, err = c.Get("word_love")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New(
		GameDefinition{ID: "a", Reducer: game.TicTacHearts{}},
		GameDefinition{ID: "a", Reducer: game.MemoryMatch{}},
	)
	assert.Error(t, err)

	_, err = New(GameDefinition{ID: "b"})
	assert.Error(t, err)
}

func TestDecodeState(t *testing.T) {
	c := Default()
	st, err := c.DecodeState(game.MemoryMatchID, []byte(`{"cards":["a","a"],"flipped":[0],"matched":[],"current_player":1,"pairs":[0,0]}`))
	require.NoError(t, err)
	ms := st.(*game.MemoryState)
	assert.Equal(t, 1, ms.Turn())
	assert.Equal(t, []int{0}, ms.Flipped)

	_, err = c.DecodeState("nope", []byte(`{}`))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.DecodeState(game.MemoryMatchID, []byte(`not json`))
	assert.Error(t, err)
}
