package snapshot

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/pokerclub-services/internal/tablesvc/engine"
)

func intp(v int) *int       { return &v }
func int64p(v int64) *int64 { return &v }

func liveTable() *engine.Table {
	return &engine.Table{
		ID:      "t1",
		Variant: "PLO",
		State: engine.State{
			Board:         []string{"Ah", "Kd", "2c", "9s"},
			Pots:          []engine.Pot{{Amount: 300}, {Amount: 120, Eligible: []int{1, 4}}},
			DealerSeat:    4,
			ToAct:         intp(1),
			Phase:         "BETTING",
			Round:         "TURN",
			ToCall:        60,
			MinRaise:      120,
			TimerDeadline: int64p(1_700_000_123_456),
			DrawPending:   true,
			CurrentSeat:   intp(1),
			LastActionAt:  time.Now(),
		},
		Deck:     []string{"3h", "4h", "5h"},
		Burns:    []string{"7c"},
		Discards: []string{"8d", "Td"},
		Players:  []*engine.Player{{UserID: "u1", Seat: 1, Connected: true}},
	}
}

func TestRoundTrip(t *testing.T) {
	x := liveTable()

	raw, err := Encode(Serialize(x))
	require.NoError(t, err)
	decoded, err := Decode(raw)
	require.NoError(t, err)

	y := &engine.Table{ID: x.ID}
	Restore(decoded, y)

	want := x.State
	want.LastActionAt = time.Time{}
	assert.Equal(t, want, y.State)
	assert.Equal(t, x.Deck, y.Deck)
	assert.Equal(t, x.Burns, y.Burns)
	assert.Equal(t, x.Discards, y.Discards)
}

func TestSerializeDoesNotAliasLiveState(t *testing.T) {
	x := liveTable()
	s := Serialize(x)

	x.State.Board[0] = "2d"
	*x.State.ToAct = 3
	x.State.Pots[1].Eligible[0] = 9

	assert.Equal(t, "Ah", s.Board[0])
	assert.Equal(t, 1, *s.ToAct)
	assert.Equal(t, 1, s.Pots[1].Eligible[0])
}

func TestSerializeExcludesTransientFields(t *testing.T) {
	raw, err := Encode(Serialize(liveTable()))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.EqualValues(t, Version, doc["v"])
	for _, key := range []string{"state", "lastActionAt", "LastActionAt", "players", "potTotal"} {
		assert.NotContains(t, doc, key)
	}
	assert.Len(t, doc, 15)
}

func TestSerializeDegenerateTable(t *testing.T) {
	s := Serialize(&engine.Table{ID: "t-empty"})
	assert.Equal(t, Empty(), s)

	raw, err := Encode(s)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"board":[]`)
	assert.Contains(t, string(raw), `"toAct":null`)

	assert.Equal(t, Empty(), Serialize(nil))
}

func TestDecode(t *testing.T) {
	t.Run("empty document", func(t *testing.T) {
		s, err := Decode(nil)
		require.NoError(t, err)
		assert.Equal(t, Empty(), s)
	})

	t.Run("legacy document is upgraded", func(t *testing.T) {
		raw := []byte(`{"state":{"phase":"SHOWDOWN","junk":true},"board":["Ah"],"pots":[{"amount":50}],
			"dealerSeat":2,"toAct":null,"phase":"SHOWDOWN","round":"RIVER","toCall":0,"minRaise":20,
			"timerDeadline":null,"deck":[],"burns":[],"discards":[],"drawPending":{"seat":3},"currentSeat":null}`)
		s, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, Version, s.V)
		assert.Equal(t, "SHOWDOWN", s.Phase)
		assert.Equal(t, []string{"Ah"}, s.Board)
		assert.True(t, s.DrawPending)
		assert.Nil(t, s.ToAct)
	})

	t.Run("legacy null draw pending", func(t *testing.T) {
		s, err := Decode([]byte(`{"phase":"WAITING","drawPending":null}`))
		require.NoError(t, err)
		assert.False(t, s.DrawPending)
		assert.Equal(t, []string{}, s.Deck)
	})

	t.Run("future version is rejected", func(t *testing.T) {
		_, err := Decode([]byte(`{"v":7,"phase":"X"}`))
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := Decode([]byte(`{nope`))
		assert.Error(t, err)
	})
}
