package v1

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tileplay/carcassonne/internal/model"
)

func TestPushCarriesTypeTag(t *testing.T) {
	a := model.Player{ID: "a", Name: "Alice"}
	tests := []struct {
		push Push
		want PushType
	}{
		{PlayerJoined{Header: Header{GameID: "G1", Version: 1}, Player: a, Players: []model.Player{a}, CurrentPlayer: &a}, PushPlayerJoined},
		{BoardUpdate{Header: Header{GameID: "G1", Version: 3}, Player: a, NextPlayer: a}, PushBoardUpdate},
		{GameStarted{Header: Header{GameID: "G1", Version: 2}, Phase: model.PhaseTilePlacement}, PushGameStarted},
		{Error{Header: Header{GameID: "G1"}, Code: "NOT_YOUR_TURN", Message: "not your turn"}, PushError},
		{GameScored{Header: Header{GameID: "G1"}}, PushGameScored},
		{GameFinished{Header: Header{GameID: "G1"}}, PushGameFinished},
		{TurnSkipped{Header: Header{GameID: "G1"}, Player: a, NextPlayer: a}, PushTurnSkipped},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			data, err := json.Marshal(tt.push)
			require.NoError(t, err)

			var fields map[string]any
			require.NoError(t, json.Unmarshal(data, &fields))
			assert.Equal(t, string(tt.want), fields["type"])
			assert.Equal(t, "G1", fields["gameId"])
			assert.Contains(t, fields, "version")
			assert.Equal(t, "G1", tt.push.Game())
		})
	}
}

func TestErrorPushShape(t *testing.T) {
	data, err := json.Marshal(Error{Header: Header{GameID: "G1", Version: 4}, Code: "ILLEGAL_PLACEMENT", Message: "illegal tile placement"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","gameId":"G1","version":4,"code":"ILLEGAL_PLACEMENT","message":"illegal tile placement"}`, string(data))
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"place_tile","gameId":"G1","player":{"id":"a"},
		"tile":{"definition":{"kind":"road","edges":["field","road","field","road"]},"position":{"x":0,"y":-1},"rotation":90}}`))
	require.NoError(t, err)
	assert.Equal(t, ActionPlaceTile, env.Type)
	require.NotNil(t, env.Tile)
	require.NotNil(t, env.Tile.Position)
	assert.Equal(t, model.Position{X: 0, Y: -1}, *env.Tile.Position)
	assert.Equal(t, model.EdgeRoad, env.Tile.Definition.Edges[1])

	_, err = DecodeEnvelope([]byte(`{"type":`))
	assert.Error(t, err)
}
