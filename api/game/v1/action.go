package v1

import (
	"encoding/json"

	"github.com/tileplay/carcassonne/internal/model"
)

type ActionType string

const (
	ActionJoinGame   ActionType = "join_game"
	ActionStartGame  ActionType = "start_game"
	ActionPlaceTile  ActionType = "place_tile"
	ActionEndGame    ActionType = "end_game"
	ActionFinishGame ActionType = "finish_game"
)

// Envelope is one inbound player intent.
type Envelope struct {
	Type   ActionType    `json:"type"`
	GameID string        `json:"gameId"`
	Player *model.Player `json:"player,omitempty"`
	Tile   *model.Tile   `json:"tile,omitempty"`
}

// DecodeEnvelope parses a text frame. Only the JSON shape is checked here;
// per-action payload checks happen in the router.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	env := &Envelope{}
	if err := json.Unmarshal(data, env); err != nil {
		return nil, err
	}
	return env, nil
}
