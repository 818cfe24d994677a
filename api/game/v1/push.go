package v1

import (
	"encoding/json"

	"github.com/tileplay/carcassonne/internal/model"
)

type PushType string

const (
	PushPlayerJoined PushType = "player_joined"
	PushBoardUpdate  PushType = "board_update"
	PushGameStarted  PushType = "game_started"
	PushError        PushType = "error"
	PushGameScored   PushType = "game_scored"
	PushGameFinished PushType = "game_finished"
	PushTurnSkipped  PushType = "turn_skipped"
)

// Push is one outbound message fanned out on a game topic. The set of
// implementations is closed to this package.
type Push interface {
	Type() PushType
	Game() string
	push()
}

// Header is shared by every push. Version orders pushes of one game.
type Header struct {
	GameID  string `json:"gameId"`
	Version uint64 `json:"version"`
}

func (h Header) Game() string { return h.GameID }
func (Header) push()          {}

type PlayerJoined struct {
	Header
	Player        model.Player   `json:"player"`
	Players       []model.Player `json:"players"`
	CurrentPlayer *model.Player  `json:"currentPlayer"`
}

type BoardUpdate struct {
	Header
	Tile       model.Tile   `json:"tile"`
	Player     model.Player `json:"player"`
	NextPlayer model.Player `json:"nextPlayer"`
}

type GameStarted struct {
	Header
	Phase         model.Phase   `json:"phase"`
	CurrentPlayer *model.Player `json:"currentPlayer"`
}

type Error struct {
	Header
	Code    string `json:"code"`
	Message string `json:"message"`
}

type GameScored struct {
	Header
	Scores []model.Score `json:"scores"`
}

type GameFinished struct {
	Header
	Scores []model.Score `json:"scores"`
}

type TurnSkipped struct {
	Header
	Player     model.Player `json:"player"`
	NextPlayer model.Player `json:"nextPlayer"`
}

func (PlayerJoined) Type() PushType { return PushPlayerJoined }
func (BoardUpdate) Type() PushType  { return PushBoardUpdate }
func (GameStarted) Type() PushType  { return PushGameStarted }
func (Error) Type() PushType        { return PushError }
func (GameScored) Type() PushType   { return PushGameScored }
func (GameFinished) Type() PushType { return PushGameFinished }
func (TurnSkipped) Type() PushType  { return PushTurnSkipped }

func (p PlayerJoined) MarshalJSON() ([]byte, error) {
	type alias PlayerJoined
	return json.Marshal(struct {
		Type PushType `json:"type"`
		alias
	}{p.Type(), alias(p)})
}

func (p BoardUpdate) MarshalJSON() ([]byte, error) {
	type alias BoardUpdate
	return json.Marshal(struct {
		Type PushType `json:"type"`
		alias
	}{p.Type(), alias(p)})
}

func (p GameStarted) MarshalJSON() ([]byte, error) {
	type alias GameStarted
	return json.Marshal(struct {
		Type PushType `json:"type"`
		alias
	}{p.Type(), alias(p)})
}

func (p Error) MarshalJSON() ([]byte, error) {
	type alias Error
	return json.Marshal(struct {
		Type PushType `json:"type"`
		alias
	}{p.Type(), alias(p)})
}

func (p GameScored) MarshalJSON() ([]byte, error) {
	type alias GameScored
	return json.Marshal(struct {
		Type PushType `json:"type"`
		alias
	}{p.Type(), alias(p)})
}

func (p GameFinished) MarshalJSON() ([]byte, error) {
	type alias GameFinished
	return json.Marshal(struct {
		Type PushType `json:"type"`
		alias
	}{p.Type(), alias(p)})
}

func (p TurnSkipped) MarshalJSON() ([]byte, error) {
	type alias TurnSkipped
	return json.Marshal(struct {
		Type PushType `json:"type"`
		alias
	}{p.Type(), alias(p)})
}
