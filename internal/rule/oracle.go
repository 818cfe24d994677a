package rule

import (
	"github.com/samber/lo"

	"github.com/tileplay/carcassonne/internal/model"
)

// Oracle answers placement legality, turn order and scoring. Implementations
// hold no mutable state; sessions call them under their own lock.
type Oracle interface {
	IsLegalPlacement(board *model.Board, tile model.Tile, at model.Position) bool
	NextTurn(players []model.Player, current int) int
	Score(board *model.Board, players []model.Player) []model.Score
}

var _ Oracle = (*Classic)(nil)

// Classic is the edge-matching rule set: the first tile goes anywhere, every
// later tile must touch an existing tile orthogonally and agree with every
// neighbour on the shared edge.
type Classic struct{}

func NewClassic() *Classic { return &Classic{} }

func (Classic) IsLegalPlacement(board *model.Board, tile model.Tile, at model.Position) bool {
	if !tile.ValidRotation() || board.Occupied(at) {
		return false
	}
	if board.Len() == 0 {
		return true
	}

	adjacent := false
	for _, side := range []model.Side{model.North, model.East, model.South, model.West} {
		neighbour, ok := board.At(at.Neighbour(side))
		if !ok {
			continue
		}
		adjacent = true
		if tile.Edge(side) != neighbour.Edge(side.Opposite()) {
			return false
		}
	}
	return adjacent
}

func (Classic) NextTurn(players []model.Player, current int) int {
	if len(players) == 0 {
		return 0
	}
	return (current + 1) % len(players)
}

// Score awards one point per placed tile, in roster order.
func (Classic) Score(board *model.Board, players []model.Player) []model.Score {
	counts := lo.CountValuesBy(board.Positions(), board.Owner)
	return lo.Map(players, func(p model.Player, _ int) model.Score {
		return model.Score{Player: p, Points: counts[p.ID]}
	})
}
