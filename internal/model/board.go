package model

import (
	"sort"
)

// Board maps positions to placed tiles. Entries are written once and never
// removed.
type Board struct {
	tiles  map[Position]Tile
	owners map[Position]string
	order  []Position
}

func NewBoard() *Board {
	return &Board{tiles: make(map[Position]Tile), owners: make(map[Position]string)}
}

func (b *Board) Len() int { return len(b.tiles) }

func (b *Board) At(p Position) (Tile, bool) {
	t, ok := b.tiles[p]
	return t, ok
}

func (b *Board) Occupied(p Position) bool {
	_, ok := b.tiles[p]
	return ok
}

// Put records t at its position on behalf of playerID. It reports false
// when the position is already taken.
func (b *Board) Put(t Tile, playerID string) bool {
	if t.Position == nil || b.Occupied(*t.Position) {
		return false
	}
	b.tiles[*t.Position] = t
	b.owners[*t.Position] = playerID
	b.order = append(b.order, *t.Position)
	return true
}

// Owner returns the id of the player who placed the tile at p.
func (b *Board) Owner(p Position) string { return b.owners[p] }

// Tiles returns the placed tiles in placement order.
func (b *Board) Tiles() []Tile {
	out := make([]Tile, 0, len(b.order))
	for _, p := range b.order {
		out = append(out, b.tiles[p])
	}
	return out
}

// Positions returns occupied positions sorted by x then y.
func (b *Board) Positions() []Position {
	out := make([]Position, 0, len(b.tiles))
	for p := range b.tiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Y < out[j].Y
	})
	return out
}
