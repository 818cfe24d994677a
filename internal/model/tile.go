package model

import "fmt"

// Edge is the terrain on one side of a tile.
type Edge string

const (
	EdgeField Edge = "field"
	EdgeRoad  Edge = "road"
	EdgeCity  Edge = "city"
)

// Side indexes TileDefinition.Edges clockwise from north.
type Side int

const (
	North Side = iota
	East
	South
	West
)

// Opposite returns the side facing s on a neighbouring tile.
func (s Side) Opposite() Side { return (s + 2) % 4 }

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Neighbour returns the adjacent position on side s. North is y+1.
func (p Position) Neighbour(s Side) Position {
	switch s {
	case North:
		return Position{X: p.X, Y: p.Y + 1}
	case East:
		return Position{X: p.X + 1, Y: p.Y}
	case South:
		return Position{X: p.X, Y: p.Y - 1}
	default:
		return Position{X: p.X - 1, Y: p.Y}
	}
}

// TileDefinition is the printed face of a tile before rotation.
type TileDefinition struct {
	Kind  string  `json:"kind"`
	Edges [4]Edge `json:"edges"`
}

// Tile is a definition placed at a position with a clockwise rotation in
// degrees. A tile is never mutated once on the board.
type Tile struct {
	Definition TileDefinition `json:"definition"`
	Position   *Position      `json:"position,omitempty"`
	Rotation   int            `json:"rotation"`
}

func (t Tile) ValidRotation() bool {
	switch t.Rotation {
	case 0, 90, 180, 270:
		return true
	}
	return false
}

// Edge returns the terrain facing side s after rotation.
func (t Tile) Edge(s Side) Edge {
	steps := t.Rotation / 90
	return t.Definition.Edges[((int(s)-steps)%4+4)%4]
}
