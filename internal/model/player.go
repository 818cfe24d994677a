package model

// Player is an opaque identity plus display attributes. Two players are the
// same player when their ids match.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

func (p Player) Same(o Player) bool { return p.ID == o.ID }

func (p Player) Valid() bool { return p.ID != "" }

// Score is the points a player holds once the game enters scoring.
type Score struct {
	Player Player `json:"player"`
	Points int    `json:"points"`
}
