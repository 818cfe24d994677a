package model

// Phase is the coarse stage of a game. The label set is open; the linear
// order below is the only one sessions follow.
type Phase string

const (
	PhaseLobby         Phase = "LOBBY"
	PhaseTilePlacement Phase = "TILE_PLACEMENT"
	PhaseScoring       Phase = "SCORING"
	PhaseFinished      Phase = "FINISHED"
)

var phaseNext = map[Phase]Phase{
	PhaseLobby:         PhaseTilePlacement,
	PhaseTilePlacement: PhaseScoring,
	PhaseScoring:       PhaseFinished,
}

func (p Phase) String() string { return string(p) }

// Next returns the phase that follows p, false for terminal or unknown phases.
func (p Phase) Next() (Phase, bool) {
	n, ok := phaseNext[p]
	return n, ok
}
