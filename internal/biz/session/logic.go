package session

import (
	"slices"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	v1 "github.com/tileplay/carcassonne/api/game/v1"
	"github.com/tileplay/carcassonne/internal/model"
	"github.com/tileplay/carcassonne/pkg/codes"
)

func (s *Session) header() v1.Header {
	return v1.Header{GameID: s.Code, Version: s.version}
}

// Join adds p to the roster while in the lobby. A repeat join by a member
// changes nothing in any phase; a new identity outside the lobby is refused.
func (s *Session) Join(p model.Player) (v1.PlayerJoined, error) {
	if !p.Valid() {
		return v1.PlayerJoined{}, codes.ErrMalformedAction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(p) < 0 {
		if s.phase != model.PhaseLobby {
			return v1.PlayerJoined{}, codes.ErrInvalidPhase
		}
		s.players = append(s.players, p)
		s.version++
		s.record().join(p, len(s.players))
		log.Infof("player joined. p:%s %s", p.ID, s.desc())
	}

	return v1.PlayerJoined{
		Header:        s.header(),
		Player:        p,
		Players:       slices.Clone(s.players),
		CurrentPlayer: s.currentPlayerRef(),
	}, nil
}

// Start moves the lobby into tile placement.
func (s *Session) Start() (v1.GameStarted, error) {
	push, err := s.start()
	if err == nil {
		s.repo.MirrorPhase(s.Code, model.PhaseTilePlacement)
	}
	return push, err
}

func (s *Session) start() (v1.GameStarted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != model.PhaseLobby {
		return v1.GameStarted{}, codes.ErrInvalidPhase
	}
	if len(s.players) < s.repo.GameConfig().MinPlayers {
		return v1.GameStarted{}, codes.ErrNotEnoughPlayers
	}

	s.phase = model.PhaseTilePlacement
	s.current = 0
	s.version++
	s.armTurnTimer()
	s.record().phase(s.phase)
	log.Infof("game started. %s", s.desc())

	return v1.GameStarted{
		Header:        s.header(),
		Phase:         s.phase,
		CurrentPlayer: s.currentPlayerRef(),
	}, nil
}

// PlaceTile records tile for p when it is p's turn and the oracle accepts
// the placement. It is the only writer of the board.
func (s *Session) PlaceTile(p model.Player, tile model.Tile) (v1.BoardUpdate, error) {
	if tile.Position == nil || !p.Valid() {
		return v1.BoardUpdate{}, codes.ErrMalformedAction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != model.PhaseTilePlacement {
		return v1.BoardUpdate{}, codes.ErrInvalidPhase
	}
	actor, _ := s.currentPlayer()
	if !actor.Same(p) {
		return v1.BoardUpdate{}, codes.ErrNotYourTurn
	}

	at := *tile.Position
	if s.board.Occupied(at) || !s.repo.Oracle().IsLegalPlacement(s.board, tile, at) {
		s.record().rejected(actor, tile)
		return v1.BoardUpdate{}, codes.ErrIllegalPlacement
	}

	tile.Position = &at
	s.board.Put(tile, actor.ID)
	s.advance()
	s.record().place(actor, tile, s.board.Len())

	next, _ := s.currentPlayer()
	log.Debugf("tile placed. p:%s at:%s next:%s %s", actor.ID, at, next.ID, s.desc())

	return v1.BoardUpdate{
		Header:     s.header(),
		Tile:       tile,
		Player:     actor,
		NextPlayer: next,
	}, nil
}

// End closes tile placement and computes scores.
func (s *Session) End() (v1.GameScored, error) {
	push, err := s.end()
	if err == nil {
		s.repo.MirrorPhase(s.Code, model.PhaseScoring)
	}
	return push, err
}

func (s *Session) end() (v1.GameScored, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != model.PhaseTilePlacement {
		return v1.GameScored{}, codes.ErrInvalidPhase
	}
	s.cancelTurnTimer()
	s.phase = model.PhaseScoring
	s.scores = s.repo.Oracle().Score(s.board, s.players)
	s.version++
	s.record().phase(s.phase)
	s.record().scores(s.scores)
	log.Infof("game scored. %s", s.desc())

	return v1.GameScored{
		Header: s.header(),
		Scores: slices.Clone(s.scores),
	}, nil
}

// Finish makes the session terminal.
func (s *Session) Finish() (v1.GameFinished, error) {
	push, err := s.finish()
	if err == nil {
		s.repo.MirrorPhase(s.Code, model.PhaseFinished)
	}
	return push, err
}

func (s *Session) finish() (v1.GameFinished, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != model.PhaseScoring {
		return v1.GameFinished{}, codes.ErrInvalidPhase
	}
	s.phase = model.PhaseFinished
	s.finishedAt = time.Now()
	s.version++
	s.record().phase(s.phase)
	log.Infof("game finished. %s", s.desc())

	return v1.GameFinished{
		Header: s.header(),
		Scores: slices.Clone(s.scores),
	}, nil
}

// advance passes the turn and re-arms the turn timer. Caller holds mu.
func (s *Session) advance() {
	next := s.repo.Oracle().NextTurn(s.players, s.current)
	if next < 0 || next >= len(s.players) {
		log.Errorf("oracle returned turn %d out of range, falling back to round robin. %s", next, s.desc())
		next = (s.current + 1) % len(s.players)
	}
	s.current = next
	s.version++
	s.armTurnTimer()
}
