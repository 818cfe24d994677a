package session

import (
	"github.com/go-kratos/kratos/v2/log"

	v1 "github.com/tileplay/carcassonne/api/game/v1"
	"github.com/tileplay/carcassonne/internal/model"
)

// armTurnTimer replaces the pending turn timer. The fired task only acts if
// the session is still at the version it was armed for. Caller holds mu.
func (s *Session) armTurnTimer() {
	s.cancelTurnTimer()

	timeout := s.repo.GameConfig().TurnTimeout.Std()
	if timeout <= 0 || s.closed {
		return
	}
	version := s.version
	s.turnTimer = s.repo.GetTimer().Once(timeout, func() {
		s.onTurnTimeout(version)
	})
}

func (s *Session) cancelTurnTimer() {
	if s.turnTimer > 0 {
		s.repo.GetTimer().Cancel(s.turnTimer)
	}
	s.turnTimer = 0
}

func (s *Session) onTurnTimeout(version uint64) {
	push, ok := s.skipTurn(version)
	if ok {
		s.repo.Broadcast(push)
	}
}

func (s *Session) skipTurn(version uint64) (v1.TurnSkipped, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.version != version || s.phase != model.PhaseTilePlacement || len(s.players) == 0 {
		return v1.TurnSkipped{}, false
	}
	s.turnTimer = 0

	stalled, _ := s.currentPlayer()
	s.advance()
	next, _ := s.currentPlayer()
	s.record().skip(stalled, next)
	log.Warnf("turn skipped. p:%s next:%s %s", stalled.ID, next.ID, s.desc())

	return v1.TurnSkipped{
		Header:     s.header(),
		Player:     stalled,
		NextPlayer: next,
	}, true
}
