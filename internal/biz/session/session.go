package session

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/samber/lo"

	"github.com/tileplay/carcassonne/internal/model"
)

// Session is the authoritative state of one game. All fields below mu are
// read and written only while holding it.
type Session struct {
	Code string
	repo Repo

	mu         sync.Mutex
	phase      model.Phase
	players    []model.Player
	board      *model.Board
	current    int
	version    uint64
	scores     []model.Score
	createdAt  time.Time
	finishedAt time.Time
	turnTimer  int64
	journal    *journal
	jopened    bool
	closed     bool
}

func New(code string, repo Repo) *Session {
	s := &Session{
		Code:      code,
		repo:      repo,
		phase:     model.PhaseLobby,
		board:     model.NewBoard(),
		createdAt: time.Now(),
	}
	log.Infof("session created. game:%s", code)
	return s
}

func (s *Session) desc() string {
	return fmt.Sprintf("(G:%s Phase:%s Players:%d Current:%d Board:%d V:%d)",
		s.Code, s.phase, len(s.players), s.current, s.board.Len(), s.version)
}

func (s *Session) Phase() model.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// FinishedAt reports when the session reached FINISHED.
func (s *Session) FinishedAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedAt, s.phase == model.PhaseFinished
}

// CurrentPlayer returns the player whose turn it is, false while nobody has
// joined.
func (s *Session) CurrentPlayer() (model.Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPlayer()
}

func (s *Session) currentPlayer() (model.Player, bool) {
	if len(s.players) == 0 {
		return model.Player{}, false
	}
	return s.players[s.current], true
}

func (s *Session) currentPlayerRef() *model.Player {
	if p, ok := s.currentPlayer(); ok {
		return &p
	}
	return nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		GameID:        s.Code,
		Phase:         s.phase,
		Players:       slices.Clone(s.players),
		CurrentPlayer: s.currentPlayerRef(),
		Board:         s.board.Tiles(),
		Scores:        slices.Clone(s.scores),
		Version:       s.version,
		CreatedAt:     s.createdAt,
	}
	if !s.finishedAt.IsZero() {
		snap.FinishedAt = lo.ToPtr(s.finishedAt)
	}
	return snap
}

// Close stops the turn timer and releases the journal. A closed session
// rejects nothing but arms no further timers.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.cancelTurnTimer()
	s.journal.close()
	log.Infof("session closed. %s", s.desc())
}

// record returns the journal, opening it on first use. Must hold s.mu.
func (s *Session) record() *journal {
	if s.closed {
		return nil
	}
	if !s.jopened {
		s.jopened = true
		s.journal = openJournal(s.Code, s.repo.JournalConfig())
		s.journal.created()
	}
	return s.journal
}

func (s *Session) indexOf(p model.Player) int {
	return slices.IndexFunc(s.players, p.Same)
}
