package session

import (
	"time"

	v1 "github.com/tileplay/carcassonne/api/game/v1"
	"github.com/tileplay/carcassonne/internal/conf"
	"github.com/tileplay/carcassonne/internal/model"
	"github.com/tileplay/carcassonne/internal/rule"
	"github.com/tileplay/carcassonne/library/work"
)

// Repo is what a session needs from its owner. Every method must return
// quickly: sessions call them while holding their lock, except MirrorPhase
// and Broadcast which are called after it is released.
type Repo interface {
	Oracle() rule.Oracle
	GameConfig() *conf.Game
	JournalConfig() *conf.Journal
	GetTimer() work.Scheduler

	// MirrorPhase hands a phase transition to durable storage. Failures
	// stay with the implementation.
	MirrorPhase(code string, phase model.Phase)
	// Broadcast enqueues a push for every subscriber of the game.
	Broadcast(push v1.Push)
}

// Snapshot is the public view of a session at one version.
type Snapshot struct {
	GameID        string         `json:"gameId"`
	Phase         model.Phase    `json:"phase"`
	Players       []model.Player `json:"players"`
	CurrentPlayer *model.Player  `json:"currentPlayer"`
	Board         []model.Tile   `json:"board"`
	Scores        []model.Score  `json:"scores,omitempty"`
	Version       uint64         `json:"version"`
	CreatedAt     time.Time      `json:"createdAt"`
	FinishedAt    *time.Time     `json:"finishedAt,omitempty"`
	// Archived marks a view rebuilt from storage after the game left memory.
	Archived bool `json:"archived,omitempty"`
}
