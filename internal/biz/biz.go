package biz

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.opentelemetry.io/otel/metric"

	v1 "github.com/tileplay/carcassonne/api/game/v1"
	"github.com/tileplay/carcassonne/internal/biz/registry"
	"github.com/tileplay/carcassonne/internal/biz/router"
	"github.com/tileplay/carcassonne/internal/biz/session"
	"github.com/tileplay/carcassonne/internal/conf"
	"github.com/tileplay/carcassonne/internal/model"
	"github.com/tileplay/carcassonne/internal/rule"
	"github.com/tileplay/carcassonne/library/work"
	"github.com/tileplay/carcassonne/pkg/codes"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewUsecase,
	rule.NewClassic,
	wire.Bind(new(rule.Oracle), new(*rule.Classic)),
)

var _ session.Repo = (*Usecase)(nil)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
	codeAttempts = 8

	meterName = "github.com/tileplay/carcassonne/internal/biz"
)

// ErrPhaseNotFound is returned by PhaseRepo.GetPhase for a code never
// mirrored.
var ErrPhaseNotFound = errors.New("game record not found")

// PhaseRepo mirrors phase transitions into durable storage.
type PhaseRepo interface {
	UpdatePhase(ctx context.Context, gameID string, phase model.Phase) error
	GetPhase(ctx context.Context, gameID string) (model.Phase, error)
}

type Broadcaster = router.Broadcaster

// Usecase owns the live games of this process.
type Usecase struct {
	repo   PhaseRepo
	bc     Broadcaster
	oracle rule.Oracle
	log    *log.Helper

	rc   *conf.Room
	dc   *conf.Data
	game *conf.GameSettings

	ctx    context.Context
	ws     work.Store
	reg    *registry.Registry
	router *router.Router
	reaper int64

	// pending mirror writes per code; a code is present while its drain
	// job is queued or running.
	mirrorMu sync.Mutex
	mirrors  map[string][]model.Phase
}

func NewUsecase(repo PhaseRepo, bc Broadcaster, oracle rule.Oracle, rc *conf.Room, dc *conf.Data,
	game *conf.GameSettings, mp metric.MeterProvider, logger log.Logger) (*Usecase, func(), error) {
	uc := &Usecase{
		repo:    repo,
		bc:      bc,
		oracle:  oracle,
		log:     log.NewHelper(logger),
		rc:      rc,
		dc:      dc,
		game:    game,
		mirrors: make(map[string][]model.Phase),
	}

	ctx, cancel := context.WithCancel(context.Background())
	uc.ctx = ctx
	uc.ws = work.NewWorkStore(ctx, rc.PoolSize)
	uc.reg = registry.New(func(code string) *session.Session {
		return session.New(code, uc)
	}, registry.WithOnCreate(func(s *session.Session) {
		uc.MirrorPhase(s.Code, model.PhaseLobby)
	}))
	uc.router = router.New(uc.reg, bc, router.WithMeter(mp.Meter(meterName)))

	if err := uc.ws.Start(); err != nil {
		cancel()
		return nil, nil, err
	}
	if retention := rc.FinishedRetention.Std(); retention > 0 {
		uc.reaper = uc.ws.Forever(rc.ReapInterval.Std(), func() {
			uc.reg.Reap(time.Now(), retention)
		})
	}

	cleanup := func() {
		uc.log.Info("closing the room resources")
		uc.ws.Cancel(uc.reaper)
		uc.reg.Close()
		cancel()
		uc.ws.Stop()
	}
	return uc, cleanup, nil
}

func (uc *Usecase) Oracle() rule.Oracle { return uc.oracle }

func (uc *Usecase) GameConfig() *conf.Game { return uc.game.Load() }

func (uc *Usecase) JournalConfig() *conf.Journal { return uc.rc.Journal }

func (uc *Usecase) GetTimer() work.Scheduler { return uc.ws }

func (uc *Usecase) Broadcast(push v1.Push) { uc.bc.Broadcast(push) }

// MirrorPhase writes the transition on the worker pool. Writes for one code
// land in call order. A failure is logged and never reaches players.
func (uc *Usecase) MirrorPhase(code string, phase model.Phase) {
	uc.mirrorMu.Lock()
	q, draining := uc.mirrors[code]
	uc.mirrors[code] = append(q, phase)
	uc.mirrorMu.Unlock()

	if !draining {
		uc.ws.Post(func() { uc.drainMirror(code) })
	}
}

func (uc *Usecase) drainMirror(code string) {
	for {
		uc.mirrorMu.Lock()
		q := uc.mirrors[code]
		if len(q) == 0 {
			delete(uc.mirrors, code)
			uc.mirrorMu.Unlock()
			return
		}
		phase := q[0]
		uc.mirrors[code] = q[1:]
		uc.mirrorMu.Unlock()

		uc.writePhase(code, phase)
	}
}

func (uc *Usecase) writePhase(code string, phase model.Phase) {
	ctx, cancel := context.WithTimeout(uc.ctx, uc.dc.MirrorTimeout.Std())
	defer cancel()
	if err := uc.repo.UpdatePhase(ctx, code, phase); err != nil {
		uc.log.Warnf("mirror phase failed. game:%s phase:%s err:%v", code, phase, err)
	}
}

// Handle routes one inbound action.
func (uc *Usecase) Handle(ctx context.Context, env *v1.Envelope) v1.Push {
	return uc.router.Handle(ctx, env)
}

// Snapshot returns the public view of a game. A game no longer held in
// memory is answered from its last mirrored phase.
func (uc *Usecase) Snapshot(ctx context.Context, code string) (session.Snapshot, error) {
	if s, ok := uc.reg.Get(code); ok {
		return s.Snapshot(), nil
	}
	phase, err := uc.repo.GetPhase(ctx, code)
	if errors.Is(err, ErrPhaseNotFound) {
		return session.Snapshot{}, codes.ErrUnknownGame
	}
	if err != nil {
		return session.Snapshot{}, err
	}
	return session.Snapshot{GameID: code, Phase: phase, Archived: true}, nil
}

// CreateGame opens a lobby under a fresh code.
func (uc *Usecase) CreateGame(ctx context.Context) (session.Snapshot, error) {
	for i := 0; i < codeAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return session.Snapshot{}, err
		}
		code, err := gonanoid.Generate(codeAlphabet, codeLength)
		if err != nil {
			return session.Snapshot{}, err
		}
		if _, taken := uc.reg.Get(code); taken {
			continue
		}
		return uc.reg.GetOrCreate(code).Snapshot(), nil
	}
	return session.Snapshot{}, errors.New("no free game code")
}

// Stats is a point-in-time view of the room.
type Stats struct {
	Games   int                 `json:"games"`
	Phases  map[model.Phase]int `json:"phases"`
	Workers work.LoopStatus     `json:"workers"`
	Timers  int                 `json:"timers"`
}

func (uc *Usecase) Stats() Stats {
	st := Stats{
		Games:   uc.reg.Len(),
		Phases:  make(map[model.Phase]int),
		Workers: uc.ws.Status(),
		Timers:  uc.ws.Len(),
	}
	uc.reg.Range(func(s *session.Session) bool {
		st.Phases[s.Phase()]++
		return true
	})
	return st
}
