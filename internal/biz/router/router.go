package router

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	v1 "github.com/tileplay/carcassonne/api/game/v1"
	"github.com/tileplay/carcassonne/internal/biz/registry"
	"github.com/tileplay/carcassonne/library/xgo"
	"github.com/tileplay/carcassonne/pkg/codes"
)

const meterName = "github.com/tileplay/carcassonne/internal/biz/router"

// Broadcaster fans a push out to every subscriber of push.Game().
type Broadcaster interface {
	Broadcast(push v1.Push)
}

type handler func(env *v1.Envelope) (v1.Push, error)

type Option func(*Router)

// WithMeter replaces the global otel meter.
func WithMeter(m metric.Meter) Option {
	return func(r *Router) { r.meter = m }
}

// Router turns one inbound envelope into exactly one push.
type Router struct {
	reg      *registry.Registry
	bc       Broadcaster
	handlers map[v1.ActionType]handler

	meter   metric.Meter
	actions metric.Int64Counter
	latency metric.Float64Histogram
}

func New(reg *registry.Registry, bc Broadcaster, opts ...Option) *Router {
	r := &Router{
		reg:   reg,
		bc:    bc,
		meter: otel.Meter(meterName),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.handlers = map[v1.ActionType]handler{
		v1.ActionJoinGame:   r.onJoin,
		v1.ActionStartGame:  r.onStart,
		v1.ActionPlaceTile:  r.onPlaceTile,
		v1.ActionEndGame:    r.onEnd,
		v1.ActionFinishGame: r.onFinish,
	}

	var err error
	if r.actions, err = r.meter.Int64Counter("game.actions",
		metric.WithDescription("Inbound game actions by type and outcome"),
		metric.WithUnit("{action}"),
	); err != nil {
		log.Warnf("router: action counter disabled: %v", err)
	}
	if r.latency, err = r.meter.Float64Histogram("game.action.duration",
		metric.WithDescription("Time spent applying one game action"),
		metric.WithUnit("ms"),
	); err != nil {
		log.Warnf("router: latency histogram disabled: %v", err)
	}
	return r
}

// Handle applies env and returns the resulting push. Pushes for a game are
// broadcast on its topic; a push with an empty Game() was not broadcast and
// belongs to the sender alone.
func (r *Router) Handle(ctx context.Context, env *v1.Envelope) v1.Push {
	start := time.Now()
	if env == nil {
		return r.errorPush("", codes.ErrMalformedAction)
	}

	var push v1.Push
	err := xgo.SafeRun(func() error {
		var err error
		push, err = r.dispatch(env)
		return err
	})
	if err != nil {
		push = r.errorPush(env.GameID, err)
		log.Debugf("action rejected. type:%s game:%s err:%v", env.Type, env.GameID, err)
	}

	r.record(ctx, env.Type, push, time.Since(start))
	if push.Game() != "" {
		r.bc.Broadcast(push)
	}
	return push
}

func (r *Router) dispatch(env *v1.Envelope) (v1.Push, error) {
	if env.GameID == "" {
		return nil, codes.ErrMalformedAction
	}
	h, ok := r.handlers[env.Type]
	if !ok {
		return nil, codes.ErrUnsupportedAction
	}
	return h(env)
}

func (r *Router) onJoin(env *v1.Envelope) (v1.Push, error) {
	if env.Player == nil || !env.Player.Valid() {
		return nil, codes.ErrMalformedAction
	}
	return r.reg.GetOrCreate(env.GameID).Join(*env.Player)
}

func (r *Router) onStart(env *v1.Envelope) (v1.Push, error) {
	s, ok := r.reg.Get(env.GameID)
	if !ok {
		return nil, codes.ErrUnknownGame
	}
	return s.Start()
}

func (r *Router) onPlaceTile(env *v1.Envelope) (v1.Push, error) {
	if env.Player == nil || !env.Player.Valid() || env.Tile == nil || env.Tile.Position == nil {
		return nil, codes.ErrMalformedAction.WithMetadata(map[string]string{"detail": "invalid tile placement data"})
	}
	s, ok := r.reg.Get(env.GameID)
	if !ok {
		return nil, codes.ErrUnknownGame
	}
	return s.PlaceTile(*env.Player, *env.Tile)
}

func (r *Router) onEnd(env *v1.Envelope) (v1.Push, error) {
	s, ok := r.reg.Get(env.GameID)
	if !ok {
		return nil, codes.ErrUnknownGame
	}
	return s.End()
}

func (r *Router) onFinish(env *v1.Envelope) (v1.Push, error) {
	s, ok := r.reg.Get(env.GameID)
	if !ok {
		return nil, codes.ErrUnknownGame
	}
	return s.Finish()
}

// errorPush names the reason without internal detail. Errors that are not
// one of ours become a generic internal error.
func (r *Router) errorPush(gameID string, err error) v1.Error {
	e := errors.FromError(err)
	if e == nil || e.Reason == "" {
		log.Errorf("action failed. game:%s err:%v", gameID, err)
		e = codes.ErrInternal
	}
	push := v1.Error{
		Header:  v1.Header{GameID: gameID},
		Code:    e.Reason,
		Message: e.Message,
	}
	if gameID != "" {
		if s, ok := r.reg.Get(gameID); ok {
			push.Version = s.Version()
		}
	}
	return push
}

func (r *Router) record(ctx context.Context, action v1.ActionType, push v1.Push, d time.Duration) {
	outcome := "OK"
	if e, ok := push.(v1.Error); ok {
		outcome = e.Code
	}
	attrs := metric.WithAttributes(
		attribute.String("action", string(action)),
		attribute.String("outcome", outcome),
	)
	if r.actions != nil {
		r.actions.Add(ctx, 1, attrs)
	}
	if r.latency != nil {
		r.latency.Record(ctx, float64(d.Microseconds())/1000, attrs)
	}
}
