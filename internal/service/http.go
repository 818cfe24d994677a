package service

import (
	"context"
	"net/http"

	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/gorilla/mux"

	"github.com/tileplay/carcassonne/internal/biz"
)

const (
	OperationHealthz    = "/carcassonne.v1.Game/Healthz"
	OperationCreateGame = "/carcassonne.v1.Game/CreateGame"
	OperationGetGame    = "/carcassonne.v1.Game/GetGame"
)

// RegisterHTTP mounts the game endpoints on srv.
func (s *Service) RegisterHTTP(srv *khttp.Server) {
	r := srv.Route("/")
	r.GET("/healthz", s.Healthz)
	r.POST("/v1/games", s.CreateGame)
	r.GET("/v1/games/{code}", s.GetGame)
}

// serve runs fn through the server middleware chain under op.
func serve(ctx khttp.Context, op string, status int, fn func(ctx context.Context) (any, error)) error {
	khttp.SetOperation(ctx, op)
	h := ctx.Middleware(func(ctx context.Context, _ any) (any, error) {
		return fn(ctx)
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.JSON(status, out)
}

type health struct {
	Status string `json:"status"`
	biz.Stats
}

func (s *Service) Healthz(ctx khttp.Context) error {
	return serve(ctx, OperationHealthz, http.StatusOK, func(context.Context) (any, error) {
		return health{Status: "ok", Stats: s.uc.Stats()}, nil
	})
}

// GetGame returns the snapshot of a game, or 404 UNKNOWN_GAME.
func (s *Service) GetGame(ctx khttp.Context) error {
	code := mux.Vars(ctx.Request())["code"]
	return serve(ctx, OperationGetGame, http.StatusOK, func(c context.Context) (any, error) {
		return s.uc.Snapshot(c, code)
	})
}

// CreateGame opens an empty lobby under a generated code.
func (s *Service) CreateGame(ctx khttp.Context) error {
	return serve(ctx, OperationCreateGame, http.StatusCreated, func(c context.Context) (any, error) {
		snap, err := s.uc.CreateGame(c)
		if err != nil {
			s.log.Errorf("create game failed: %v", err)
		}
		return snap, err
	})
}
