package service

import (
	"encoding/json"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"

	v1 "github.com/tileplay/carcassonne/api/game/v1"
	"github.com/tileplay/carcassonne/internal/biz"
	"github.com/tileplay/carcassonne/transport/websocket"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(
	NewService,
	NewBroadcaster,
	websocket.NewHub,
	wire.Bind(new(biz.Broadcaster), new(*Broadcaster)),
)

// Service adapts the websocket and HTTP transports to the game usecase.
type Service struct {
	uc  *biz.Usecase
	hub *websocket.Hub
	log *log.Helper
}

// NewService new a service.
func NewService(uc *biz.Usecase, hub *websocket.Hub, logger log.Logger) *Service {
	return &Service{uc: uc, hub: hub, log: log.NewHelper(logger)}
}

// Broadcaster publishes pushes on the hub topic named by the game code.
type Broadcaster struct {
	hub *websocket.Hub
}

func NewBroadcaster(hub *websocket.Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// Broadcast encodes push once and enqueues it for every subscriber.
func (b *Broadcaster) Broadcast(push v1.Push) {
	data, err := json.Marshal(push)
	if err != nil {
		log.Errorf("encode push failed. type:%s game:%s err:%v", push.Type(), push.Game(), err)
		return
	}
	n := b.hub.Publish(push.Game(), data)
	log.Debugf("broadcast. type:%s game:%s receivers:%d", push.Type(), push.Game(), n)
}
