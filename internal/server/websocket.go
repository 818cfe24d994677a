package server

import (
	"github.com/go-kratos/kratos/v2/log"

	"github.com/tileplay/carcassonne/internal/conf"
	"github.com/tileplay/carcassonne/internal/service"
	"github.com/tileplay/carcassonne/transport/websocket"
)

// NewWebsocketServer new a Websocket server.
func NewWebsocketServer(c *conf.Server, svc *service.Service, logger log.Logger) *websocket.Server {
	ws := c.Websocket
	var opts = []websocket.ServerOption{
		websocket.Address(ws.Addr),
		websocket.Path(ws.Path),
		websocket.SentChanSize(ws.SendBuffer),
		websocket.ReadLimit(ws.ReadLimit),
		websocket.Heartbeat(2*ws.PingInterval.Std(), ws.PingInterval.Std(), ws.WriteTimeout.Std()),
	}
	if ws.RateLimit > 0 {
		opts = append(opts, websocket.RateLimit(ws.RateLimit, ws.RateBurst))
	}
	if ws.JwtSecret != "" {
		opts = append(opts, websocket.Auth(websocket.JWTAuthenticator([]byte(ws.JwtSecret))))
	} else {
		log.NewHelper(logger).Warn("websocket: jwt_secret is empty, player identity is not verified")
	}
	srv := websocket.NewServer(opts...)
	srv.Register(svc)
	return srv
}
