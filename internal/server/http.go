package server

import (
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/tileplay/carcassonne/internal/conf"
	"github.com/tileplay/carcassonne/internal/service"
	"github.com/tileplay/carcassonne/pkg/xmetric"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Server, svc *service.Service, mp *xmetric.Provider, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			serverMetrics(mp, logger),
			logging.Server(logger),
		),
		http.Address(c.Http.Addr),
		http.Timeout(c.Http.Timeout.Std()),
	}
	srv := http.NewServer(opts...)
	svc.RegisterHTTP(srv)
	registerMetrics(srv, mp)
	return srv
}
