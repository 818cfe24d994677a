package main

import (
	"flag"
	"os"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/tileplay/carcassonne/internal/conf"
	"github.com/tileplay/carcassonne/library/log/zap"
	"github.com/tileplay/carcassonne/transport/websocket"
)

var (
	Name     = conf.Name
	Version  = conf.Version
	flagconf string // -conf path
	id, _    = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs", "config path, e.g. -conf config.yaml")
}

func newApp(logger log.Logger, hs *http.Server, ws *websocket.Server) *kratos.App {
	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(
			hs,
			ws,
		),
	)
}

func main() {
	flag.Parse()

	c, bc, lc, err := conf.LoadConfig(flagconf)
	if err != nil {
		panic(err)
	}
	defer c.Close()

	logger := zap.NewLogger(lc)
	log.SetLogger(logger)
	defer logger.Close()

	game := conf.NewGameSettings(bc.Room)
	if err := conf.WatchConfig(c, game, lc, logger); err != nil {
		panic(err)
	}

	app, cleanup, err := wireApp(bc.Server, bc.Data, bc.Room, game, logger)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// start and wait for stop signal
	if err := app.Run(); err != nil {
		panic(err)
	}
}
