//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"

	"github.com/tileplay/carcassonne/internal/biz"
	"github.com/tileplay/carcassonne/internal/conf"
	"github.com/tileplay/carcassonne/internal/data"
	"github.com/tileplay/carcassonne/internal/server"
	"github.com/tileplay/carcassonne/internal/service"
)

// wireApp init kratos application.
func wireApp(*conf.Server, *conf.Data, *conf.Room, *conf.GameSettings, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(server.ProviderSet, data.ProviderSet, biz.ProviderSet, service.ProviderSet, newApp))
}
