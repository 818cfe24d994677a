package server

import (
	"github.com/google/wire"
	"go.opentelemetry.io/otel/metric"

	"github.com/tileplay/carcassonne/pkg/xmetric"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(
	NewWebsocketServer,
	NewHTTPServer,
	NewMeterProvider,
	wire.Bind(new(metric.MeterProvider), new(*xmetric.Provider)),
)
