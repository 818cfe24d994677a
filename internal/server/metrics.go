package server

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/metrics"
	"github.com/go-kratos/kratos/v2/transport/http"
	"go.opentelemetry.io/otel"

	"github.com/tileplay/carcassonne/internal/conf"
	"github.com/tileplay/carcassonne/pkg/xmetric"
)

const meterName = "github.com/tileplay/carcassonne/internal/server"

// NewMeterProvider installs the process meter provider as the otel global.
func NewMeterProvider(logger log.Logger) (*xmetric.Provider, func()) {
	mp := xmetric.NewProvider(conf.Name, conf.Version)
	otel.SetMeterProvider(mp)
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := mp.Shutdown(ctx); err != nil {
			log.NewHelper(logger).Warnf("meter provider shutdown: %v", err)
		}
	}
	return mp, cleanup
}

// serverMetrics records request counts and latency, or nothing when the
// instruments cannot be created.
func serverMetrics(mp *xmetric.Provider, logger log.Logger) middleware.Middleware {
	meter := mp.Meter(meterName)
	requests, err := metrics.DefaultRequestsCounter(meter, xmetric.ServerRequests)
	if err != nil {
		log.NewHelper(logger).Warnf("server metrics disabled: %v", err)
		return passThrough
	}
	seconds, err := metrics.DefaultSecondsHistogram(meter, xmetric.ServerSeconds)
	if err != nil {
		log.NewHelper(logger).Warnf("server metrics disabled: %v", err)
		return passThrough
	}
	return metrics.Server(metrics.WithRequests(requests), metrics.WithSeconds(seconds))
}

func passThrough(h middleware.Handler) middleware.Handler {
	return h
}

// registerMetrics serves the current readings as JSON.
func registerMetrics(srv *http.Server, mp *xmetric.Provider) {
	srv.Route("/").GET("/metrics", func(ctx http.Context) error {
		points, err := mp.Collect(ctx)
		if err != nil {
			return err
		}
		return ctx.JSON(nethttp.StatusOK, points)
	})
}
