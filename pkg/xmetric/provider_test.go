package xmetric

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func TestProvider_Collect(t *testing.T) {
	p := NewProvider("carcassonne", "test")
	defer func() { _ = p.Shutdown(context.Background()) }()

	meter := p.Meter("test")
	counter, err := meter.Int64Counter("game.actions")
	require.NoError(t, err)
	hist, err := meter.Float64Histogram("game.action.duration")
	require.NoError(t, err)

	ctx := context.Background()
	counter.Add(ctx, 2, metric.WithAttributes(attribute.String("action", "join_game")))
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("action", "start_game")))
	hist.Record(ctx, 0.5)
	hist.Record(ctx, 1.5)

	points, err := p.Collect(ctx)
	require.NoError(t, err)
	require.Len(t, points, 3)

	byAction := map[string]float64{}
	for _, pt := range points[1:] {
		assert.Equal(t, "game.actions", pt.Name)
		byAction[pt.Attrs["action"]] = pt.Value
	}
	assert.Equal(t, map[string]float64{"join_game": 2, "start_game": 1}, byAction)

	assert.Equal(t, "game.action.duration", points[0].Name)
	assert.EqualValues(t, 2, points[0].Count)
	assert.InDelta(t, 2.0, points[0].Sum, 1e-9)
}

func TestProvider_CollectEmpty(t *testing.T) {
	p := NewProvider("carcassonne", "test")
	points, err := p.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, points)

	require.NoError(t, p.Shutdown(context.Background()))
	_, err = p.Collect(context.Background())
	assert.Error(t, err)
}
