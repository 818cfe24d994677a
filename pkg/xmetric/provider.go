package xmetric

import (
	"context"
	"sort"

	"github.com/go-kratos/kratos/v2/middleware/metrics"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

const (
	ServerSeconds  = "server_requests_seconds_bucket"
	ServerRequests = "server_requests_code_total"
)

// Provider is the process meter provider. Readings are pulled on demand
// through Collect.
type Provider struct {
	*sdkmetric.MeterProvider
	reader *sdkmetric.ManualReader
}

func NewProvider(service, version string) *Provider {
	reader := sdkmetric.NewManualReader()
	res := resource.NewSchemaless(
		attribute.String("service.name", service),
		attribute.String("service.version", version),
	)
	return &Provider{
		MeterProvider: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(reader),
			sdkmetric.WithResource(res),
			sdkmetric.WithView(metrics.DefaultSecondsHistogramView(ServerSeconds)),
		),
		reader: reader,
	}
}

// Point is one flattened reading. Counters and gauges fill Value,
// histograms fill Count and Sum.
type Point struct {
	Name  string            `json:"name"`
	Attrs map[string]string `json:"attrs,omitempty"`
	Value float64           `json:"value"`
	Count uint64            `json:"count,omitempty"`
	Sum   float64           `json:"sum,omitempty"`
}

// Collect reads every instrument once, sorted by name.
func (p *Provider) Collect(ctx context.Context) ([]Point, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}

	var out []Point
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch d := m.Data.(type) {
			case metricdata.Sum[int64]:
				out = appendValues(out, m.Name, d.DataPoints)
			case metricdata.Sum[float64]:
				out = appendValues(out, m.Name, d.DataPoints)
			case metricdata.Gauge[int64]:
				out = appendValues(out, m.Name, d.DataPoints)
			case metricdata.Gauge[float64]:
				out = appendValues(out, m.Name, d.DataPoints)
			case metricdata.Histogram[int64]:
				out = appendHistograms(out, m.Name, d.DataPoints)
			case metricdata.Histogram[float64]:
				out = appendHistograms(out, m.Name, d.DataPoints)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func appendValues[N int64 | float64](out []Point, name string, dps []metricdata.DataPoint[N]) []Point {
	for _, dp := range dps {
		out = append(out, Point{Name: name, Attrs: attrs(dp.Attributes), Value: float64(dp.Value)})
	}
	return out
}

func appendHistograms[N int64 | float64](out []Point, name string, dps []metricdata.HistogramDataPoint[N]) []Point {
	for _, dp := range dps {
		out = append(out, Point{
			Name:  name,
			Attrs: attrs(dp.Attributes),
			Value: float64(dp.Count),
			Count: dp.Count,
			Sum:   float64(dp.Sum),
		})
	}
	return out
}

func attrs(set attribute.Set) map[string]string {
	if set.Len() == 0 {
		return nil
	}
	m := make(map[string]string, set.Len())
	for _, kv := range set.ToSlice() {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}
