package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Units are encoded according to the case-sensitive abbreviations from the
// Unified Code for Units of Measure: http://unitsofmeasure.org/ucum.html.
const (
	unitDimensionless = "1"
	unitMilliseconds  = "ms"
)

// LatencyMeasure returns the histogram recording span latency of pkg.
func LatencyMeasure(mp metric.MeterProvider, pkg string) metric.Float64Histogram {
	pkgMeter := mp.Meter(pkg, metric.WithInstrumentationAttributes(AttrPackageKey.String(pkg)))

	m, err := pkgMeter.Float64Histogram(
		pkg+"/latency",
		metric.WithDescription("Latency distribution of method calls"),
		metric.WithUnit(unitMilliseconds),
	)
	if err != nil {
		// The only possible errors are from invalid instrument names,
		// programming errors that tests find.
		panic(fmt.Sprintf("fullName=%q: %v", pkg, err))
	}
	return m
}

// DimensionlessMeasure creates a counter for dimensionless measurements.
func DimensionlessMeasure(mp metric.MeterProvider, pkg string, meterName string, description string) metric.Int64Counter {
	attrs := []attribute.KeyValue{
		AttrPackageKey.String(pkg),
	}

	pkgMeter := mp.Meter(pkg, metric.WithInstrumentationAttributes(attrs...))

	m, err := pkgMeter.Int64Counter(
		pkg+meterName,
		metric.WithDescription(description),
		metric.WithUnit(unitDimensionless),
	)
	if err != nil {
		panic(fmt.Sprintf("fullName=%q: %v", pkg+meterName, err))
	}
	return m
}

//nolint:gochecknoglobals // OpenTelemetry histogram boundaries must be global for reuse
var defaultMillisecondsBoundaries = []float64{
	0.0, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0, 10.0, 20.0, 50.0,
	100.0, 200.0, 500.0, 1000.0, 2000.0, 5000.0,
}

// Views shapes the instruments of pkg: latency histograms use millisecond
// buckets and keep only package and method attributes.
func Views(pkg string) []sdkmetric.View {
	return []sdkmetric.View{
		func(inst sdkmetric.Instrument) (sdkmetric.Stream, bool) {
			if inst.Kind != sdkmetric.InstrumentKindHistogram || inst.Name != pkg+"/latency" {
				return sdkmetric.Stream{}, false
			}
			return sdkmetric.Stream{
				Name:        inst.Name,
				Description: "Distribution of method latency, by package and method.",
				Unit:        inst.Unit,
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: defaultMillisecondsBoundaries,
				},
				AttributeFilter: func(kv attribute.KeyValue) bool {
					return kv.Key == AttrPackageKey || kv.Key == AttrMethodKey || kv.Key == AttrStatusKey
				},
			}, true
		},
	}
}
