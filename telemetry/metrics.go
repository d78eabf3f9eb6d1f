package telemetry

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Units are encoded according to the case-sensitive abbreviations from the
// Unified Code for Units of Measure: http://unitsofmeasure.org/ucum.html.
const (
	unitDimensionless = "1"
	unitMilliseconds  = "ms"
	unitBytes         = "B"
)

//nolint:gochecknoglobals // OpenTelemetry histogram boundaries must be global for reuse
var defaultMillisecondsBoundaries = []float64{
	0.0, 1.0, 2.0, 5.0, 10.0, 20.0, 30.0, 50.0, 80.0, 100.0, 150.0, 200.0,
	300.0, 400.0, 500.0, 800.0, 1000.0, 2000.0, 5000.0, 10000.0, 30000.0,
}

// Views shapes the latency histogram of pkg and derives a completed calls
// count from it.
func Views(pkg string) []sdkmetric.View {
	return []sdkmetric.View{
		func(inst sdkmetric.Instrument) (sdkmetric.Stream, bool) {
			if inst.Kind == sdkmetric.InstrumentKindHistogram && inst.Name == pkg+"/latency" {
				return sdkmetric.Stream{
					Name:        inst.Name,
					Description: "Distribution of method latency, by package and method.",
					Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
						Boundaries: defaultMillisecondsBoundaries,
					},
					AttributeFilter: func(kv attribute.KeyValue) bool {
						return kv.Key == AttrPackageKey || kv.Key == AttrMethodKey || kv.Key == AttrStatusKey
					},
				}, true
			}
			return sdkmetric.Stream{}, false
		},

		func(inst sdkmetric.Instrument) (sdkmetric.Stream, bool) {
			if inst.Kind == sdkmetric.InstrumentKindHistogram && inst.Name == pkg+"/latency" {
				return sdkmetric.Stream{
					Name:        strings.Replace(inst.Name, "/latency", "/completed_calls", 1),
					Description: "Count of method calls by method and status.",
					Aggregation: sdkmetric.DefaultAggregationSelector(sdkmetric.InstrumentKindCounter),
					AttributeFilter: func(kv attribute.KeyValue) bool {
						return kv.Key == AttrMethodKey || kv.Key == AttrStatusKey
					},
				}, true
			}
			return sdkmetric.Stream{}, false
		},
	}
}

func meter(pkg string) metric.Meter {
	return otel.Meter(pkg, metric.WithInstrumentationAttributes(AttrPackageKey.String(pkg)))
}

// LatencyMeasure returns the histogram of method call latency of pkg.
func LatencyMeasure(pkg string) metric.Float64Histogram {
	m, err := meter(pkg).Float64Histogram(
		pkg+"/latency",
		metric.WithDescription("Latency distribution of method calls"),
		metric.WithUnit(unitMilliseconds),
	)
	if err != nil {
		// only invalid instrument names fail, those are programming errors.
		panic(fmt.Sprintf("fullName=%q: %v", pkg, err))
	}
	return m
}

// DimensionlessMeasure creates a counter of plain occurrences.
func DimensionlessMeasure(pkg string, meterName string, description string) metric.Int64Counter {
	m, err := meter(pkg).Int64Counter(
		pkg+meterName,
		metric.WithDescription(description),
		metric.WithUnit(unitDimensionless),
	)
	if err != nil {
		panic(fmt.Sprintf("fullName=%q: %v", pkg+meterName, err))
	}
	return m
}

// BytesMeasure creates a counter of bytes.
func BytesMeasure(pkg string, meterName string, description string) metric.Int64Counter {
	m, err := meter(pkg).Int64Counter(pkg+meterName, metric.WithDescription(description), metric.WithUnit(unitBytes))
	if err != nil {
		panic(fmt.Sprintf("fullName=%q: %v", pkg+meterName, err))
	}
	return m
}
