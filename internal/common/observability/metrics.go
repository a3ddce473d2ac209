package observability

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "lead-pipeline"

// Observability owns the process-wide meter and tracer providers.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

// New installs a meter provider exporting through the Prometheus registry
// and, when jaegerEndpoint is set, a tracer provider exporting spans to Jaeger.
func New(serviceName, jaegerEndpoint string) *Observability {
	o := &Observability{}

	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
	} else {
		o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter))
		otel.SetMeterProvider(o.meterProvider)
	}

	if jaegerEndpoint != "" {
		traceExporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerEndpoint)))
		if err != nil {
			log.Printf("Failed to create Jaeger exporter for %s: %v", serviceName, err)
		} else {
			o.tracerProvider = sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
			otel.SetTracerProvider(o.tracerProvider)
		}
	}

	return o
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}

type instruments struct {
	operations otelmetric.Int64Counter
	duration   otelmetric.Float64Histogram
}

var (
	instrumentsOnce sync.Once
	inst            instruments
)

func loadInstruments() instruments {
	instrumentsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)
		inst.operations, _ = meter.Int64Counter(
			"pipeline.operations",
			otelmetric.WithDescription("Pipeline operations processed"),
		)
		inst.duration, _ = meter.Float64Histogram(
			"pipeline.operation.duration",
			otelmetric.WithDescription("Pipeline operation duration"),
			otelmetric.WithUnit("ms"),
		)
	})
	return inst
}

// Track starts a span named operation and returns a finisher that ends it,
// recording the outcome and duration. The global providers are noops until
// New installs real ones, so Track is safe to call from tests.
func Track(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, operation, trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		i := loadInstruments()
		opAttrs := otelmetric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		)
		if i.operations != nil {
			i.operations.Add(ctx, 1, opAttrs)
		}
		if i.duration != nil {
			i.duration.Record(ctx, float64(time.Since(start).Milliseconds()), opAttrs)
		}
	}
}
