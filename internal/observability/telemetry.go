package observability

import (
	"context"
	"time"

	"github.com/annel0/voxelcore/internal/logging"
	"github.com/annel0/voxelcore/internal/vec"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/annel0/voxelcore/scheduler"

// InitTelemetry настраивает OTLP экспортер и устанавливает глобальный TracerProvider.
// Возвращает функцию shutdown, которую нужно вызвать при завершении приложения.
// При enabled == false трассировка остаётся no-op.
func InitTelemetry(ctx context.Context, serviceName string, enabled bool) (func(context.Context) error, error) {
	if !enabled {
		return func(context.Context) error { return nil }, nil
	}

	// OTLP HTTP экспортер (по умолчанию localhost:4318)
	exp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	logging.Info("OpenTelemetry инициализирован (OTLP → 4318, service=%s)", serviceName)

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}
	return shutdown, nil
}

// Tracer возвращает трассировщик планировщика из провайдера tp (nil - глобальный)
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(tracerName)
}

// StartColumnSpan открывает span генерации столбца чанков
func StartColumnSpan(ctx context.Context, tracer trace.Tracer, column vec.Vec2, chunks int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "terrain.generate_column",
		trace.WithAttributes(
			attribute.Int("voxel.column.x", column.X),
			attribute.Int("voxel.column.z", column.Z),
			attribute.Int("voxel.column.chunks", chunks),
		))
}

// StartMeshSpan открывает span построения меша чанка
func StartMeshSpan(ctx context.Context, tracer trace.Tracer, origin vec.Vec3) (context.Context, trace.Span) {
	return tracer.Start(ctx, "chunk.build_mesh",
		trace.WithAttributes(
			attribute.Int("voxel.chunk.x", origin.X),
			attribute.Int("voxel.chunk.y", origin.Y),
			attribute.Int("voxel.chunk.z", origin.Z),
		))
}
