package observer

import (
	"context"
	"path/filepath"
	"time"

	"github.com/nevindra/modulebox"
	"github.com/nevindra/modulebox/extract"

	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedExtractor wraps a modulebox.Extractor with OTEL instrumentation.
type ObservedExtractor struct {
	inner modulebox.Extractor
	inst  *Instruments
}

var _ modulebox.Extractor = (*ObservedExtractor)(nil)

// WrapExtractor returns an instrumented extractor.
func WrapExtractor(inner modulebox.Extractor, inst *Instruments) *ObservedExtractor {
	return &ObservedExtractor{inner: inner, inst: inst}
}

func (o *ObservedExtractor) Extract(ctx context.Context, path string) (modulebox.Result, error) {
	format := extract.FormatFromPath(path).String()
	name := filepath.Base(path)

	ctx, span := o.inst.Tracer.Start(ctx, "extract.file", trace.WithAttributes(
		AttrFileName.String(name),
		AttrFileFormat.String(format),
	))
	defer span.End()
	start := time.Now()

	res, err := o.inner.Extract(ctx, path)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(AttrRecords.Int(len(res)))

	o.inst.ExtractRequests.Add(ctx, 1, metric.WithAttributes(
		AttrFileFormat.String(format),
		AttrStatus.String(status),
	))
	o.inst.ExtractRecords.Add(ctx, int64(len(res)), metric.WithAttributes(AttrFileFormat.String(format)))
	o.inst.ExtractDuration.Record(ctx, durationMs, metric.WithAttributes(AttrFileFormat.String(format)))

	// Structured log
	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("extraction completed"))
	rec.AddAttributes(
		otellog.String("extract.file_name", name),
		otellog.String("extract.format", format),
		otellog.Int("extract.records", len(res)),
		otellog.Float64("extract.duration_ms", durationMs),
		otellog.String("status", status),
	)
	o.inst.Logger.Emit(ctx, rec)

	return res, err
}
