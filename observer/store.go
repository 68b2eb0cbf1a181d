package observer

import (
	"context"
	"errors"
	"time"

	"github.com/nevindra/modulebox"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedStore wraps a modulebox.Store with OTEL instrumentation. Every
// operation gets a "store.<operation>" span, a count and a duration.
type ObservedStore struct {
	inner modulebox.Store
	inst  *Instruments
}

var _ modulebox.Store = (*ObservedStore)(nil)

// WrapStore returns an instrumented store.
func WrapStore(inner modulebox.Store, inst *Instruments) *ObservedStore {
	return &ObservedStore{inner: inner, inst: inst}
}

// observe runs fn inside a span and records its outcome. A missing module
// is reported as status "not_found" without marking the span failed.
func (o *ObservedStore) observe(ctx context.Context, op string, moduleID int64, fn func(context.Context) error) {
	attrs := []trace.SpanStartOption{trace.WithAttributes(AttrStoreOp.String(op))}
	if moduleID != 0 {
		attrs = append(attrs, trace.WithAttributes(AttrModuleID.Int64(moduleID)))
	}
	ctx, span := o.inst.Tracer.Start(ctx, "store."+op, attrs...)
	defer span.End()
	start := time.Now()

	err := fn(ctx)

	status := "ok"
	switch {
	case errors.Is(err, modulebox.ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	o.inst.StoreOperations.Add(ctx, 1, metric.WithAttributes(AttrStoreOp.String(op), AttrStatus.String(status)))
	o.inst.StoreDuration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(AttrStoreOp.String(op)))
}

func (o *ObservedStore) Init(ctx context.Context) error {
	var err error
	o.observe(ctx, "init", 0, func(ctx context.Context) error {
		err = o.inner.Init(ctx)
		return err
	})
	return err
}

func (o *ObservedStore) CreateModule(ctx context.Context, m modulebox.Module) (modulebox.Module, error) {
	var (
		out modulebox.Module
		err error
	)
	o.observe(ctx, "create_module", 0, func(ctx context.Context) error {
		out, err = o.inner.CreateModule(ctx, m)
		return err
	})
	return out, err
}

func (o *ObservedStore) GetModule(ctx context.Context, id int64) (modulebox.Module, error) {
	var (
		out modulebox.Module
		err error
	)
	o.observe(ctx, "get_module", id, func(ctx context.Context) error {
		out, err = o.inner.GetModule(ctx, id)
		return err
	})
	return out, err
}

func (o *ObservedStore) ListModules(ctx context.Context, limit int) ([]modulebox.Module, error) {
	var (
		out []modulebox.Module
		err error
	)
	o.observe(ctx, "list_modules", 0, func(ctx context.Context) error {
		out, err = o.inner.ListModules(ctx, limit)
		return err
	})
	return out, err
}

func (o *ObservedStore) DeleteModule(ctx context.Context, id int64) error {
	var err error
	o.observe(ctx, "delete_module", id, func(ctx context.Context) error {
		err = o.inner.DeleteModule(ctx, id)
		return err
	})
	return err
}

func (o *ObservedStore) AddComment(ctx context.Context, moduleID int64, text string) (modulebox.Comment, error) {
	var (
		out modulebox.Comment
		err error
	)
	o.observe(ctx, "add_comment", moduleID, func(ctx context.Context) error {
		out, err = o.inner.AddComment(ctx, moduleID, text)
		return err
	})
	return out, err
}

func (o *ObservedStore) ListComments(ctx context.Context, moduleID int64) ([]modulebox.Comment, error) {
	var (
		out []modulebox.Comment
		err error
	)
	o.observe(ctx, "list_comments", moduleID, func(ctx context.Context) error {
		out, err = o.inner.ListComments(ctx, moduleID)
		return err
	})
	return out, err
}

// Close is not traced.
func (o *ObservedStore) Close() error { return o.inner.Close() }
