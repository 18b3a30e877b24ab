package observability

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type spanKey struct{}

// Span identifies one traced operation; Parent is empty for a root span.
type Span struct {
	ID        string
	Parent    string
	Component string
	Operation string
}

// SpanFromContext returns the innermost span started on ctx.
func SpanFromContext(ctx context.Context) (Span, bool) {
	span, ok := ctx.Value(spanKey{}).(Span)
	return span, ok
}

// Enabled reports whether span logging is on.
func Enabled() bool {
	return current().cfg.Enabled
}

// StartSpan 开始一个 span, 返回携带 span 的 context 和结束回调
func StartSpan(ctx context.Context, component, operation string) (context.Context, func(error)) {
	st := current()
	if st.logger == nil || !st.cfg.Enabled {
		return ctx, func(error) {}
	}

	span := Span{ID: uuid.NewString(), Component: component, Operation: operation}
	if parent, ok := SpanFromContext(ctx); ok {
		span.Parent = parent.ID
	}
	ctx = context.WithValue(ctx, spanKey{}, span)

	begin := time.Now()
	st.logger.LogAttrs(ctx, slog.LevelDebug, "span start", span.attrs()...)

	return ctx, func(err error) {
		attrs := append(span.attrs(), slog.Duration("elapsed", time.Since(begin)))
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelError
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		st.logger.LogAttrs(ctx, level, "span end", attrs...)
	}
}

func (s Span) attrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("span", s.ID),
		slog.String("component", s.Component),
		slog.String("op", s.Operation),
	}
	if s.Parent != "" {
		attrs = append(attrs, slog.String("parent", s.Parent))
	}
	return attrs
}

// RecordMetric feeds a datapoint into the Prometheus collectors installed by
// Setup. HTTP request counters and latencies get their own series; every
// other name lands in the generic events counter. With span logging on the
// datapoint is logged as well.
func RecordMetric(ctx context.Context, name string, value float64, labels map[string]string) {
	st := current()

	if m := st.metrics; m != nil {
		switch name {
		case MetricHTTPRequests:
			m.HTTPRequests.WithLabelValues(labels["method"], labels["path"], labels["status"]).Add(value)
		case MetricHTTPDurationMs:
			m.HTTPDuration.WithLabelValues(labels["method"], labels["path"]).Observe(value / 1000)
		default:
			m.Events.WithLabelValues(name, labels["component"]).Add(value)
		}
	}

	if st.logger == nil || !st.cfg.Enabled {
		return
	}
	attrs := make([]slog.Attr, 0, len(labels)+3)
	attrs = append(attrs, slog.String("metric", name), slog.String("value", strconv.FormatFloat(value, 'f', -1, 64)))
	if span, ok := SpanFromContext(ctx); ok {
		attrs = append(attrs, slog.String("span", span.ID))
	}
	for k, v := range labels {
		attrs = append(attrs, slog.String(k, v))
	}
	st.logger.LogAttrs(ctx, slog.LevelDebug, "metric", attrs...)
}
