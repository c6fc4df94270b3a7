package obs

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const pgxTracerName = "db.pgx"

// PGXTracer creates spans for queries and batches. It implements
// pgx.QueryTracer and pgx.BatchTracer.
type PGXTracer struct{}

var (
	_ pgx.QueryTracer = PGXTracer{}
	_ pgx.BatchTracer = PGXTracer{}
)

// TraceQueryStart starts a span for the SQL statement.
func (PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	ctx, span := otel.Tracer(pgxTracerName).Start(ctx, "pgx.query", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.statement", truncateSQL(data.SQL)),
	)
	if op := operation(data.SQL); op != "" {
		span.SetAttributes(attribute.String("db.operation", op))
	}
	return ctx
}

// TraceQueryEnd ends the span and records any error.
func (PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	endSpan(trace.SpanFromContext(ctx), data.Err, data.CommandTag.RowsAffected())
}

// TraceBatchStart starts a span covering a whole batch.
func (PGXTracer) TraceBatchStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchStartData) context.Context {
	ctx, span := otel.Tracer(pgxTracerName).Start(ctx, "pgx.batch", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("db.system", "postgresql"))
	if data.Batch != nil {
		span.SetAttributes(attribute.Int("db.batch.size", data.Batch.Len()))
	}
	return ctx
}

// TraceBatchQuery records each statement of the batch as a span event.
func (PGXTracer) TraceBatchQuery(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchQueryData) {
	span := trace.SpanFromContext(ctx)
	attrs := []attribute.KeyValue{attribute.String("db.statement", truncateSQL(data.SQL))}
	if data.Err != nil {
		attrs = append(attrs, attribute.String("error", data.Err.Error()))
	}
	span.AddEvent("batch.query", trace.WithAttributes(attrs...))
}

// TraceBatchEnd ends the batch span.
func (PGXTracer) TraceBatchEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchEndData) {
	endSpan(trace.SpanFromContext(ctx), data.Err, -1)
}

func endSpan(span trace.Span, err error, rows int64) {
	if rows >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", rows))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func operation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

func truncateSQL(sql string) string {
	trimmed := strings.TrimSpace(sql)
	if len(trimmed) > 300 {
		return trimmed[:300] + "..."
	}
	return trimmed
}
