// Package accesslog writes structured log records for eventbus events.
package accesslog

import (
	"context"
	"log/slog"

	"github.com/hanpama/portalgraph/internal/eventbus"
	"github.com/hanpama/portalgraph/internal/events"
	"github.com/hanpama/portalgraph/internal/reqid"
)

// Subscribe logs finished HTTP requests, GraphQL operations, failed loader
// batches and failed gRPC calls to logger. It returns a function detaching
// the handlers.
func Subscribe(logger *slog.Logger) (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			logger.LogAttrs(ctx, slog.LevelInfo, "http request",
				requestID(ctx),
				slog.String("method", e.Request.Method),
				slog.String("path", e.Request.URL.Path),
				slog.Int("status", e.Status),
				slog.Int("operations", e.Operations),
				slog.Duration("duration", e.Duration))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
			level := slog.LevelInfo
			attrs := []slog.Attr{
				requestID(ctx),
				slog.String("operation", e.OperationName),
				slog.String("type", e.OperationType),
				slog.Int64("actor", e.Actor),
				slog.Duration("duration", e.Duration),
			}
			if len(e.Errors) > 0 {
				level = slog.LevelWarn
				attrs = append(attrs, slog.Int("errors", len(e.Errors)), slog.String("error", e.Errors[0].Error()))
			}
			logger.LogAttrs(ctx, level, "graphql operation", attrs...)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.LoaderBatch) {
			if e.Err == nil {
				logger.LogAttrs(ctx, slog.LevelDebug, "loader batch",
					requestID(ctx),
					slog.String("loader", e.Loader),
					slog.Int("size", e.Size),
					slog.Int("found", e.Found))
				return
			}
			logger.LogAttrs(ctx, slog.LevelError, "loader batch failed",
				requestID(ctx),
				slog.String("loader", e.Loader),
				slog.Int("size", e.Size),
				slog.String("error", e.Err.Error()))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.GRPCClientFinish) {
			if e.Err == nil {
				return
			}
			logger.LogAttrs(ctx, slog.LevelWarn, "grpc call failed",
				requestID(ctx),
				slog.String("method", e.Method),
				slog.String("target", e.Target),
				slog.String("code", e.Code.String()),
				slog.String("error", e.Err.Error()))
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func requestID(ctx context.Context) slog.Attr {
	id, _ := reqid.FromContext(ctx)
	return slog.Int64("request_id", id)
}
