package otel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/grpc/codes"

	"github.com/hanpama/portalgraph/internal/eventbus"
	"github.com/hanpama/portalgraph/internal/events"
	"github.com/hanpama/portalgraph/internal/reqid"
)

func TestSubscribe_RecordsNestedSpans(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	unsubscribe := Subscribe(tp.Tracer(tracerName))
	t.Cleanup(unsubscribe)

	ctx, _ := reqid.NewContext(context.Background())
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	failure := errors.New("backend down")

	eventbus.Publish(ctx, events.GraphQLStart{OperationName: "Q", OperationType: "query", Actor: 20})
	eventbus.Publish(ctx, events.GRPCClientStart{Call: 1, Service: "portal.v1.TagService", Method: "BatchGetTags"})
	eventbus.Publish(ctx, events.GRPCClientStart{Call: 2, Service: "portal.v1.FolderService", Method: "BatchGetFolders"})
	eventbus.Publish(ctx, events.GRPCClientFinish{Call: 2, Code: codes.Unavailable, Err: failure})
	eventbus.Publish(ctx, events.GRPCClientFinish{Call: 1, Code: codes.OK})
	eventbus.Publish(ctx, events.LoaderBatch{Loader: "Tag", Size: 3, Found: 2, Started: started, Duration: time.Second})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationName: "Q"})

	spans := rec.Ended()
	require.Len(t, spans, 4)
	byName := map[string][]sdktrace.ReadOnlySpan{}
	for _, s := range spans {
		byName[s.Name()] = append(byName[s.Name()], s)
	}
	op := byName["graphql.operation"][0]
	assert.Contains(t, op.Attributes(), attribute.Int64("enduser.id", 20))
	require.Len(t, byName["grpc.client"], 2)
	for _, s := range byName["grpc.client"] {
		assert.Equal(t, op.SpanContext().SpanID(), s.Parent().SpanID())
	}

	batch := byName["loader.batch"][0]
	assert.Equal(t, op.SpanContext().SpanID(), batch.Parent().SpanID())
	assert.Equal(t, started, batch.StartTime())
	assert.Equal(t, started.Add(time.Second), batch.EndTime())
}

func TestSetup_WithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup("", "portalgraph")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
