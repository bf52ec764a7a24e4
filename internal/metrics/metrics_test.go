package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/hanpama/portalgraph/internal/eventbus"
	"github.com/hanpama/portalgraph/internal/events"
)

func TestMetrics_CountsEvents(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
	m := New()
	t.Cleanup(m.Subscribe())
	ctx := context.Background()

	eventbus.Publish(ctx, events.LoaderBatch{Loader: "Tag", Size: 5, Found: 3, Duration: time.Millisecond})
	eventbus.Publish(ctx, events.LoaderBatch{Loader: "Tag", Size: 2, Err: errors.New("down")})
	eventbus.Publish(ctx, events.GRPCClientFinish{Service: "portal.v1.TagService", Method: "BatchGetTags", Code: codes.NotFound})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationType: "query"})
	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	eventbus.Publish(ctx, events.HTTPFinish{Request: req, Status: 200})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues("Tag", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues("Tag", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.batchMisses.WithLabelValues("Tag")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.grpcCalls.WithLabelValues("portal.v1.TagService", "BatchGetTags", "NotFound")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("query", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "200")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.batches.WithLabelValues("Folder", "ok").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `portalgraph_loader_batches_total{entity="Folder",outcome="ok"} 1`))
}
