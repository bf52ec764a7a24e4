// Package server serves the gateway's GraphQL endpoint over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vektah/gqlparser/v2/gqlerror"
	"google.golang.org/grpc/metadata"

	"github.com/hanpama/portalgraph/internal/actor"
	"github.com/hanpama/portalgraph/internal/eventbus"
	"github.com/hanpama/portalgraph/internal/events"
	"github.com/hanpama/portalgraph/internal/executor"
	"github.com/hanpama/portalgraph/internal/loader"
	"github.com/hanpama/portalgraph/internal/reqid"
)

const (
	// DefaultActorHeader carries the acting identity of a request.
	DefaultActorHeader = "X-User-Id"
	// RequestIDHeader carries the request id; it is echoed in the response.
	RequestIDHeader = "X-Request-Id"
)

// Handler is an http.Handler that serves a GraphQL endpoint.
// It parses requests, runs the executor, and formats responses per GraphQL spec.
type Handler struct {
	exec *executor.Executor
	opt  Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// MetadataHeaders lists HTTP headers to forward into gRPC metadata.
	// Header names are case-insensitive. Default is none.
	MetadataHeaders []string

	// ActorHeader names the header carrying the acting identity.
	ActorHeader string

	// LoaderOptions configure the loader registry of each execution.
	LoaderOptions []loader.Option
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithMetadataHeaders(headers ...string) Option {
	return func(o *Options) { o.MetadataHeaders = headers }
}
func WithActorHeader(name string) Option { return func(o *Options) { o.ActorHeader = name } }
func WithLoaderOptions(opts ...loader.Option) Option {
	return func(o *Options) { o.LoaderOptions = append(o.LoaderOptions, opts...) }
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a GraphQL HTTP handler running requests on exec.
func New(exec *executor.Executor, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second, ActorHeader: DefaultActorHeader}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{exec: exec, opt: op}
}

// requestError fails a whole HTTP request before any operation runs.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	var rid int64
	if id, err := strconv.ParseInt(r.Header.Get(RequestIDHeader), 10, 64); err == nil && id > 0 {
		rid, ctx = id, reqid.WithID(ctx, id)
	} else {
		ctx, rid = reqid.NewContext(ctx)
	}
	w.Header().Set(RequestIDHeader, strconv.FormatInt(rid, 10))

	status, operations := http.StatusOK, 0
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, Operations: operations, Duration: time.Since(start)})
	}()

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	if r.Method == http.MethodOptions {
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, errorResponse("method not allowed"), h.opt.Pretty)
		return
	}

	if v := r.Header.Get(h.opt.ActorHeader); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			status = http.StatusBadRequest
			writeJSON(w, status, errorResponse(fmt.Sprintf("invalid %s header", h.opt.ActorHeader)), h.opt.Pretty)
			return
		}
		ctx = actor.NewContext(ctx, id)
	}

	ctx = h.forwardHeaders(ctx, r)

	req, batch, err := parseRequest(r, h.opt.MaxBodyBytes)
	if err != nil {
		var re *requestError
		if !errors.As(err, &re) {
			re = &requestError{status: http.StatusBadRequest, message: err.Error()}
		}
		status = re.status
		writeJSON(w, status, errorResponse(re.message), h.opt.Pretty)
		return
	}

	if batch != nil {
		operations = len(batch)
		out := make([]response, len(batch))
		for i := range batch {
			out[i] = h.executeOne(ctx, batch[i])
		}
		writeJSON(w, status, out, h.opt.Pretty)
		return
	}
	operations = 1
	writeJSON(w, status, h.executeOne(ctx, req), h.opt.Pretty)
}

// forwardHeaders copies the configured headers into outgoing gRPC metadata.
func (h *Handler) forwardHeaders(ctx context.Context, r *http.Request) context.Context {
	if len(h.opt.MetadataHeaders) == 0 {
		return ctx
	}
	var kv []string
	for _, hdr := range h.opt.MetadataHeaders {
		for _, v := range r.Header.Values(hdr) {
			kv = append(kv, strings.ToLower(hdr), v)
		}
	}
	if len(kv) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

// executeOne runs one operation with its own loader registry, so nothing
// loaded for one operation is visible to another.
func (h *Handler) executeOne(ctx context.Context, req GraphQLRequest) response {
	doc, errs := h.exec.Prepare(req.Query)
	if len(errs) > 0 {
		return response{Errors: errs}
	}
	opType := ""
	if op := executor.Operation(doc, req.OperationName); op != nil {
		opType = string(op.Operation)
	}

	reg := loader.NewRegistry(ctx, h.opt.LoaderOptions...)
	defer reg.Close()

	actorID, _ := actor.FromContext(ctx)
	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName, OperationType: opType, Actor: actorID})
	result := h.exec.ExecuteRequest(loader.WithRegistry(ctx, reg), doc, req.OperationName, req.Variables)
	errList := make([]error, len(result.Errors))
	for i := range result.Errors {
		errList[i] = result.Errors[i]
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: opType,
		Actor:         actorID,
		Errors:        errList,
		Duration:      time.Since(start),
	})
	return response{Data: result.Data, Errors: result.Errors}
}

// ------------------ Request parsing ------------------

type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

func parseRequest(r *http.Request, maxBody int64) (GraphQLRequest, []GraphQLRequest, error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return GraphQLRequest{}, nil, errors.New("missing 'query'")
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return GraphQLRequest{}, nil, errors.New("invalid 'variables' JSON")
			}
		}
		op := r.URL.Query().Get("operationName")
		return GraphQLRequest{Query: q, Variables: vars, OperationName: op}, nil, nil
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			return GraphQLRequest{}, nil, &requestError{status: http.StatusUnsupportedMediaType, message: "unsupported Content-Type"}
		}
	}

	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	defer r.Body.Close()
	if err != nil {
		return GraphQLRequest{}, nil, errors.New("failed to read body")
	}
	if maxBody > 0 && int64(len(body)) > maxBody {
		return GraphQLRequest{}, nil, &requestError{status: http.StatusRequestEntityTooLarge, message: "body too large"}
	}

	body = []byte(strings.TrimSpace(string(body)))
	if len(body) > 0 && body[0] == '[' {
		var arr []GraphQLRequest
		if err := json.Unmarshal(body, &arr); err != nil {
			return GraphQLRequest{}, nil, errors.New("invalid JSON")
		}
		if len(arr) == 0 {
			return GraphQLRequest{}, nil, errors.New("empty batch")
		}
		return GraphQLRequest{}, arr, nil
	}
	var req GraphQLRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return GraphQLRequest{}, nil, errors.New("invalid JSON")
	}
	if req.Query == "" {
		return GraphQLRequest{}, nil, errors.New("missing 'query'")
	}
	return req, nil, nil
}

// ------------------ Response formatting ------------------

// response is a GraphQL response. data is left out when the operation never
// ran.
type response struct {
	Data   any           `json:"data,omitempty"`
	Errors gqlerror.List `json:"errors,omitempty"`
}

func errorResponse(message string) response {
	return response{Errors: gqlerror.List{{Message: message}}}
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
