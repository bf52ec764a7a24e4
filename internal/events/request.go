package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when the server receives a request. The event context
// carries the request id.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is emitted after the server wrote its response. Operations is
// the number of GraphQL operations the request carried, 0 when it was
// rejected before any ran.
type HTTPFinish struct {
	Request    *http.Request
	Status     int
	Operations int
	Duration   time.Duration
}

// GraphQLStart is emitted before one operation executes. Actor is the acting
// identity of the request, 0 when it carries none.
type GraphQLStart struct {
	Query         string
	OperationName string
	OperationType string
	Actor         int64
}

// GraphQLFinish is emitted after one operation executed.
type GraphQLFinish struct {
	Query         string
	OperationName string
	OperationType string
	Actor         int64
	Errors        []error
	Duration      time.Duration
}
