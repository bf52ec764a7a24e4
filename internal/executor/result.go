package executor

import "github.com/vektah/gqlparser/v2/gqlerror"

// ExecutionResult represents the result of executing a GraphQL query
type ExecutionResult struct {
	Data   any            `json:"data"`
	Errors gqlerror.List `json:"errors,omitempty"`
}
