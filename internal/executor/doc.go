// Package executor runs GraphQL operations breadth first so that every
// by-id lookup issued at one depth can be served by one batched backend call.
//
// Documents are parsed and validated by gqlparser against the generated SDL.
// Execution then walks the schema model from package schema, which marks each
// field as synchronous or asynchronous:
//
//   - Synchronous fields (attributes read straight off an entity message) are
//     resolved immediately through Runtime.ResolveSync. Purely synchronous
//     descents never add a depth.
//   - Asynchronous fields (root reads, mutations, reference fields) are queued
//     and resolved together through one Runtime.BatchResolveAsync call per
//     depth. The runtime enqueues loader futures for the whole batch, flushes
//     the request's loader registry once, then awaits.
//
// For a response whose asynchronous depth is d, BatchResolveAsync is invoked
// exactly d times.
//
// Values are completed per GraphQL rules. Lists complete element-wise with
// index paths, leaves go through Runtime.SerializeLeafValue, and objects expand
// their sub-selections. A null or error on a Non-Null field nullifies the
// enclosing top-level field; queued work under a nullified path is dropped
// before the next batch.
//
// Errors are collected as located gqlerror values and never stop sibling
// fields. A runtime error that already is a *gqlerror.Error keeps its message
// and extensions, which is how backend status codes reach the client.
//
// Fragments and @skip/@include are honoured during field collection. The
// schema has no interfaces or unions, so type conditions match by name.
package executor
