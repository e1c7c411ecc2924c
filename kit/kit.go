// Package kit holds the transport-agnostic endpoint plumbing shared by
// the HTTP and MCP surfaces: an Endpoint is a typed request/response
// function, middleware composes around it, and per-transport adapters
// register it.
package kit

import "context"

// Endpoint is one operation, independent of transport.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares; the first argument is outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
