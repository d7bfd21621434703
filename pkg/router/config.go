// Package router provides an HTTP router with named middleware aliases.
// The ApiResponse alias wraps JSON responses in the standard envelope.
package router

import (
	"net/http"
	"time"

	"github.com/Suhaibinator/shovel/pkg/common"
	"github.com/Suhaibinator/shovel/pkg/middleware"
	"go.uber.org/zap"
)

// Built-in middleware aliases.
const (
	// AliasAPIResponse wraps responses in the envelope. Parameters are the
	// positional meta, data and pagination key names: "ApiResponse:info,payload".
	AliasAPIResponse = "ApiResponse"

	// AliasRequestID assigns request IDs. An optional parameter names the meta key.
	AliasRequestID = "RequestID"

	// AliasThrottle paces clients. Parameters are the limit and an optional
	// window duration: "Throttle:100,1m".
	AliasThrottle = "Throttle"
)

// AliasFactory builds a middleware from the parameters given after the alias
// name, e.g. "info" and "payload" for "ApiResponse:info,payload".
type AliasFactory func(params ...string) (common.Middleware, error)

// RouterConfig defines the global configuration for the router.
type RouterConfig struct {
	Logger            *zap.Logger                 // Logger for all router operations
	GlobalTimeout     time.Duration               // Default response timeout for all routes
	GlobalMaxBodySize int64                       // Default maximum request body size in bytes
	EnableTraceID     bool                        // Include request IDs in router logs
	Envelope          middleware.EnvelopeConfig   // Base configuration of the ApiResponse alias
	Aliases           map[string]AliasFactory     // Additional aliases, or replacements for the built-in ones
	Middlewares       []common.Middleware         // Global middlewares applied to all routes
	Use               []string                    // Global aliases applied to all routes, after Middlewares
	SubRouters        []SubRouterConfig           // Sub-routers with their own configurations
}

// SubRouterConfig defines configuration for a group of routes with a common path prefix.
type SubRouterConfig struct {
	PathPrefix          string              // Common path prefix for all routes in this sub-router
	TimeoutOverride     time.Duration       // Override global timeout for all routes in this sub-router
	MaxBodySizeOverride int64               // Override global max body size for all routes in this sub-router
	Routes              []RouteConfigBase   // Routes in this sub-router
	Middlewares         []common.Middleware // Middlewares applied to all routes in this sub-router
	Use                 []string            // Aliases applied to all routes in this sub-router
}

// RouteConfigBase defines a route with a standard handler.
type RouteConfigBase struct {
	Path        string              // Route path (will be prefixed with sub-router path prefix if applicable)
	Methods     []string            // HTTP methods this route handles
	Timeout     time.Duration       // Override timeout for this specific route
	MaxBodySize int64               // Override max body size for this specific route
	Handler     http.HandlerFunc    // Standard HTTP handler function
	Middlewares []common.Middleware // Middlewares applied to this specific route
	Use         []string            // Aliases applied to this specific route
}

// RouteConfig defines a route with generic request and response types.
type RouteConfig[T any, U any] struct {
	Path        string               // Route path
	Methods     []string             // HTTP methods this route handles
	Timeout     time.Duration        // Override timeout for this specific route
	MaxBodySize int64                // Override max body size for this specific route
	Codec       Codec[T, U]          // Codec for marshaling/unmarshaling request and response
	Handler     GenericHandler[T, U] // Generic handler function
	Middlewares []common.Middleware  // Middlewares applied to this specific route
	Use         []string             // Aliases applied to this specific route
}

// Middleware is an alias for common.Middleware.
type Middleware = common.Middleware

// GenericHandler defines a handler function with generic request and response types.
// The router decodes the request with the route's Codec, calls the handler and
// encodes the result, so a handler returning an envelope.Paginator produces
// pagination meta when enveloped.
type GenericHandler[T any, U any] func(r *http.Request, data T) (U, error)

// Codec defines an interface for decoding request data and encoding response data.
type Codec[T any, U any] interface {
	// Decode extracts and deserializes data from an HTTP request into a value of type T.
	Decode(r *http.Request) (T, error)

	// Encode serializes a value of type U and writes it to the HTTP response.
	Encode(w http.ResponseWriter, resp U) error
}
