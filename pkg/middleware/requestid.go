package middleware

import (
	"context"
	"net/http"

	"github.com/Suhaibinator/shovel/pkg/envelope"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// requestIDKey is the key used to store the request ID in the request context
type requestIDKey struct{}

// RequestIDConfig configures the RequestID middleware.
type RequestIDConfig struct {
	// HeaderName is the response (and optionally request) header carrying the ID.
	// Default: "X-Request-ID"
	HeaderName string

	// MetaKey is the envelope meta key the ID is recorded under.
	// Default: "request_id". Set to "-" to keep the ID out of the envelope.
	MetaKey string

	// UseExisting reuses an ID sent by the client in HeaderName
	UseExisting bool

	// Generator creates new IDs (default: UUID v4)
	Generator func() string

	// Logger reports meta failures (optional)
	Logger *zap.Logger
}

// RequestID creates a middleware that assigns every request a unique ID. The ID
// is stored in the request context, echoed in a response header and, when the
// response is being enveloped, added to the meta block.
func RequestID(cfg RequestIDConfig) Middleware {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-Request-ID"
	}
	if cfg.MetaKey == "" {
		cfg.MetaKey = "request_id"
	}
	if cfg.Generator == nil {
		cfg.Generator = func() string {
			return uuid.New().String()
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if cfg.UseExisting {
				id = r.Header.Get(cfg.HeaderName)
			}
			if id == "" {
				id = cfg.Generator()
			}

			w.Header().Set(cfg.HeaderName, id)

			if cfg.MetaKey != "-" {
				if resp, ok := envelope.FromWriter(w); ok {
					if err := resp.Meta.Set(cfg.MetaKey, id); err != nil {
						cfg.Logger.Warn("Failed to add request ID to envelope meta",
							zap.Error(err),
							zap.String("meta_key", cfg.MetaKey),
						)
					}
				}
			}

			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID extracts the request ID from the request context.
// Returns an empty string if no request ID is found.
func GetRequestID(r *http.Request) string {
	return GetRequestIDFromContext(r.Context())
}

// GetRequestIDFromContext extracts the request ID from a context.
// Returns an empty string if no request ID is found.
func GetRequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
