// Package common provides shared types used across the Shovel packages.
package common

import (
	"net/http"
)

// Middleware is a function that wraps an http.Handler.
// Middleware runs before the wrapped handler, after it, or both; the
// envelope middleware does its work after the handler has returned.
type Middleware func(http.Handler) http.Handler
