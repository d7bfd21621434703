// Package response provides a fluent builder for JSON responses that
// cooperates with the envelope middleware: meta entries, the paginated source
// and the bypass flag are recorded on the in-flight envelope response when
// one is present.
//
//	return response.New().
//		WithMeta("request.region", "eu").
//		Paginate(page).
//		Send(w)
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Suhaibinator/shovel/pkg/envelope"
)

type metaEntry struct {
	key   string
	value any
}

// Builder assembles one response. Methods return the builder for chaining;
// nothing is written until Send.
type Builder struct {
	status  int
	header  http.Header
	meta    []metaEntry
	payload any
	hasBody bool
	source  envelope.Source
	bypass  bool
}

// New returns a builder for a 200 OK response without a body.
func New() *Builder {
	return &Builder{
		status: http.StatusOK,
		header: make(http.Header),
	}
}

// Status sets the status code.
func (b *Builder) Status(code int) *Builder {
	b.status = code
	return b
}

// Header adds a response header.
func (b *Builder) Header(key, value string) *Builder {
	b.header.Add(key, value)
	return b
}

// WithMeta adds an entry to the envelope meta block. Dots in key nest objects.
func (b *Builder) WithMeta(key string, value any) *Builder {
	b.meta = append(b.meta, metaEntry{key: key, value: value})
	return b
}

// JSON sets a plain payload.
func (b *Builder) JSON(v any) *Builder {
	b.payload = v
	b.hasBody = true
	b.source = envelope.PlainSource{}
	return b
}

// Paginate sets a paginator as the payload. Without an envelope the
// paginator itself is encoded; with one, its items become the data.
func (b *Builder) Paginate(p envelope.Paginator) *Builder {
	b.payload = p
	b.hasBody = true
	b.source = envelope.PaginatedSource{Paginator: p}
	return b
}

// Resource sets a resource wrapping a paginator as the payload.
func (b *Builder) Resource(r envelope.Resource) *Builder {
	b.payload = r
	b.hasBody = true
	b.source = envelope.WrappedSource{Resource: r}
	return b
}

// Bypass sends the response without an envelope.
func (b *Builder) Bypass() *Builder {
	b.bypass = true
	return b
}

// Send writes the response to w.
func (b *Builder) Send(w http.ResponseWriter) error {
	var body []byte
	if b.hasBody && b.status != http.StatusNoContent && b.status != http.StatusNotModified {
		var err error
		body, err = json.Marshal(b.payload)
		if err != nil {
			return fmt.Errorf("response: encode payload: %w", err)
		}
	}

	if resp, ok := envelope.FromWriter(w); ok {
		var errs []error
		for _, m := range b.meta {
			if err := resp.Meta.Set(m.key, m.value); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			return err
		}
		if b.source != nil {
			resp.Source = b.source
		}
		if b.bypass {
			resp.Bypass = true
		}
	}

	header := w.Header()
	for k, v := range b.header {
		header[k] = append(header[k], v...)
	}
	if body != nil {
		header.Set("Content-Type", "application/json")
	}
	w.WriteHeader(b.status)
	if body != nil {
		if _, err := w.Write(body); err != nil {
			return fmt.Errorf("response: write body: %w", err)
		}
	}
	return nil
}

// WithMeta adds an entry to the envelope meta of the response being written
// to w. It is a no-op when w is not being enveloped.
func WithMeta(w http.ResponseWriter, key string, value any) error {
	resp, ok := envelope.FromWriter(w)
	if !ok {
		return nil
	}
	return resp.Meta.Set(key, value)
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) error {
	return New().Status(status).JSON(v).Send(w)
}

// Paginated writes a page of results with the given status.
func Paginated(w http.ResponseWriter, status int, p envelope.Paginator) error {
	return New().Status(status).Paginate(p).Send(w)
}

// Error writes {"error": message} with the given status.
func Error(w http.ResponseWriter, status int, message string) error {
	return JSON(w, status, map[string]string{"error": message})
}
