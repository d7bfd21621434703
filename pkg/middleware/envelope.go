package middleware

import (
	"bytes"
	"net/http"

	"github.com/Suhaibinator/shovel/pkg/envelope"
	"go.uber.org/zap"
)

// Observer receives envelope outcomes, typically to record metrics.
type Observer interface {
	// ObserveEnvelope is called after a body has been enveloped.
	ObserveEnvelope(status string, kind envelope.Kind, size int)

	// ObserveBypass is called when a response is sent without an envelope.
	ObserveBypass()

	// ObserveFailure is called when the envelope could not be built.
	ObserveFailure()
}

// EnvelopeConfig configures the Envelope middleware.
type EnvelopeConfig struct {
	// Tags names the meta, data and pagination keys. Blank fields use the defaults.
	Tags envelope.Tags

	// WantsJSON decides whether the client asked for JSON. Defaults to WantsJSON.
	WantsJSON func(*http.Request) bool

	// Skip exempts matching requests from enveloping
	Skip func(*http.Request) bool

	// BeforeResponding may adjust the captured response, for example to add
	// headers or meta, before the envelope is built. A nil result keeps the
	// captured response.
	BeforeResponding func(*http.Request, *envelope.Response) *envelope.Response

	// ErrorHandler writes the response when the envelope cannot be built.
	// Defaults to a plain 500 Internal Server Error.
	ErrorHandler func(http.ResponseWriter, *http.Request, error)

	// Observer is notified of every outcome (optional)
	Observer Observer

	// Logger for build failures. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Envelope returns a middleware that wraps the JSON body of every response in
// the standard envelope when the client wants JSON. The handler's output is
// buffered until it returns; requests that do not want JSON are untouched.
func Envelope(cfg EnvelopeConfig) Middleware {
	tags := envelope.NewTags(cfg.Tags.Meta, cfg.Tags.Data, cfg.Tags.Pagination)

	wantsJSON := cfg.WantsJSON
	if wantsJSON == nil {
		wantsJSON = WantsJSON
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	errorHandler := cfg.ErrorHandler
	if errorHandler == nil {
		errorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !wantsJSON(r) || (cfg.Skip != nil && cfg.Skip(r)) {
				next.ServeHTTP(w, r)
				return
			}

			ew := newEnvelopeWriter(w)
			next.ServeHTTP(ew, r)
			resp := ew.finish()

			if !resp.Bypass && cfg.BeforeResponding != nil {
				if hooked := cfg.BeforeResponding(r, resp); hooked != nil {
					resp = hooked
				}
			}

			if resp.Bypass {
				if cfg.Observer != nil {
					cfg.Observer.ObserveBypass()
				}
				writeResponse(w, resp)
				return
			}

			if _, err := envelope.Build(resp, tags); err != nil {
				logger.Error("Failed to build response envelope",
					zap.Error(err),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", resp.Status),
					zap.String("source", string(envelope.KindOf(resp.Source))),
				)
				if cfg.Observer != nil {
					cfg.Observer.ObserveFailure()
				}
				errorHandler(w, r, err)
				return
			}

			if cfg.Observer != nil {
				cfg.Observer.ObserveEnvelope(envelope.StatusLabel(resp.Status), envelope.KindOf(resp.Source), len(resp.Body))
			}

			w.Header().Del("Content-Length")
			w.Header().Set("Content-Type", "application/json")
			writeResponse(w, resp)
		})
	}
}

func writeResponse(w http.ResponseWriter, resp *envelope.Response) {
	header := w.Header()
	for k, v := range resp.Header {
		header[k] = v
	}
	w.WriteHeader(resp.Status)
	if len(resp.Body) > 0 && bodyAllowed(resp.Status) {
		_, _ = w.Write(resp.Body)
	}
}

// bodyAllowed mirrors net/http: 1xx, 204 and 304 responses carry no body.
func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

// envelopeWriter buffers a handler's response and carries it for enveloping.
type envelopeWriter struct {
	http.ResponseWriter
	resp        *envelope.Response
	body        bytes.Buffer
	wroteHeader bool
}

func newEnvelopeWriter(w http.ResponseWriter) *envelopeWriter {
	return &envelopeWriter{
		ResponseWriter: w,
		resp: &envelope.Response{
			Status: http.StatusOK,
			Header: w.Header(),
		},
	}
}

// WriteHeader records the first status code; nothing reaches the client yet.
func (ew *envelopeWriter) WriteHeader(statusCode int) {
	if ew.wroteHeader {
		return
	}
	ew.wroteHeader = true
	ew.resp.Status = statusCode
}

// Write buffers b.
func (ew *envelopeWriter) Write(b []byte) (int, error) {
	if !ew.wroteHeader {
		ew.WriteHeader(http.StatusOK)
	}
	return ew.body.Write(b)
}

// Flush is a no-op; the body is sent once the envelope is built.
func (ew *envelopeWriter) Flush() {}

// Unwrap returns the client writer.
func (ew *envelopeWriter) Unwrap() http.ResponseWriter {
	return ew.ResponseWriter
}

// EnvelopeResponse implements envelope.Carrier.
func (ew *envelopeWriter) EnvelopeResponse() *envelope.Response {
	return ew.resp
}

func (ew *envelopeWriter) finish() *envelope.Response {
	ew.resp.Body = ew.body.Bytes()
	return ew.resp
}
