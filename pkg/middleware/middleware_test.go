package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Suhaibinator/shovel/pkg/envelope"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestChain tests the Chain function
func TestChain(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+" before")
				next.ServeHTTP(w, r)
				order = append(order, name+" after")
			})
		}
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	})

	Chain(mark("m1"), mark("m2"))(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test", nil))

	expected := []string{"m1 before", "m2 before", "handler", "m2 after", "m1 after"}
	if len(order) != len(expected) {
		t.Fatalf("Expected %d middleware calls, got %d", len(expected), len(order))
	}
	for i, v := range order {
		if v != expected[i] {
			t.Errorf("Expected %q at position %d, got %q", expected[i], i, v)
		}
	}
}

// TestRecovery tests the Recovery middleware
func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core)

	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status code %d, got %d", http.StatusInternalServerError, rr.Code)
	}
	if logs.Len() != 1 {
		t.Fatalf("Expected 1 log entry, got %d", logs.Len())
	}
	if logs.All()[0].Message != "Panic recovered" {
		t.Errorf("Expected log message %q, got %q", "Panic recovered", logs.All()[0].Message)
	}
}

// TestRecoveryInsideEnvelope tests that a recovered panic is sent without an envelope
func TestRecoveryInsideEnvelope(t *testing.T) {
	handler := Chain(
		Envelope(EnvelopeConfig{}),
		Recovery(zap.NewNop()),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Accept", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status code %d, got %d", http.StatusInternalServerError, rr.Code)
	}
	if rr.Body.String() != "Internal Server Error\n" {
		t.Errorf("Expected plain error body, got %q", rr.Body.String())
	}
}

// TestLogging tests the Logging middleware levels and fields
func TestLogging(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		level   zapcore.Level
		message string
		outcome string
	}{
		{"success", http.StatusOK, zapcore.DebugLevel, "Request", envelope.StatusSuccess},
		{"client error", http.StatusNotFound, zapcore.WarnLevel, "Client error", envelope.StatusError},
		{"server error", http.StatusBadGateway, zapcore.ErrorLevel, "Server error", envelope.StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			handler := Chain(
				RequestID(RequestIDConfig{Generator: func() string { return "rid-1" }}),
				Logging(zap.New(core)),
			)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.WriteHeader(http.StatusTeapot)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test", nil))

			if logs.Len() != 1 {
				t.Fatalf("Expected 1 log entry, got %d", logs.Len())
			}
			entry := logs.All()[0]
			if entry.Level != tt.level || entry.Message != tt.message {
				t.Errorf("Expected %s %q, got %s %q", tt.level, tt.message, entry.Level, entry.Message)
			}
			fields := entry.ContextMap()
			if fields["status"] != int64(tt.status) {
				t.Errorf("Expected status field %d, got %v", tt.status, fields["status"])
			}
			if fields["outcome"] != tt.outcome {
				t.Errorf("Expected outcome %q, got %v", tt.outcome, fields["outcome"])
			}
			if fields["request_id"] != "rid-1" {
				t.Errorf("Expected request_id %q, got %v", "rid-1", fields["request_id"])
			}
		})
	}
}

// TestResponseWriterUnwrap tests that envelope.FromWriter sees through the logging writer
func TestResponseWriterUnwrap(t *testing.T) {
	var found bool
	handler := Chain(
		Envelope(EnvelopeConfig{}),
		Logging(zap.NewNop()),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = envelope.FromWriter(w)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Accept", "application/json")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !found {
		t.Error("Expected the envelope response to be reachable through the logging writer")
	}
}
