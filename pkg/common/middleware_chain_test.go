package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func tagging(name string, order *[]string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*order = append(*order, name+"-before")
			next.ServeHTTP(w, r)
			*order = append(*order, name+"-after")
		})
	}
}

func TestMiddlewareChainOrder(t *testing.T) {
	var order []string

	chain := NewMiddlewareChain(tagging("b", &order)).
		Append(tagging("c", &order)).
		Prepend(tagging("a", &order))

	handler := chain.ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "http://example.com/foo", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	expected := []string{
		"a-before",
		"b-before",
		"c-before",
		"handler",
		"c-after",
		"b-after",
		"a-after",
	}
	if len(order) != len(expected) {
		t.Fatalf("Expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("Expected call %d to be %q, got %q", i, v, order[i])
		}
	}
}

func TestMiddlewareChainAppendDoesNotAlias(t *testing.T) {
	var order []string

	base := make(MiddlewareChain, 0, 4)
	base = base.Append(tagging("base", &order))
	first := base.Append(tagging("first", &order))
	second := base.Append(tagging("second", &order))

	first.ThenFunc(func(w http.ResponseWriter, r *http.Request) {}).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if len(order) != 4 || order[1] != "first-before" {
		t.Errorf("Expected first chain to run its own middleware, got %v", order)
	}
	if len(second) != 2 {
		t.Errorf("Expected second chain to have 2 middlewares, got %d", len(second))
	}
}

func TestEmptyMiddlewareChainSkipsNil(t *testing.T) {
	chain := NewMiddlewareChain(nil)

	handler := chain.Then(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}))

	req := httptest.NewRequest("GET", "http://example.com/foo", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("Expected body %q, got %q", "OK", w.Body.String())
	}
}
