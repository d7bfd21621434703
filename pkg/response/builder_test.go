package response

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Suhaibinator/shovel/pkg/envelope"
	"github.com/Suhaibinator/shovel/pkg/middleware"
)

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func enveloped(h http.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept", "application/json")
	rr := httptest.NewRecorder()
	middleware.Envelope(middleware.EnvelopeConfig{})(h).ServeHTTP(rr, req)
	return rr
}

func TestSendWithoutEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	err := New().
		Status(http.StatusCreated).
		Header("X-Id", "1").
		WithMeta("ignored", true).
		JSON(user{ID: 1, Name: "ada"}).
		Send(rr)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if rr.Code != http.StatusCreated {
		t.Errorf("Expected status code %d, got %d", http.StatusCreated, rr.Code)
	}
	if rr.Body.String() != `{"id":1,"name":"ada"}` {
		t.Errorf("Unexpected body %s", rr.Body.String())
	}
	if rr.Header().Get("Content-Type") != "application/json" || rr.Header().Get("X-Id") != "1" {
		t.Errorf("Unexpected headers %v", rr.Header())
	}
}

func TestSendWithMeta(t *testing.T) {
	rr := enveloped(func(w http.ResponseWriter, r *http.Request) {
		err := New().
			WithMeta("region", "eu").
			WithMeta("limits.remaining", 9).
			JSON([]string{"a"}).
			Send(w)
		if err != nil {
			t.Errorf("Send failed: %v", err)
		}
	})

	expected := `{"meta":{"code":200,"status":"success","message":"OK","region":"eu","limits":{"remaining":9}},"data":["a"]}`
	if rr.Body.String() != expected {
		t.Errorf("Expected body %s, got %s", expected, rr.Body.String())
	}
}

func TestSendInvalidMeta(t *testing.T) {
	enveloped(func(w http.ResponseWriter, r *http.Request) {
		if err := New().WithMeta("", 1).Send(w); err == nil {
			t.Error("Expected an error for an empty meta key")
		}
	})
}

func TestSendUnencodablePayload(t *testing.T) {
	rr := httptest.NewRecorder()
	if err := New().JSON(math.Inf(1)).Send(rr); err == nil {
		t.Error("Expected an encode error")
	}
}

func TestSendNoContent(t *testing.T) {
	rr := httptest.NewRecorder()
	if err := New().Status(http.StatusNoContent).JSON(map[string]int{"a": 1}).Send(rr); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("Expected empty body, got %s", rr.Body.String())
	}
	if rr.Header().Get("Content-Type") != "" {
		t.Errorf("Expected no content type, got %q", rr.Header().Get("Content-Type"))
	}
}

func TestPaginated(t *testing.T) {
	page := envelope.NewPage([]user{{ID: 1, Name: "ada"}}, 3, 1, 3, 1)

	rr := enveloped(func(w http.ResponseWriter, r *http.Request) {
		if err := Paginated(w, http.StatusOK, page); err != nil {
			t.Errorf("Paginated failed: %v", err)
		}
	})
	expected := `{"meta":{"code":200,"status":"success","message":"OK","pagination":{"records":3,"page":1,"pages":3,"limit":1}},"data":[{"id":1,"name":"ada"}]}`
	if rr.Body.String() != expected {
		t.Errorf("Expected body %s, got %s", expected, rr.Body.String())
	}

	// Without the envelope the paginator keeps its own shape
	plain := httptest.NewRecorder()
	if err := Paginated(plain, http.StatusOK, page); err != nil {
		t.Fatalf("Paginated failed: %v", err)
	}
	expected = `{"data":[{"id":1,"name":"ada"}],"total":3,"current_page":1,"last_page":3,"per_page":1}`
	if plain.Body.String() != expected {
		t.Errorf("Expected body %s, got %s", expected, plain.Body.String())
	}
}

func TestResource(t *testing.T) {
	page := envelope.NewPage([]user{{ID: 1, Name: "ada"}, {ID: 2, Name: "bob"}}, 2, 1, 1, 10)
	names := envelope.NewCollection(page, func(u user) string { return u.Name })

	rr := enveloped(func(w http.ResponseWriter, r *http.Request) {
		if err := New().Resource(names).Send(w); err != nil {
			t.Errorf("Send failed: %v", err)
		}
	})

	expected := `{"meta":{"code":200,"status":"success","message":"OK","pagination":{"records":2,"page":1,"pages":1,"limit":10}},"data":[{"id":1,"name":"ada"},{"id":2,"name":"bob"}]}`
	if rr.Body.String() != expected {
		t.Errorf("Expected body %s, got %s", expected, rr.Body.String())
	}
}

func TestBypass(t *testing.T) {
	rr := enveloped(func(w http.ResponseWriter, r *http.Request) {
		if err := New().Bypass().JSON(map[string]bool{"raw": true}).Send(w); err != nil {
			t.Errorf("Send failed: %v", err)
		}
	})

	if rr.Body.String() != `{"raw":true}` {
		t.Errorf("Expected raw body, got %s", rr.Body.String())
	}
}

func TestHelpers(t *testing.T) {
	rr := enveloped(func(w http.ResponseWriter, r *http.Request) {
		if err := WithMeta(w, "hint", "retry later"); err != nil {
			t.Errorf("WithMeta failed: %v", err)
		}
		if err := Error(w, http.StatusServiceUnavailable, "busy"); err != nil {
			t.Errorf("Error failed: %v", err)
		}
	})

	expected := `{"meta":{"code":503,"status":"error","message":"Service Unavailable","hint":"retry later"},"data":{"error":"busy"}}`
	if rr.Body.String() != expected {
		t.Errorf("Expected body %s, got %s", expected, rr.Body.String())
	}

	if err := WithMeta(httptest.NewRecorder(), "hint", 1); err != nil {
		t.Errorf("Expected WithMeta without an envelope to be a no-op, got %v", err)
	}
}
