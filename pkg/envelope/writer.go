package envelope

import "net/http"

// Carrier is implemented by response writers that capture a Response for
// enveloping. Handlers reach it through FromWriter.
type Carrier interface {
	EnvelopeResponse() *Response
}

// FromWriter returns the Response captured by w or by any writer it wraps.
// Wrapping writers are followed through their Unwrap method. A carrier that
// returns nil ends the search.
func FromWriter(w http.ResponseWriter) (*Response, bool) {
	for w != nil {
		if c, ok := w.(Carrier); ok {
			resp := c.EnvelopeResponse()
			return resp, resp != nil
		}
		u, ok := w.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			return nil, false
		}
		w = u.Unwrap()
	}
	return nil, false
}

// MarkBypass exempts the in-flight response from enveloping. It reports
// whether w carried a Response.
func MarkBypass(w http.ResponseWriter) bool {
	resp, ok := FromWriter(w)
	if ok {
		resp.Bypass = true
	}
	return ok
}
