package middleware

import (
	"net/http"
	"strings"

	"github.com/munnerz/goautoneg"
)

// WantsJSON reports whether the client prefers a JSON reply: the most
// preferred media range of the Accept header must be a JSON type, such as
// application/json or application/problem+json. Wildcards do not count.
func WantsJSON(r *http.Request) bool {
	accept := strings.Join(r.Header.Values("Accept"), ",")
	if strings.TrimSpace(accept) == "" {
		return false
	}

	ranges := goautoneg.ParseAccept(accept)
	if len(ranges) == 0 {
		return false
	}

	mediaType := strings.ToLower(ranges[0].Type + "/" + ranges[0].SubType)
	return strings.Contains(mediaType, "/json") || strings.Contains(mediaType, "+json")
}
