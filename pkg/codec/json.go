// Package codec provides request decoding and response encoding for typed routes.
package codec

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Suhaibinator/shovel/pkg/envelope"
	"github.com/Suhaibinator/shovel/pkg/response"
)

// JSONCodec is a codec that uses JSON for marshaling and unmarshaling.
// It implements the router's Codec interface. Responses that are paginators
// or resources are tagged as such so the envelope carries pagination meta.
type JSONCodec[T any, U any] struct {
	// DisallowUnknownFields rejects request bodies with fields T does not declare
	DisallowUnknownFields bool

	// Status is the success status code (default 200)
	Status int
}

// Decode decodes the request body into a value of type T.
func (c *JSONCodec[T, U]) Decode(r *http.Request) (T, error) {
	var data T
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if c.DisallowUnknownFields {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&data); err != nil {
		return data, fmt.Errorf("codec: decode JSON body: %w", err)
	}
	return data, nil
}

// Encode writes resp through the response builder.
func (c *JSONCodec[T, U]) Encode(w http.ResponseWriter, resp U) error {
	status := c.Status
	if status == 0 {
		status = http.StatusOK
	}

	b := response.New().Status(status)
	switch v := any(resp).(type) {
	case envelope.Paginator:
		b.Paginate(v)
	case envelope.Resource:
		b.Resource(v)
	default:
		b.JSON(resp)
	}
	return b.Send(w)
}

// NewJSONCodec creates a new JSONCodec instance for the specified types.
// T represents the request type and U represents the response type.
func NewJSONCodec[T any, U any]() *JSONCodec[T, U] {
	return &JSONCodec[T, U]{}
}
