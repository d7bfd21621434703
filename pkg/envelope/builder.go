package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	// ErrMalformedBody is returned when a plain body is not valid JSON.
	ErrMalformedBody = errors.New("envelope: body is not valid JSON")

	// ErrNilPaginator is returned when a paginated or wrapped source has no paginator.
	ErrNilPaginator = errors.New("envelope: paginated source without paginator")
)

// Response is an outgoing response captured before it reaches the client.
type Response struct {
	Status int         // HTTP status code
	Header http.Header // Response headers, shared with the underlying writer
	Body   []byte      // Raw body, replaced by the envelope on Build
	Source Source      // What produced Body; nil means plain
	Meta   Meta        // Additional meta merged into the meta block
	Bypass bool        // Send Body untouched
}

// Pagination is the pagination block nested in the meta block.
type Pagination struct {
	Records int `json:"records"`
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	Limit   int `json:"limit"`
}

// PaginationOf reads the pagination block from p.
func PaginationOf(p Paginator) Pagination {
	return Pagination{
		Records: p.Total(),
		Page:    p.CurrentPage(),
		Pages:   p.LastPage(),
		Limit:   p.PerPage(),
	}
}

// Build replaces resp.Body with the envelope and returns resp.
//
// The meta block always carries code, status and message, followed by the
// entries of resp.Meta. An empty body yields an envelope without a data slot.
// Otherwise the data slot is filled from resp.Source: the paginator items for
// paginated and wrapped sources (with the pagination block added to meta),
// or the body itself for plain sources, which must then be valid JSON.
//
// Build is not idempotent; building an enveloped response wraps it again.
func Build(resp *Response, tags Tags) (*Response, error) {
	tags = tags.withDefaults()
	metaPath := objectKey(tags.Meta)

	meta, err := metaBlock(resp)
	if err != nil {
		return resp, err
	}
	out, err := sjson.SetRawBytes([]byte("{}"), metaPath, meta)
	if err != nil {
		return resp, fmt.Errorf("envelope: set meta block: %w", err)
	}

	if len(resp.Body) == 0 {
		resp.Body = out
		return resp, nil
	}

	var paginator Paginator
	switch src := resp.Source.(type) {
	case PaginatedSource:
		if src.Paginator == nil {
			return resp, ErrNilPaginator
		}
		paginator = src.Paginator
	case WrappedSource:
		if src.Resource == nil || src.Resource.Resource() == nil {
			return resp, ErrNilPaginator
		}
		paginator = src.Resource.Resource()
	}

	var data []byte
	if paginator != nil {
		block, err := json.Marshal(PaginationOf(paginator))
		if err != nil {
			return resp, fmt.Errorf("envelope: encode pagination: %w", err)
		}
		out, err = sjson.SetRawBytes(out, metaPath+"."+objectKey(tags.Pagination), block)
		if err != nil {
			return resp, fmt.Errorf("envelope: set pagination block: %w", err)
		}
		data, err = json.Marshal(paginator.Items())
		if err != nil {
			return resp, fmt.Errorf("envelope: encode items: %w", err)
		}
	} else {
		data = bytes.TrimSpace(resp.Body)
		if !gjson.ValidBytes(data) {
			return resp, fmt.Errorf("%w (status %d)", ErrMalformedBody, resp.Status)
		}
	}

	out, err = sjson.SetRawBytes(out, objectKey(tags.Data), data)
	if err != nil {
		return resp, fmt.Errorf("envelope: set data: %w", err)
	}
	resp.Body = out
	return resp, nil
}

func metaBlock(resp *Response) ([]byte, error) {
	block, err := json.Marshal(struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	}{
		Code:    resp.Status,
		Status:  StatusLabel(resp.Status),
		Message: StatusMessage(resp.Status),
	})
	if err != nil {
		return nil, err
	}
	block, err = resp.Meta.mergeInto(block)
	if err != nil {
		return nil, fmt.Errorf("envelope: merge meta: %w", err)
	}
	return block, nil
}
