package envelope

import "strings"

// Default envelope key names.
const (
	DefaultMetaTag       = "meta"
	DefaultDataTag       = "data"
	DefaultPaginationTag = "pagination"
)

// Tags names the top-level envelope slots.
type Tags struct {
	Meta       string // Key of the meta block
	Data       string // Key of the payload
	Pagination string // Key of the pagination block inside meta
}

// DefaultTags returns meta, data and pagination.
func DefaultTags() Tags {
	return Tags{
		Meta:       DefaultMetaTag,
		Data:       DefaultDataTag,
		Pagination: DefaultPaginationTag,
	}
}

// NewTags builds Tags from positional overrides in the order meta, data,
// pagination. Missing or blank positions keep their default; extra values are ignored.
func NewTags(opts ...string) Tags {
	var t Tags
	fields := []*string{&t.Meta, &t.Data, &t.Pagination}
	for i, opt := range opts {
		if i >= len(fields) {
			break
		}
		*fields[i] = strings.TrimSpace(opt)
	}
	return t.withDefaults()
}

func (t Tags) withDefaults() Tags {
	if t.Meta == "" {
		t.Meta = DefaultMetaTag
	}
	if t.Data == "" {
		t.Data = DefaultDataTag
	}
	if t.Pagination == "" {
		t.Pagination = DefaultPaginationTag
	}
	return t
}
