package envelope

import "encoding/json"

// Paginator exposes a single page of an already-paginated result.
type Paginator interface {
	// Total returns the number of records across all pages.
	Total() int

	// CurrentPage returns the 1-based number of this page.
	CurrentPage() int

	// LastPage returns the number of the final page.
	LastPage() int

	// PerPage returns the page size.
	PerPage() int

	// Items returns the records on this page.
	Items() any
}

// Resource is a transformer wrapped around a paginator, such as a
// collection presenter. The envelope reads pagination and items through it.
type Resource interface {
	Resource() Paginator
}

// Kind identifies the variant of a Source.
type Kind string

const (
	KindPlain     Kind = "plain"
	KindPaginated Kind = "paginated"
	KindWrapped   Kind = "wrapped"
)

// Source records what produced a response body. It is one of PlainSource,
// PaginatedSource or WrappedSource; a nil Source is treated as plain.
type Source interface {
	Kind() Kind
}

// PlainSource marks a body that is passed through as the envelope data.
type PlainSource struct{}

// Kind implements Source.
func (PlainSource) Kind() Kind { return KindPlain }

// PaginatedSource marks a body produced directly from a paginator.
type PaginatedSource struct {
	Paginator Paginator
}

// Kind implements Source.
func (PaginatedSource) Kind() Kind { return KindPaginated }

// WrappedSource marks a body produced from a resource wrapping a paginator.
type WrappedSource struct {
	Resource Resource
}

// Kind implements Source.
func (WrappedSource) Kind() Kind { return KindWrapped }

// KindOf returns the kind of src, KindPlain for nil.
func KindOf(src Source) Kind {
	if src == nil {
		return KindPlain
	}
	return src.Kind()
}

// Page carries one page of records together with the counters the
// paginator contract needs. It does no paging of its own.
type Page[T any] struct {
	Data    []T `json:"data"`
	Records int `json:"total"`
	Current int `json:"current_page"`
	Last    int `json:"last_page"`
	Limit   int `json:"per_page"`
}

// NewPage returns a Page for items.
func NewPage[T any](items []T, total, current, last, perPage int) *Page[T] {
	if items == nil {
		items = make([]T, 0)
	}
	return &Page[T]{
		Data:    items,
		Records: total,
		Current: current,
		Last:    last,
		Limit:   perPage,
	}
}

func (p *Page[T]) Total() int       { return p.Records }
func (p *Page[T]) CurrentPage() int { return p.Current }
func (p *Page[T]) LastPage() int    { return p.Last }
func (p *Page[T]) PerPage() int     { return p.Limit }

// Items returns the page records, never nil.
func (p *Page[T]) Items() any {
	if p.Data == nil {
		return []T{}
	}
	return p.Data
}

// Collection presents a page of records through a per-item transform.
// Its JSON form is the transformed page; inside the envelope the data slot
// holds the inner page's items.
type Collection[T any, R any] struct {
	Inner     *Page[T]
	Transform func(T) R
}

// NewCollection wraps page with transform, which must not be nil.
func NewCollection[T any, R any](page *Page[T], transform func(T) R) *Collection[T, R] {
	return &Collection[T, R]{Inner: page, Transform: transform}
}

// Resource implements Resource.
func (c *Collection[T, R]) Resource() Paginator {
	if c.Inner == nil {
		return nil
	}
	return c.Inner
}

// Transformed returns the inner records mapped through Transform.
func (c *Collection[T, R]) Transformed() []R {
	if c.Inner == nil {
		return []R{}
	}
	out := make([]R, 0, len(c.Inner.Data))
	for _, item := range c.Inner.Data {
		out = append(out, c.Transform(item))
	}
	return out
}

// MarshalJSON encodes the collection as a page of transformed records.
func (c *Collection[T, R]) MarshalJSON() ([]byte, error) {
	if c.Inner == nil {
		return json.Marshal(NewPage[R](nil, 0, 0, 0, 0))
	}
	return json.Marshal(NewPage(c.Transformed(), c.Inner.Records, c.Inner.Current, c.Inner.Last, c.Inner.Limit))
}
