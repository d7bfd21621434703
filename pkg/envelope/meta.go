package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrEmptyMetaKey is returned when Meta.Set is called with a blank key.
var ErrEmptyMetaKey = errors.New("envelope: empty meta key")

// Meta holds caller-supplied metadata merged into the envelope meta block.
// Entries keep their insertion order. The zero value is ready to use.
type Meta struct {
	raw []byte
}

// Set stores value under key. Dots in key separate nested objects, so
// "page.cursor" yields {"page":{"cursor":value}}. A numeric segment indexes
// an array only when it extends one contiguously ("ids.0", then "ids.1");
// otherwise it is an object key, so "ids.2" yields {"ids":{"2":value}}.
func (m *Meta) Set(key string, value any) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyMetaKey
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("envelope: encode meta %q: %w", key, err)
	}

	doc := m.bytes()
	segments := strings.Split(key, ".")
	path := make([]string, 0, len(segments))
	parent := make([]string, 0, len(segments))
	for _, s := range segments {
		escaped := escapeSegment(s)
		if isIndex(s) && !extendsArray(doc, parent, s) {
			path = append(path, ":"+escaped)
		} else {
			path = append(path, escaped)
		}
		parent = append(parent, escaped)
	}

	updated, err := sjson.SetRawBytes(doc, strings.Join(path, "."), encoded)
	if err != nil {
		return fmt.Errorf("envelope: set meta %q: %w", key, err)
	}
	m.raw = updated
	return nil
}

// Merge copies the top-level entries of other into m, overwriting collisions.
func (m *Meta) Merge(other *Meta) error {
	if other == nil || other.Len() == 0 {
		return nil
	}
	merged, err := other.mergeInto(m.bytes())
	if err != nil {
		return fmt.Errorf("envelope: merge meta: %w", err)
	}
	m.raw = merged
	return nil
}

// Get returns the value stored at the dot-delimited key.
func (m *Meta) Get(key string) (any, bool) {
	res := gjson.GetBytes(m.bytes(), key)
	if !res.Exists() {
		return nil, false
	}
	return res.Value(), true
}

// Len returns the number of top-level entries.
func (m *Meta) Len() int {
	n := 0
	gjson.ParseBytes(m.bytes()).ForEach(func(_, _ gjson.Result) bool {
		n++
		return true
	})
	return n
}

// MarshalJSON implements json.Marshaler.
func (m Meta) MarshalJSON() ([]byte, error) {
	return m.bytes(), nil
}

// mergeInto copies the top-level entries onto the object in dst.
// Colliding keys are overwritten in place.
func (m *Meta) mergeInto(dst []byte) ([]byte, error) {
	var err error
	gjson.ParseBytes(m.bytes()).ForEach(func(key, value gjson.Result) bool {
		dst, err = sjson.SetRawBytes(dst, objectKey(key.String()), []byte(value.Raw))
		return err == nil
	})
	return dst, err
}

func (m *Meta) bytes() []byte {
	if len(m.raw) == 0 {
		return []byte("{}")
	}
	return m.raw
}

// isIndex reports whether s consists of digits only, which the path syntax
// would read as an array index.
func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// extendsArray reports whether index seg of the value at parent is an array
// slot: an existing element, the next append position, or the first element
// of a value that does not exist yet. The meta block itself is always an object.
func extendsArray(doc []byte, parent []string, seg string) bool {
	if len(parent) == 0 || (len(seg) > 1 && seg[0] == '0') {
		return false
	}
	idx, err := strconv.Atoi(seg)
	if err != nil {
		return false
	}
	res := gjson.GetBytes(doc, strings.Join(parent, "."))
	if !res.Exists() {
		return idx == 0
	}
	return res.IsArray() && idx <= len(res.Array())
}

// escapeSegment escapes the path syntax characters of a single key segment.
func escapeSegment(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\', '.', '*', '?', '|', '#', '@', ':', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// objectKey turns a literal key into a path that always addresses an
// object member, even when the key is numeric.
func objectKey(s string) string {
	return ":" + escapeSegment(s)
}
