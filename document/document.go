// Package document defines the BSON-backed Document type that travels
// across the command dispatcher's boundary: command parameters, collection
// contents, and command responses are all Docs. BSON document
// representation and operator evaluation are named external collaborators
// in the core's design (see SPEC_FULL.md §1); this package is the one
// concrete representation the module ships so the catalog, router, and
// aggregation planner can be exercised against real data.
package document

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.mongodb.org/mongo-driver/bson"
)

// Doc is an ordered BSON document, the wire type used for command params,
// stored documents, and responses.
type Doc bson.D

// New builds a Doc from key/value pairs given in order, e.g.
// New("ok", 1, "n", 3).
func New(kv ...any) Doc {
	d := Doc{}
	for i := 0; i+1 < len(kv); i += 2 {
		d = d.Set(kv[i].(string), kv[i+1])
	}
	return d
}

// FromMap builds a Doc from an unordered map, sorting keys for determinism.
func FromMap(m map[string]any) Doc {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d := Doc{}
	for _, k := range keys {
		d = append(d, bson.E{Key: k, Value: m[k]})
	}
	return d
}

// Get returns the value stored at key and whether it was present.
func (d Doc) Get(key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// GetOr returns the value at key, or def if absent.
func (d Doc) GetOr(key string, def any) any {
	if v, ok := d.Get(key); ok {
		return v
	}
	return def
}

// Has reports whether key is present.
func (d Doc) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// Set returns a copy of d with key set to value, replacing any existing
// entry in place or appending if new.
func (d Doc) Set(key string, value any) Doc {
	out := make(Doc, len(d))
	copy(out, d)
	for i, e := range out {
		if e.Key == key {
			out[i].Value = value
			return out
		}
	}
	return append(out, bson.E{Key: key, Value: value})
}

// Delete returns a copy of d with key removed.
func (d Doc) Delete(key string) Doc {
	out := make(Doc, 0, len(d))
	for _, e := range d {
		if e.Key != key {
			out = append(out, e)
		}
	}
	return out
}

// Keys returns the document's field names in order.
func (d Doc) Keys() []string {
	keys := make([]string, 0, len(d))
	for _, e := range d {
		keys = append(keys, e.Key)
	}
	return keys
}

// Len returns the number of top-level fields.
func (d Doc) Len() int {
	return len(d)
}

// Clone returns a shallow copy of d.
func (d Doc) Clone() Doc {
	out := make(Doc, len(d))
	copy(out, d)
	return out
}

// ToMap flattens d into a plain map, for callers that don't care about key
// order (e.g. mapstructure decoding into a typed struct).
func (d Doc) ToMap() map[string]any {
	m := make(map[string]any, len(d))
	for _, e := range d {
		m[e.Key] = e.Value
	}
	return m
}

// ToJSON renders d as JSON text, converting nested Docs recursively, so
// dotted-path tools (gjson/sjson) can operate on it.
func (d Doc) ToJSON() ([]byte, error) {
	return json.Marshal(toJSONValue(d))
}

func toJSONValue(v any) any {
	switch t := v.(type) {
	case Doc:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = toJSONValue(e.Value)
		}
		return m
	case bson.D:
		return toJSONValue(Doc(t))
	case bson.M:
		m := make(map[string]any, len(t))
		for k, v := range t {
			m[k] = toJSONValue(v)
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = toJSONValue(e)
		}
		return out
	case []Doc:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = toJSONValue(e)
		}
		return out
	default:
		return t
	}
}

// FromJSON parses JSON text produced by ToJSON/sjson back into a Doc,
// keeping the object's top-level keys in the order they appear in data.
func FromJSON(data []byte) (Doc, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	// data is valid JSON at this point, so the token walk below only
	// recovers the key order; values come from m.
	dec := json.NewDecoder(bytes.NewReader(data))
	d := Doc{}
	if tok, _ := dec.Token(); tok != json.Delim('{') {
		return d, nil
	}
	for dec.More() {
		key, _ := dec.Token()
		var skip json.RawMessage
		_ = dec.Decode(&skip)
		d = d.Set(key.(string), m[key.(string)])
	}
	return d, nil
}

// Path reads a dotted field path (e.g. "a.b.c") using gjson over the
// document's JSON rendering, matching values that live under nested
// Docs/Docs-in-slices.
func (d Doc) Path(path string) (any, bool) {
	bits, err := d.ToJSON()
	if err != nil {
		return nil, false
	}
	result := gjson.GetBytes(bits, path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

// SetPath writes a dotted field path, returning the updated Doc. Backs the
// $set/$unset update operators in collection/memory.
func (d Doc) SetPath(path string, value any) (Doc, error) {
	bits, err := d.ToJSON()
	if err != nil {
		return nil, err
	}
	out, err := sjson.SetBytes(bits, path, value)
	if err != nil {
		return nil, err
	}
	return FromJSON(out)
}

// DeletePath removes a dotted field path. Backs the $unset update operator.
func (d Doc) DeletePath(path string) (Doc, error) {
	bits, err := d.ToJSON()
	if err != nil {
		return nil, err
	}
	out, err := sjson.DeleteBytes(bits, path)
	if err != nil {
		return nil, err
	}
	return FromJSON(out)
}

// ID returns the document's identifier field, defaulting to "_id".
func (d Doc) ID() any {
	v, _ := d.Get("_id")
	return v
}
