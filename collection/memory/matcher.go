package memory

import (
	"fmt"

	"github.com/autom8ter/nanomongo/document"
)

// unwrapLegacyEnvelope splits the legacy {$query, $orderby} wrapper the
// find command assembles (spec.md §4.3) back into a filter and sort doc.
func unwrapLegacyEnvelope(selector document.Doc) (filter, sortDoc document.Doc) {
	if selector == nil {
		return nil, nil
	}
	q, hasQuery := selector.Get("$query")
	ob, hasOrderBy := selector.Get("$orderby")
	if !hasQuery && !hasOrderBy {
		return selector, nil
	}
	if qd, ok := q.(document.Doc); ok {
		filter = qd
	}
	if obd, ok := ob.(document.Doc); ok {
		sortDoc = obd
	}
	return filter, sortDoc
}

// matches reports whether d satisfies filter. An empty or nil filter
// matches everything. Each top-level field is ANDed; a value that is
// itself a Doc of operator keys ($eq/$ne/$gt/$gte/$lt/$lte/$in) is treated
// as a comparison; otherwise it's an equality match.
func matches(d document.Doc, filter document.Doc) bool {
	if len(filter) == 0 {
		return true
	}
	for _, e := range filter {
		actual, ok := d.Path(e.Key)
		if opDoc, isOpDoc := asOperatorDoc(e.Value); isOpDoc {
			if !matchOperators(actual, ok, opDoc) {
				return false
			}
			continue
		}
		if !ok || compareValues(actual, e.Value) != 0 {
			return false
		}
	}
	return true
}

func asOperatorDoc(v any) (document.Doc, bool) {
	d, ok := v.(document.Doc)
	if !ok || len(d) == 0 {
		return nil, false
	}
	for _, e := range d {
		if len(e.Key) == 0 || e.Key[0] != '$' {
			return nil, false
		}
	}
	return d, true
}

func matchOperators(actual any, present bool, ops document.Doc) bool {
	for _, e := range ops {
		switch e.Key {
		case "$eq":
			if !present || compareValues(actual, e.Value) != 0 {
				return false
			}
		case "$ne":
			if present && compareValues(actual, e.Value) == 0 {
				return false
			}
		case "$gt":
			if !present || compareValues(actual, e.Value) <= 0 {
				return false
			}
		case "$gte":
			if !present || compareValues(actual, e.Value) < 0 {
				return false
			}
		case "$lt":
			if !present || compareValues(actual, e.Value) >= 0 {
				return false
			}
		case "$lte":
			if !present || compareValues(actual, e.Value) > 0 {
				return false
			}
		case "$in":
			if !present || !containsValue(e.Value, actual) {
				return false
			}
		case "$exists":
			if present != truthy(e.Value) {
				return false
			}
		}
	}
	return true
}

func containsValue(list any, value any) bool {
	items, ok := list.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if compareValues(item, value) == 0 {
			return true
		}
	}
	return false
}

// compareValues orders two values, coercing numeric types so 1, int32(1)
// and float64(1) compare equal.
func compareValues(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as := fmt.Sprintf("%v", a)
	bs := fmt.Sprintf("%v", b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

// applyUpdate applies a MongoDB-style update document to d, returning the
// updated document and whether anything actually changed. An update doc
// with no $-prefixed keys is a full replacement, preserving _id.
func applyUpdate(d document.Doc, update document.Doc) (document.Doc, bool, error) {
	if !hasOperators(update) {
		id := d.ID()
		replacement := update.Clone()
		if id != nil {
			replacement = replacement.Set("_id", id)
		}
		return replacement, !docsEqual(d, replacement), nil
	}

	out := d
	changed := false
	var err error
	for _, e := range update {
		ops, _ := e.Value.(document.Doc)
		switch e.Key {
		case "$set":
			for _, field := range ops {
				out, err = out.SetPath(field.Key, field.Value)
				if err != nil {
					return d, false, err
				}
				changed = true
			}
		case "$unset":
			for _, field := range ops {
				out, err = out.DeletePath(field.Key)
				if err != nil {
					return d, false, err
				}
				changed = true
			}
		case "$inc":
			for _, field := range ops {
				current, _ := out.Path(field.Key)
				cur, _ := toFloat(current)
				delta, _ := toFloat(field.Value)
				out, err = out.SetPath(field.Key, cur+delta)
				if err != nil {
					return d, false, err
				}
				changed = true
			}
		}
	}
	return out, changed, nil
}

func hasOperators(update document.Doc) bool {
	for _, e := range update {
		if len(e.Key) > 0 && e.Key[0] == '$' {
			return true
		}
	}
	return false
}

func docsEqual(a, b document.Doc) bool {
	ajson, _ := a.ToJSON()
	bjson, _ := b.ToJSON()
	return string(ajson) == string(bjson)
}

// buildUpsertDoc synthesizes the document an upsert creates when nothing
// matched: the selector's equality fields merged with the update applied
// on top of an empty document.
func buildUpsertDoc(selector document.Doc, update document.Doc) document.Doc {
	base := document.Doc{}
	for _, e := range selector {
		if _, isOpDoc := asOperatorDoc(e.Value); isOpDoc {
			continue
		}
		base = base.Set(e.Key, e.Value)
	}
	merged, _, _ := applyUpdate(base, update)
	return merged
}
