package aggregation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/autom8ter/nanomongo/document"
)

// Run executes plan in order against docs, the source collection's full
// scan, and returns the resulting batch.
func Run(plan []Stage, docs []document.Doc) ([]document.Doc, error) {
	out := docs
	for _, stage := range plan {
		var err error
		out, err = runStage(stage, out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func runStage(stage Stage, docs []document.Doc) ([]document.Doc, error) {
	switch stage.Kind {
	case KindMatch:
		return lo.Filter(docs, func(d document.Doc, _ int) bool { return matchesFilter(d, stage.Filter) }), nil
	case KindSkip:
		if stage.N >= len(docs) {
			return nil, nil
		}
		return docs[stage.N:], nil
	case KindLimit:
		if stage.N >= len(docs) {
			return docs, nil
		}
		return docs[:stage.N], nil
	case KindOrderBy:
		return sortDocs(docs, stage.KeyOrder), nil
	case KindProject:
		return lo.Map(docs, func(d document.Doc, _ int) document.Doc { return project(d, stage.Projection) }), nil
	case KindGroup:
		return group(docs, stage.GroupSpec)
	case KindAddFields:
		return lo.Map(docs, func(d document.Doc, _ int) document.Doc { return addFields(d, stage.FieldSpec) }), nil
	case KindUnwind:
		return unwind(docs, stage.FieldPath), nil
	default:
		return docs, nil
	}
}

func matchesFilter(d document.Doc, filter document.Doc) bool {
	if filter.Len() == 0 {
		return true
	}
	for _, e := range filter {
		actual, ok := d.Path(e.Key)
		if !ok || fmt.Sprintf("%v", actual) != fmt.Sprintf("%v", e.Value) {
			return false
		}
	}
	return true
}

func sortDocs(docs []document.Doc, keyOrder document.Doc) []document.Doc {
	out := make([]document.Doc, len(docs))
	copy(out, docs)
	sort.SliceStable(out, func(i, j int) bool {
		for _, e := range keyOrder {
			dir := cast.ToInt(e.Value)
			a, _ := out[i].Path(e.Key)
			b, _ := out[j].Path(e.Key)
			as, bs := fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)
			if as == bs {
				continue
			}
			if dir < 0 {
				return as > bs
			}
			return as < bs
		}
		return false
	})
	return out
}

func project(d document.Doc, projection document.Doc) document.Doc {
	if projection.Len() == 0 {
		return d
	}
	exclusionOnly := true
	for _, e := range projection {
		if truthy(e.Value) {
			exclusionOnly = false
		}
	}
	if exclusionOnly {
		out := d.Clone()
		for _, e := range projection {
			if !truthy(e.Value) {
				out = out.Delete(e.Key)
			}
		}
		return out
	}
	out := document.Doc{}
	if id, ok := d.Get("_id"); ok {
		if v, present := projection.Get("_id"); !present || truthy(v) {
			out = out.Set("_id", id)
		}
	}
	for _, e := range projection {
		if e.Key == "_id" || !truthy(e.Value) {
			continue
		}
		if v, ok := d.Path(e.Key); ok {
			out = out.Set(e.Key, v)
		}
	}
	return out
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return v != nil
	}
}

func addFields(d document.Doc, spec document.Doc) document.Doc {
	out := d.Clone()
	for _, e := range spec {
		out = out.Set(e.Key, resolveExpr(d, e.Value))
	}
	return out
}

func resolveExpr(d document.Doc, expr any) any {
	if s, ok := expr.(string); ok && strings.HasPrefix(s, "$") {
		v, _ := d.Path(strings.TrimPrefix(s, "$"))
		return v
	}
	return expr
}

func unwind(docs []document.Doc, fieldPath string) []document.Doc {
	field := strings.TrimPrefix(fieldPath, "$")
	var out []document.Doc
	for _, d := range docs {
		v, ok := d.Path(field)
		items, isSlice := v.([]any)
		if !ok || !isSlice || len(items) == 0 {
			out = append(out, d)
			continue
		}
		for _, item := range items {
			clone, err := d.SetPath(field, item)
			if err != nil {
				out = append(out, d)
				continue
			}
			out = append(out, clone)
		}
	}
	return out
}

func group(docs []document.Doc, spec document.Doc) ([]document.Doc, error) {
	idExpr, _ := spec.Get("_id")
	accumulators := spec.Delete("_id")

	type bucket struct {
		key    any
		docs   []document.Doc
	}
	order := make([]string, 0)
	buckets := make(map[string]*bucket)
	for _, d := range docs {
		key := resolveExpr(d, idExpr)
		keyStr := fmt.Sprintf("%v", key)
		b, ok := buckets[keyStr]
		if !ok {
			b = &bucket{key: key}
			buckets[keyStr] = b
			order = append(order, keyStr)
		}
		b.docs = append(b.docs, d)
	}

	out := make([]document.Doc, 0, len(order))
	for _, keyStr := range order {
		b := buckets[keyStr]
		result := document.New("_id", b.key)
		for _, e := range accumulators {
			accDoc := asDoc(e.Value)
			result = result.Set(e.Key, applyAccumulator(accDoc, b.docs))
		}
		out = append(out, result)
	}
	return out, nil
}

func applyAccumulator(accDoc document.Doc, docs []document.Doc) any {
	for _, e := range accDoc {
		switch e.Key {
		case "$sum":
			var total float64
			for _, d := range docs {
				total += cast.ToFloat64(resolveExpr(d, e.Value))
			}
			return total
		case "$avg":
			if len(docs) == 0 {
				return 0
			}
			var total float64
			for _, d := range docs {
				total += cast.ToFloat64(resolveExpr(d, e.Value))
			}
			return total / float64(len(docs))
		case "$min":
			var min float64
			for i, d := range docs {
				v := cast.ToFloat64(resolveExpr(d, e.Value))
				if i == 0 || v < min {
					min = v
				}
			}
			return min
		case "$max":
			var max float64
			for i, d := range docs {
				v := cast.ToFloat64(resolveExpr(d, e.Value))
				if i == 0 || v > max {
					max = v
				}
			}
			return max
		case "$push":
			values := make([]any, 0, len(docs))
			for _, d := range docs {
				values = append(values, resolveExpr(d, e.Value))
			}
			return values
		case "$first":
			if len(docs) == 0 {
				return nil
			}
			return resolveExpr(docs[0], e.Value)
		case "$last":
			if len(docs) == 0 {
				return nil
			}
			return resolveExpr(docs[len(docs)-1], e.Value)
		}
	}
	return nil
}
