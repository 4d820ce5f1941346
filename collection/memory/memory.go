// Package memory is the one concrete collection.Collection implementation
// this module ships: a linear-scan, mutex-guarded in-memory store. It
// exists so the catalog, command router, and aggregation planner have a
// real collaborator to run against; full query/update operator evaluation
// remains explicitly out of scope (SPEC_FULL.md §1) — this engine supports
// only the operators needed to drive the dispatcher's documented behavior.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
	"github.com/segmentio/ksuid"

	"github.com/autom8ter/nanomongo/collection"
	"github.com/autom8ter/nanomongo/document"
	"github.com/autom8ter/nanomongo/errors"
	"github.com/autom8ter/nanomongo/index"
)

// newID mints a default _id for a document that omits one, the way this
// engine's default identifier generator does for every insert/upsert path.
func newID() string {
	return ksuid.New().String()
}

// Collection is a mutex-guarded, linear-scan document store.
type Collection struct {
	db   string
	name string

	mu      sync.RWMutex
	docs    []document.Doc
	byID    map[string]int
	indexes []index.Index
}

// New creates an empty in-memory collection identified as "<db>.<name>".
func New(db, name string) *Collection {
	return &Collection{
		db:   db,
		name: name,
		byID: map[string]int{},
	}
}

func (c *Collection) CollectionName() string { return c.name }
func (c *Collection) FullName() string       { return c.db + "." + c.name }
func (c *Collection) NumIndexes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.indexes)
}

func idKey(id any) string {
	return fmt.Sprintf("%v", id)
}

// indexValues extracts d's values at idx's fields, in order, for use as a
// unique index's composite key.
func indexValues(d document.Doc, keys []index.Key) []any {
	values := make([]any, len(keys))
	for i, k := range keys {
		v, _ := d.Path(k.Field)
		values[i] = v
	}
	return values
}

// reserveIndexes reserves d's values against every registered index that
// enforces uniqueness, rolling back whichever indexes it already reserved
// if a later one rejects the document.
func (c *Collection) reserveIndexes(id any, d document.Doc) error {
	reserved := make([]index.UniqueEnforcer, 0, len(c.indexes))
	var reservedValues [][]any
	for _, idx := range c.indexes {
		enforcer, ok := idx.(index.UniqueEnforcer)
		if !ok {
			continue
		}
		values := indexValues(d, idx.Keys())
		if err := enforcer.Reserve(id, values); err != nil {
			for i, prior := range reserved {
				prior.Release(reservedValues[i])
			}
			return err
		}
		reserved = append(reserved, enforcer)
		reservedValues = append(reservedValues, values)
	}
	return nil
}

// releaseIndexes vacates d's values from every registered unique index,
// the counterpart called when d is deleted or superseded.
func (c *Collection) releaseIndexes(d document.Doc) {
	for _, idx := range c.indexes {
		if enforcer, ok := idx.(index.UniqueEnforcer); ok {
			enforcer.Release(indexValues(d, idx.Keys()))
		}
	}
}

// reindex moves old's index reservations to updated, restoring old's
// values if updated's conflict with another document.
func (c *Collection) reindex(old, updated document.Doc) error {
	c.releaseIndexes(old)
	if err := c.reserveIndexes(updated.ID(), updated); err != nil {
		_ = c.reserveIndexes(old.ID(), old)
		return err
	}
	return nil
}

// Insert appends batch, rejecting any document whose _id collides with an
// existing one, or whose values collide on any other registered unique
// index.
func (c *Collection) Insert(batch []document.Doc) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range batch {
		id := d.ID()
		if id == nil {
			id = newID()
			d = d.Set("_id", id)
		}
		key := idKey(id)
		if _, exists := c.byID[key]; exists {
			return n, errors.New(11000, "DuplicateKey", "E11000 duplicate key error collection: %s index: _id_", c.FullName())
		}
		if err := c.reserveIndexes(id, d); err != nil {
			return n, err
		}
		c.docs = append(c.docs, d)
		c.byID[key] = len(c.docs) - 1
		n++
	}
	return n, nil
}

// UpdateDocuments applies update to every document matching selector (or
// only the first, unless multi), upserting a new document when upsert is
// true and nothing matched.
func (c *Collection) UpdateDocuments(selector, update document.Doc, multi, upsert bool) (collection.UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := collection.UpdateResult{}
	for i, d := range c.docs {
		if !matches(d, selector) {
			continue
		}
		updated, changed, err := applyUpdate(d, update)
		if err != nil {
			return result, err
		}
		if changed {
			if err := c.reindex(d, updated); err != nil {
				return result, err
			}
		}
		result.N++
		if changed {
			result.NModified++
			c.docs[i] = updated
		}
		if !multi {
			return result, nil
		}
	}
	if result.N == 0 && upsert {
		newDoc := buildUpsertDoc(selector, update)
		id := newDoc.ID()
		if id == nil {
			id = newID()
			newDoc = newDoc.Set("_id", id)
		}
		if err := c.reserveIndexes(id, newDoc); err != nil {
			return result, err
		}
		c.docs = append(c.docs, newDoc)
		c.byID[idKey(id)] = len(c.docs) - 1
		result.N = 1
		result.UpsertedID = id
	}
	return result, nil
}

// DeleteDocuments removes up to limit documents matching selector.
func (c *Collection) DeleteDocuments(selector document.Doc, limit int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit <= 0 {
		limit = len(c.docs)
	}
	kept := make([]document.Doc, 0, len(c.docs))
	n := 0
	for _, d := range c.docs {
		if n < limit && matches(d, selector) {
			n++
			c.releaseIndexes(d)
			continue
		}
		kept = append(kept, d)
	}
	c.docs = kept
	c.rebuildIDIndex()
	return n, nil
}

func (c *Collection) rebuildIDIndex() {
	c.byID = make(map[string]int, len(c.docs))
	for i, d := range c.docs {
		c.byID[idKey(d.ID())] = i
	}
}

type sliceIterator struct {
	docs []document.Doc
	pos  int
}

func (it *sliceIterator) Next() bool {
	it.pos++
	return it.pos <= len(it.docs)
}

func (it *sliceIterator) Doc() document.Doc {
	return it.docs[it.pos-1]
}

func (it *sliceIterator) Err() error { return nil }
func (it *sliceIterator) Close()     {}

// HandleQuery evaluates selector (which may be the legacy {$query, $orderby}
// envelope) against the collection, applying skip/limit/projection.
func (c *Collection) HandleQuery(selector document.Doc, skip, limit int, projection document.Doc) (collection.Iterator, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	filter, sortDoc := unwrapLegacyEnvelope(selector)
	matched := make([]document.Doc, 0, len(c.docs))
	for _, d := range c.docs {
		if matches(d, filter) {
			matched = append(matched, d)
		}
	}
	if len(sortDoc) > 0 {
		sortDocs(matched, sortDoc)
	}
	matched = applySkipLimit(matched, skip, limit)
	if projection != nil && len(projection) > 0 {
		matched = lo.Map(matched, func(d document.Doc, _ int) document.Doc {
			return applyProjection(d, projection)
		})
	}
	return &sliceIterator{docs: matched}, nil
}

// QueryAll returns every document in the collection, in insertion order.
func (c *Collection) QueryAll() collection.Iterator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	docs := make([]document.Doc, len(c.docs))
	copy(docs, c.docs)
	return &sliceIterator{docs: docs}
}

// Count returns the total number of documents.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// CountQuery counts documents matching query, honoring skip/limit (-1 means
// no limit), matching the count command's contract.
func (c *Collection) CountQuery(query document.Doc, skip, limit int) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	matchedSoFar := 0
	for _, d := range c.docs {
		if !matches(d, query) {
			continue
		}
		if matchedSoFar < skip {
			matchedSoFar++
			continue
		}
		matchedSoFar++
		if limit >= 0 && n >= limit {
			break
		}
		n++
	}
	return n, nil
}

// HandleDistinct implements the distinct command over a single field.
func (c *Collection) HandleDistinct(params document.Doc) (document.Doc, error) {
	field, _ := params.Get("key")
	fieldName, _ := field.(string)
	query, _ := params.Get("query")
	filter, _ := query.(document.Doc)

	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := map[string]bool{}
	var values []any
	for _, d := range c.docs {
		if filter != nil && !matches(d, filter) {
			continue
		}
		v, ok := d.Path(fieldName)
		if !ok {
			continue
		}
		key := fmt.Sprintf("%v", v)
		if !seen[key] {
			seen[key] = true
			values = append(values, v)
		}
	}
	return document.New("values", values, "ok", 1), nil
}

// FindAndModify implements the findAndModify command's core semantics:
// locate a document by query, optionally apply an update or delete it, and
// return either the pre- or post-image depending on "new".
func (c *Collection) FindAndModify(params document.Doc) (document.Doc, error) {
	query, _ := params.Get("query")
	filter, _ := query.(document.Doc)

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i, d := range c.docs {
		if matches(d, filter) {
			idx = i
			break
		}
	}

	remove, _ := params.Get("remove")
	if remove == true {
		if idx < 0 {
			return document.New("value", nil, "ok", 1), nil
		}
		old := c.docs[idx]
		c.docs = append(c.docs[:idx], c.docs[idx+1:]...)
		c.rebuildIDIndex()
		c.releaseIndexes(old)
		return document.New("value", old, "ok", 1), nil
	}

	update, _ := params.Get("update")
	updateDoc, _ := update.(document.Doc)
	upsert, _ := params.Get("upsert")
	returnNew, _ := params.Get("new")

	if idx < 0 {
		if upsert == true {
			newDoc := buildUpsertDoc(filter, updateDoc)
			id := newDoc.ID()
			if id == nil {
				id = newID()
				newDoc = newDoc.Set("_id", id)
			}
			if err := c.reserveIndexes(id, newDoc); err != nil {
				return document.Doc{}, err
			}
			c.docs = append(c.docs, newDoc)
			c.byID[idKey(id)] = len(c.docs) - 1
			return document.New("value", newDoc, "ok", 1), nil
		}
		return document.New("value", nil, "ok", 1), nil
	}

	old := c.docs[idx]
	updated, _, err := applyUpdate(old, updateDoc)
	if err != nil {
		return document.Doc{}, err
	}
	if err := c.reindex(old, updated); err != nil {
		return document.Doc{}, err
	}
	c.docs[idx] = updated
	if returnNew == true {
		return document.New("value", updated, "ok", 1), nil
	}
	return document.New("value", old, "ok", 1), nil
}

// AddIndex registers idx and, if it enforces uniqueness, backfills
// reservations for every document already stored — needed both when
// createIndexes attaches a new unique index to a non-empty collection and
// when bootstrap replay reattaches an index to a collection it just
// rehydrated from persisted state.
func (c *Collection) AddIndex(idx index.Index) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enforcer, ok := idx.(index.UniqueEnforcer); ok {
		for _, d := range c.docs {
			if err := enforcer.Reserve(d.ID(), indexValues(d, idx.Keys())); err != nil {
				return err
			}
		}
	}
	c.indexes = append(c.indexes, idx)
	return nil
}

// GetStats returns basic size/count statistics.
func (c *Collection) GetStats() collection.Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	size := int64(0)
	for _, d := range c.docs {
		bits, _ := d.ToJSON()
		size += int64(len(bits))
	}
	indexSize := map[string]int64{}
	for _, idx := range c.indexes {
		indexSize[idx.Name()] = int64(len(c.docs)) * 32
	}
	return collection.Stats{
		Count:     len(c.docs),
		Size:      size,
		IndexSize: indexSize,
	}
}

// Validate returns a minimal validate response.
func (c *Collection) Validate() document.Doc {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return document.New("ns", c.FullName(), "nrecords", len(c.docs), "nIndexes", len(c.indexes), "valid", true, "ok", 1)
}

// RenameTo changes the collection's database/name in place.
func (c *Collection) RenameTo(db, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.db = db
	c.name = name
}

func applySkipLimit(docs []document.Doc, skip, limit int) []document.Doc {
	if skip > 0 {
		if skip >= len(docs) {
			return nil
		}
		docs = docs[skip:]
	}
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}

func sortDocs(docs []document.Doc, sortDoc document.Doc) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, e := range sortDoc {
			dir := index.Ascending(e.Value)
			vi, _ := docs[i].Path(e.Key)
			vj, _ := docs[j].Path(e.Key)
			cmp := compareValues(vi, vj)
			if cmp == 0 {
				continue
			}
			if dir {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
}

func applyProjection(d document.Doc, projection document.Doc) document.Doc {
	include := map[string]bool{}
	exclusionMode := true
	for _, e := range projection {
		if truthy(e.Value) {
			include[e.Key] = true
			exclusionMode = false
		}
	}
	if exclusionMode {
		out := d.Clone()
		for _, e := range projection {
			if !truthy(e.Value) {
				out = out.Delete(e.Key)
			}
		}
		return out
	}
	out := document.Doc{}
	if id, ok := d.Get("_id"); ok && projection.GetOr("_id", true) != false {
		out = out.Set("_id", id)
	}
	for field := range include {
		if v, ok := d.Get(field); ok {
			out = out.Set(field, v)
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
