package memory

import (
	"fmt"
	"sync"

	"github.com/autom8ter/nanomongo/errors"
	"github.com/autom8ter/nanomongo/index"
)

// uniqueIndex is the one concrete index.Index implementation shipped by
// this module: a hash index over an ordered list of keys, enforcing
// uniqueness the way the catalog's _id_ index and createIndexes require.
type uniqueIndex struct {
	name string
	keys []index.Key

	mu     sync.Mutex
	values map[string]any // composite key -> document id
}

func newUniqueIndex(name string, keys []index.Key) *uniqueIndex {
	return &uniqueIndex{name: name, keys: keys, values: map[string]any{}}
}

func (u *uniqueIndex) Name() string        { return u.name }
func (u *uniqueIndex) Keys() []index.Key    { return u.keys }
func (u *uniqueIndex) Unique() bool         { return true }

// compositeKey builds the lookup key for a document's values at the
// index's fields, in order.
func (u *uniqueIndex) compositeKey(values []any) string {
	key := ""
	for i, v := range values {
		if i > 0 {
			key += "\x1f"
		}
		key += fmt.Sprintf("%T:%v", v, v)
	}
	return key
}

// Reserve enforces uniqueness for id at the given field values, returning a
// wire error if another document already holds that combination. It
// implements index.UniqueEnforcer.
func (u *uniqueIndex) Reserve(id any, values []any) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	key := u.compositeKey(values)
	if existing, ok := u.values[key]; ok && !equalIDs(existing, id) {
		return errors.New(11000, "DuplicateKey", "E11000 duplicate key error index: %s", u.name)
	}
	u.values[key] = id
	return nil
}

// Release implements index.UniqueEnforcer.
func (u *uniqueIndex) Release(values []any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.values, u.compositeKey(values))
}

// IndexFactory is the one index.Factory implementation this module ships.
type IndexFactory struct{}

// OpenOrCreateUniqueIndex implements index.Factory.
func (IndexFactory) OpenOrCreateUniqueIndex(collectionName string, keys []index.Key) (index.Index, error) {
	name := indexName(keys)
	return newUniqueIndex(name, keys), nil
}

func indexName(keys []index.Key) string {
	if len(keys) == 1 && keys[0].Field == "_id" {
		return "_id_"
	}
	name := ""
	for i, k := range keys {
		if i > 0 {
			name += "_"
		}
		dir := 1
		if !k.Ascending {
			dir = -1
		}
		name += fmt.Sprintf("%s_%d", k.Field, dir)
	}
	return name
}

func equalIDs(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
