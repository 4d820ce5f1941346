package database

import (
	"context"

	"github.com/autom8ter/nanomongo/document"
	"github.com/autom8ter/nanomongo/index"
)

// bootstrap opens system.namespaces, registering it. If it is non-empty, it
// replays each namespace into a reopened collection, then reopens
// system.indexes and replays each index description through the index
// factory, per spec.md §4.6.
func (d *Database) bootstrap(ctx context.Context) {
	d.catalog.InitNamespaces()

	it := d.catalog.Namespaces().QueryAll()
	defer it.Close()

	var names []string
	for it.Next() {
		fullName, _ := it.Doc().Get("name")
		if s, ok := fullName.(string); ok {
			names = append(names, s)
		}
	}
	if len(names) == 0 {
		return
	}

	for _, full := range names {
		name, err := d.catalog.ExtractCollectionName(full)
		if err != nil || name == namespacesCollectionName || name == indexesCollectionName {
			continue
		}
		col := d.newCollection(name)
		d.catalog.RegisterExisting(col)
	}

	idx := d.newCollection(indexesCollectionName)
	d.catalog.SetIndexes(idx)

	descIt := idx.QueryAll()
	defer descIt.Close()
	for descIt.Next() {
		d.replayIndex(ctx, descIt.Doc())
	}
}

// replayIndex reattaches a single persisted index description to its
// collection, per the replay policy in spec.md §4.6: an exact {_id: ±1} key
// becomes the _id unique index; unique:true becomes a unique compound
// index; anything else is logged and skipped (non-unique secondary indexes
// are not yet implemented, per spec.md §9).
func (d *Database) replayIndex(ctx context.Context, desc document.Doc) {
	nsVal, _ := desc.Get("ns")
	ns, _ := nsVal.(string)
	collName, err := d.catalog.ExtractCollectionName(ns)
	if err != nil {
		d.log.Warn(ctx, "skipping index with unresolvable namespace", map[string]any{"ns": ns})
		return
	}
	col, err := d.catalog.Resolve(collName, false)
	if err != nil || col == nil {
		d.log.Warn(ctx, "skipping index for unknown collection", map[string]any{"collection": collName})
		return
	}

	keyVal, _ := desc.Get("key")
	key := asDoc(keyVal)
	keys := toIndexKeys(key)

	uniqueVal, _ := desc.Get("unique")
	unique, _ := uniqueVal.(bool)

	if isIDKey(keys) || unique {
		idx, err := d.indexFactory.OpenOrCreateUniqueIndex(collName, keys)
		if err != nil {
			d.log.Warn(ctx, "failed to reattach index", map[string]any{"collection": collName, "error": err.Error()})
			return
		}
		_ = col.AddIndex(idx)
		return
	}

	d.log.Warn(ctx, "skipping non-unique secondary index, not yet implemented", map[string]any{
		"collection": collName,
	})
}

func isIDKey(keys []index.Key) bool {
	return len(keys) == 1 && keys[0].Field == "_id"
}
