package database

import (
	"context"

	"github.com/autom8ter/nanomongo/document"
	nanoerrors "github.com/autom8ter/nanomongo/errors"
	"github.com/autom8ter/nanomongo/index"
	"github.com/autom8ter/nanomongo/model"
)

func toIndexKeys(key document.Doc) []index.Key {
	keys := make([]index.Key, 0, key.Len())
	for _, e := range key {
		keys = append(keys, index.Key{Field: e.Key, Ascending: index.Ascending(e.Value)})
	}
	return keys
}

// handleInsertCommand implements the insert command per spec.md §4.3/§4.4:
// documents are inserted one at a time, per-document errors accumulate as
// writeErrors, and n counts successes. When ordered is true (the default)
// processing stops at the first error.
func (d *Database) handleInsertCommand(_ context.Context, _ string, params document.Doc) (document.Doc, error) {
	var cmd model.InsertCommand
	if err := model.Decode(params, &cmd); err != nil {
		return nil, nanoerrors.Wrap(err, 0, "invalid insert command")
	}
	if err := model.Validate(&cmd); err != nil {
		return nil, err
	}

	if cmd.Collection == indexesCollectionName {
		return d.handleIndexInsert(cmd.Documents)
	}
	if err := d.checkNotSystem(cmd.Collection, nanoerrors.InsertIntoSystem, "insert into"); err != nil {
		return nil, err
	}

	col, err := d.resolveOrCreate(cmd.Collection)
	if err != nil {
		return nil, err
	}

	ordered := true
	if cmd.Ordered != nil {
		ordered = *cmd.Ordered
	}

	n := 0
	var writeErrors []document.Doc
	for i, doc := range cmd.Documents {
		if _, err := col.Insert([]document.Doc{doc}); err != nil {
			we := document.New("index", i, "errmsg", nanoerrors.Extract(err).Message())
			if code := nanoerrors.Extract(err).Code; code != 0 {
				we = we.Set("code", int(code))
			}
			writeErrors = append(writeErrors, we)
			if ordered {
				break
			}
			continue
		}
		n++
	}

	result := document.New("n", n, "ok", 1)
	if len(writeErrors) > 0 {
		result = result.Set("writeErrors", writeErrors)
	}
	return result, nil
}

// handleIndexInsert re-interprets a raw insert into system.indexes as a
// sequence of addIndex calls, per spec.md §4.4.
func (d *Database) handleIndexInsert(docs []document.Doc) (document.Doc, error) {
	for _, raw := range docs {
		var desc model.IndexDescription
		if err := model.Decode(raw, &desc); err != nil {
			return nil, nanoerrors.Wrap(err, 0, "invalid index description")
		}
		if err := model.Validate(&desc); err != nil {
			return nil, err
		}
		collName, err := d.catalog.ExtractCollectionName(desc.NS)
		if err != nil {
			return nil, err
		}
		col, err := d.catalog.Resolve(collName, true)
		if err != nil {
			return nil, err
		}
		idx, err := d.indexFactory.OpenOrCreateUniqueIndex(collName, toIndexKeys(desc.Key))
		if err != nil {
			return nil, err
		}
		if err := d.catalog.AddIndex(col, idx, raw); err != nil {
			return nil, err
		}
	}
	return document.New("n", len(docs), "ok", 1), nil
}

// handleUpdateCommand implements the update command per spec.md §4.3. The
// target collection is implicitly created if unknown, per §4.1.
func (d *Database) handleUpdateCommand(_ context.Context, _ string, params document.Doc) (document.Doc, error) {
	var cmd model.UpdateCommand
	if err := model.Decode(params, &cmd); err != nil {
		return nil, nanoerrors.Wrap(err, 0, "invalid update command")
	}
	if err := model.Validate(&cmd); err != nil {
		return nil, err
	}
	if err := d.checkNotSystem(cmd.Collection, nanoerrors.UpdateSystem, "update"); err != nil {
		return nil, err
	}

	col, err := d.resolveOrCreate(cmd.Collection)
	if err != nil {
		return nil, err
	}

	ordered := true
	if cmd.Ordered != nil {
		ordered = *cmd.Ordered
	}

	n, nModified := 0, 0
	var upserted []document.Doc
	for i, op := range cmd.Updates {
		result, err := col.UpdateDocuments(op.Q, op.U, op.Multi, op.Upsert)
		if err != nil {
			if ordered {
				return nil, err
			}
			continue
		}
		n += result.N
		nModified += result.NModified
		if result.UpsertedID != nil {
			upserted = append(upserted, document.New("index", i, "_id", result.UpsertedID))
		}
	}

	resp := document.New("n", n, "nModified", nModified, "ok", 1)
	if len(upserted) > 0 {
		resp = resp.Set("upserted", upserted)
	}
	return resp, nil
}

// handleDeleteCommand implements the delete command per spec.md §4.3. The
// target collection is resolved, never implicitly created.
func (d *Database) handleDeleteCommand(_ context.Context, _ string, params document.Doc) (document.Doc, error) {
	var cmd model.DeleteCommand
	if err := model.Decode(params, &cmd); err != nil {
		return nil, nanoerrors.Wrap(err, 0, "invalid delete command")
	}
	if err := model.Validate(&cmd); err != nil {
		return nil, err
	}
	if err := d.checkNotSystem(cmd.Collection, nanoerrors.DeleteFromSystem, "delete from"); err != nil {
		return nil, err
	}

	col, err := d.catalog.Resolve(cmd.Collection, false)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return document.New("n", 0, "ok", 1), nil
	}

	ordered := true
	if cmd.Ordered != nil {
		ordered = *cmd.Ordered
	}

	n := 0
	for _, op := range cmd.Deletes {
		count, err := col.DeleteDocuments(op.Q, op.Limit)
		if err != nil {
			if ordered {
				return nil, err
			}
			continue
		}
		n += count
	}
	return document.New("n", n, "ok", 1), nil
}

// handleCreate implements the create command per spec.md §4.3.
func (d *Database) handleCreate(_ context.Context, _ string, params document.Doc) (document.Doc, error) {
	var cmd model.CreateCommand
	if err := model.Decode(params, &cmd); err != nil {
		return nil, nanoerrors.Wrap(err, 0, "invalid create command")
	}
	if cmd.Capped {
		return nil, nanoerrors.Generic("capped collections are not yet implemented")
	}
	if cmd.AutoIndexID != nil && !*cmd.AutoIndexID {
		return nil, nanoerrors.Generic("autoIndexId=false is not yet implemented")
	}
	if _, err := d.catalog.Create(cmd.Collection); err != nil {
		return nil, err
	}
	return document.New("ok", 1), nil
}

// handleCreateIndexes implements the createIndexes command per spec.md §4.3.
func (d *Database) handleCreateIndexes(_ context.Context, _ string, params document.Doc) (document.Doc, error) {
	var cmd model.CreateIndexesCommand
	if err := model.Decode(params, &cmd); err != nil {
		return nil, nanoerrors.Wrap(err, 0, "invalid createIndexes command")
	}
	if err := model.Validate(&cmd); err != nil {
		return nil, err
	}

	col, err := d.catalog.Resolve(cmd.Collection, true)
	if err != nil {
		return nil, err
	}

	before := d.catalog.CountIndexes()
	for _, descr := range cmd.Indexes {
		idx, err := d.indexFactory.OpenOrCreateUniqueIndex(cmd.Collection, toIndexKeys(descr.Key))
		if err != nil {
			return nil, err
		}
		doc := document.New("name", descr.Name, "ns", descr.NS, "key", descr.Key, "unique", descr.Unique)
		if err := d.catalog.AddIndex(col, idx, doc); err != nil {
			return nil, err
		}
	}
	after := d.catalog.CountIndexes()
	return document.New("numIndexesBefore", before, "numIndexesAfter", after, "ok", 1), nil
}
