package database

import (
	"context"

	"github.com/spf13/cast"

	"github.com/autom8ter/nanomongo/aggregation"
	"github.com/autom8ter/nanomongo/document"
	nanoerrors "github.com/autom8ter/nanomongo/errors"
)

// handleFind implements the find command per spec.md §4.3: the filter/sort
// pair is assembled into the legacy {$query, $orderby} envelope the memory
// collection already understands. A missing collection returns an empty
// batch without error.
func (d *Database) handleFind(_ context.Context, _ string, params document.Doc) (document.Doc, error) {
	collName, _ := params.Get("collection")
	name, _ := collName.(string)

	col, err := d.catalog.Resolve(name, false)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return cursorResponse(d.fullName(name), nil), nil
	}

	filter, _ := params.Get("filter")
	sortDoc, _ := params.Get("sort")
	projection, _ := params.Get("projection")
	skip := cast.ToInt(params.GetOr("skip", 0))
	limit := cast.ToInt(params.GetOr("limit", 0))

	selector := document.New("$query", filter, "$orderby", sortDoc)
	it, err := col.HandleQuery(selector, skip, limit, asDoc(projection))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var docs []document.Doc
	for it.Next() {
		docs = append(docs, it.Doc())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return cursorResponse(col.FullName(), docs), nil
}

// HandleQuery is the legacy OP_QUERY-style framing entry point for find,
// distinct from the command-path handleFind registered in HandleCommand.
func (d *Database) HandleQuery(ctx context.Context, channel string, params document.Doc) (document.Doc, error) {
	return d.handleFind(ctx, channel, params)
}

func cursorResponse(ns string, docs []document.Doc) document.Doc {
	return document.New("cursor", document.New("id", 0, "ns", ns, "firstBatch", docs), "ok", 1)
}

// handleCount implements the count command per spec.md §4.3.
func (d *Database) handleCount(_ context.Context, _ string, params document.Doc) (document.Doc, error) {
	collName, _ := params.Get("collection")
	name, _ := collName.(string)

	col, err := d.catalog.Resolve(name, false)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return document.New("n", 0, "ok", 1), nil
	}

	query, _ := params.Get("query")
	skip := cast.ToInt(params.GetOr("skip", 0))
	limit := cast.ToInt(params.GetOr("limit", -1))

	n, err := col.CountQuery(asDoc(query), skip, limit)
	if err != nil {
		return nil, err
	}
	return document.New("n", n, "ok", 1), nil
}

// handleAggregate implements the aggregate command per spec.md §4.5.
func (d *Database) handleAggregate(_ context.Context, _ string, params document.Doc) (document.Doc, error) {
	cursorVal, hasCursor := params.Get("cursor")
	if !hasCursor {
		return nil, nanoerrors.New(nanoerrors.CursorRequired, "", "The 'cursor' option is required for aggregate")
	}
	if cursorDoc := asDoc(cursorVal); cursorDoc.Len() > 0 {
		return nil, nanoerrors.Generic("Non-empty cursor is not yet implemented")
	}

	collName, _ := params.Get("collection")
	name, _ := collName.(string)

	pipelineVal, _ := params.Get("pipeline")
	pipeline, _ := pipelineVal.([]document.Doc)
	plan, err := aggregation.Parse(pipeline)
	if err != nil {
		return nil, err
	}

	col, err := d.catalog.Resolve(name, false)
	if err != nil {
		return nil, err
	}
	var docs []document.Doc
	if col != nil {
		it := col.QueryAll()
		defer it.Close()
		for it.Next() {
			docs = append(docs, it.Doc())
		}
	}

	out, err := aggregation.Run(plan, docs)
	if err != nil {
		return nil, err
	}
	return cursorResponse(d.fullName(name), out), nil
}

// handleDistinct implements the distinct command per spec.md §4.3.
func (d *Database) handleDistinct(_ context.Context, _ string, params document.Doc) (document.Doc, error) {
	collName, _ := params.Get("collection")
	name, _ := collName.(string)

	col, err := d.catalog.Resolve(name, false)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return document.New("values", []any{}, "ok", 1), nil
	}
	resp, err := col.HandleDistinct(params)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// handleFindAndModify implements the findAndModify command per spec.md
// §4.3. The target collection is implicitly created if unknown, per §4.1.
func (d *Database) handleFindAndModify(_ context.Context, _ string, params document.Doc) (document.Doc, error) {
	collName, _ := params.Get("collection")
	name, _ := collName.(string)

	col, err := d.resolveOrCreate(name)
	if err != nil {
		return nil, err
	}
	resp, err := col.FindAndModify(params)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// handleCollStats implements the collstats command per spec.md §4.3.
func (d *Database) handleCollStats(_ context.Context, _ string, params document.Doc) (document.Doc, error) {
	collName, _ := params.Get("collstats")
	name, ok := collName.(string)
	if !ok {
		collName, _ = params.Get("collection")
		name, _ = collName.(string)
	}
	col, err := d.catalog.Resolve(name, true)
	if err != nil {
		return nil, err
	}
	stats := col.GetStats()
	return document.New(
		"ns", col.FullName(),
		"count", stats.Count,
		"size", stats.Size,
		"nindexes", col.NumIndexes(),
		"indexSizes", stats.IndexSize,
		"ok", 1,
	), nil
}

// handleValidateCommand implements the validate command per spec.md §4.3.
func (d *Database) handleValidateCommand(_ context.Context, _ string, params document.Doc) (document.Doc, error) {
	collName, _ := params.Get("validate")
	name, ok := collName.(string)
	if !ok {
		collName, _ = params.Get("collection")
		name, _ = collName.(string)
	}
	col, err := d.catalog.Resolve(name, true)
	if err != nil {
		return nil, err
	}
	return col.Validate(), nil
}

// handleListCollections implements listCollections per spec.md §4.3,
// enumerating precisely the names backing system.namespaces.
func (d *Database) handleListCollections(_ context.Context, _ string, _ document.Doc) (document.Doc, error) {
	it := d.catalog.Namespaces().QueryAll()
	defer it.Close()

	var batch []document.Doc
	for it.Next() {
		fullName, _ := it.Doc().Get("name")
		full, _ := fullName.(string)
		name, err := d.catalog.ExtractCollectionName(full)
		if err != nil {
			continue
		}
		batch = append(batch, document.New("name", name))
	}
	return cursorResponse(d.fullName(namespacesCollectionName), batch), nil
}

// handleListIndexes implements listIndexes per spec.md §4.3.
func (d *Database) handleListIndexes(_ context.Context, _ string, params document.Doc) (document.Doc, error) {
	collName, _ := params.Get("listindexes")
	name, ok := collName.(string)
	if !ok {
		collName, _ = params.Get("collection")
		name, _ = collName.(string)
	}
	if _, err := d.catalog.Resolve(name, true); err != nil {
		return nil, err
	}

	indexes := d.catalog.Indexes()
	var batch []document.Doc
	if indexes != nil {
		it := indexes.QueryAll()
		defer it.Close()
		for it.Next() {
			descr := it.Doc()
			ns, _ := descr.Get("ns")
			if fullNS, ok := ns.(string); ok && fullNS == d.fullName(name) {
				batch = append(batch, descr)
			}
		}
	}
	return cursorResponse(d.fullName(name), batch), nil
}

func asDoc(v any) document.Doc {
	d, _ := v.(document.Doc)
	return d
}
