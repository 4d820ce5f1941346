package database

import (
	"context"

	"github.com/autom8ter/nanomongo/document"
	nanoerrors "github.com/autom8ter/nanomongo/errors"
)

// handleDrop implements the drop command per spec.md §4.3: removing a
// missing collection fails silently with "ns not found".
func (d *Database) handleDrop(_ context.Context, _ string, params document.Doc) (document.Doc, error) {
	name, _ := params.Get("drop")
	collName, _ := name.(string)

	col, err := d.catalog.Resolve(collName, false)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return nil, nanoerrors.NewSilent("ns not found")
	}

	nIndexesWas := col.NumIndexes()
	if _, err := d.catalog.Unregister(collName); err != nil {
		return nil, err
	}
	return document.New("nIndexesWas", nIndexesWas, "ns", col.FullName(), "ok", 1), nil
}

// handleDropDatabase implements dropDatabase per spec.md §4.3, delegating
// to the owning backend. Per spec.md §9's open question, lastResults is
// intentionally left untouched — behavior on a still-open channel after its
// database vanishes is undefined.
func (d *Database) handleDropDatabase(_ context.Context, _ string, _ document.Doc) (document.Doc, error) {
	if err := d.backend.DropDatabase(d.name); err != nil {
		return nil, err
	}
	return document.New("dropped", d.name, "ok", 1), nil
}

// handleDBStats implements dbstats per spec.md §4.3.
func (d *Database) handleDBStats(_ context.Context, _ string, _ document.Doc) (document.Doc, error) {
	var objects int
	var dataSize, indexSize int64
	var indexes int

	for _, name := range d.catalog.List() {
		col, err := d.catalog.Resolve(name, false)
		if err != nil || col == nil {
			continue
		}
		stats := col.GetStats()
		objects += stats.Count
		dataSize += stats.Size
		indexes += col.NumIndexes()
		for _, sz := range stats.IndexSize {
			indexSize += sz
		}
	}

	avgObjSize := float64(0)
	if objects > 0 {
		avgObjSize = float64(dataSize) / float64(objects)
	}

	return document.New(
		"db", d.name,
		"objects", objects,
		"dataSize", dataSize,
		"storageSize", dataSize,
		"indexSize", indexSize,
		"indexes", indexes,
		"avgObjSize", avgObjSize,
		"fileSize", int64(0),
		"ok", 1,
	), nil
}
