// Package collection defines the Collection contract the catalog and
// command dispatcher operate against. Query/update operator evaluation and
// persistence are named external collaborators per the core's design (see
// SPEC_FULL.md §1); collection/memory ships the one concrete
// implementation this module carries so the dispatcher can be exercised.
package collection

import (
	"github.com/autom8ter/nanomongo/document"
	"github.com/autom8ter/nanomongo/index"
)

// UpdateResult is the outcome of updateDocuments.
type UpdateResult struct {
	N         int
	NModified int
	// UpsertedID is non-nil when the update inserted a new document.
	UpsertedID any
}

// Stats is the shape returned by getStats()/collStats.
type Stats struct {
	Count     int
	Size      int64
	IndexSize map[string]int64
}

// Iterator walks a lazy, finite, non-restartable sequence of documents,
// per the core's iterator discipline.
type Iterator interface {
	Next() bool
	Doc() document.Doc
	Err() error
	Close()
}

// Collection is the contract consumed by the catalog, command handlers,
// and aggregation planner.
type Collection interface {
	// CollectionName returns the bare collection name.
	CollectionName() string
	// FullName returns "db.collection".
	FullName() string
	// NumIndexes returns the number of indexes registered on the collection.
	NumIndexes() int

	Insert(batch []document.Doc) (int, error)
	UpdateDocuments(selector, update document.Doc, multi, upsert bool) (UpdateResult, error)
	DeleteDocuments(selector document.Doc, limit int) (int, error)

	HandleQuery(selector document.Doc, skip, limit int, projection document.Doc) (Iterator, error)
	QueryAll() Iterator

	Count() int
	CountQuery(query document.Doc, skip, limit int) (int, error)

	HandleDistinct(params document.Doc) (document.Doc, error)
	FindAndModify(params document.Doc) (document.Doc, error)

	AddIndex(idx index.Index) error
	GetStats() Stats
	Validate() document.Doc

	RenameTo(db, name string)
}
