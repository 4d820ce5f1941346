// Package index defines the abstract index contract the catalog consumes.
// Index data structures are an external collaborator per the core's design
// (see SPEC_FULL.md §1); this package only fixes the shape a concrete
// implementation must have.
package index

// Key is a single field participating in an index, with its sort
// direction. Compound indexes use an ordered list of Keys.
type Key struct {
	Field     string
	Ascending bool
}

// Index is opaque to the catalog beyond its identity and the Keys it was
// built over.
type Index interface {
	// Name is the index's unique name within its collection (e.g. "_id_").
	Name() string
	// Keys returns the ordered fields the index was built over.
	Keys() []Key
	// Unique reports whether the index enforces uniqueness.
	Unique() bool
}

// UniqueEnforcer is implemented by an Index that enforces a uniqueness
// constraint at write time. A collection calls Reserve before committing a
// document's values at the index's Keys, and Release once those values are
// removed or superseded, so the index's notion of "taken" keys stays
// consistent with the documents actually stored.
type UniqueEnforcer interface {
	Reserve(id any, values []any) error
	Release(values []any)
}

// Factory abstracts the creation of unique indexes, keeping index data
// structures out of the catalog's concerns.
type Factory interface {
	// OpenOrCreateUniqueIndex opens or creates a unique index over the given
	// ordered keys for the named collection.
	OpenOrCreateUniqueIndex(collectionName string, keys []Key) (Index, error)
}

// Ascending reports whether a raw key direction value (as stored in a
// system.indexes "key" document, typically 1 or -1) means ascending.
func Ascending(direction any) bool {
	switch v := direction.(type) {
	case int:
		return v >= 0
	case int32:
		return v >= 0
	case int64:
		return v >= 0
	case float64:
		return v >= 0
	case float32:
		return v >= 0
	default:
		return true
	}
}
