// Package backend supplies the one collaborator the command dispatcher
// delegates dropDatabase to. Persistence backends (memory/file) are named
// external collaborators per the core's design (see SPEC_FULL.md §1);
// Registry is the in-memory stand-in this module ships, keyed by database
// name, sufficient to exercise dropDatabase without claiming to be a
// multi-database server product.
package backend

import (
	"sync"

	"github.com/autom8ter/nanomongo"
	"github.com/autom8ter/nanomongo/catalog"
	"github.com/autom8ter/nanomongo/collection"
	"github.com/autom8ter/nanomongo/collection/memory"
	"github.com/autom8ter/nanomongo/database"
)

// Registry is an in-memory map of database name to *database.Database,
// acting as every database's Backend for dropDatabase.
type Registry struct {
	mu        sync.Mutex
	databases map[string]*database.Database
	log       nanomongo.Logger
}

// NewRegistry constructs an empty registry. log may be nil, in which case a
// no-op logger is used.
func NewRegistry(log nanomongo.Logger) *Registry {
	if log == nil {
		log = nanomongo.NewNopLogger()
	}
	return &Registry{databases: map[string]*database.Database{}, log: log}
}

// Open returns the named database, creating it (backed by the in-memory
// collection engine) on first reference.
func (r *Registry) Open(name string) *database.Database {
	r.mu.Lock()
	defer r.mu.Unlock()
	if db, ok := r.databases[name]; ok {
		return db
	}
	db := database.New(name, r, newMemoryCollection(name), memory.IndexFactory{}, r.log)
	r.databases[name] = db
	return db
}

// DropDatabase implements database.Backend: it removes name from the
// registry. Any database handle a caller is still holding becomes orphaned,
// per spec.md §9's open question about lastResults on a vanished database.
func (r *Registry) DropDatabase(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.databases, name)
	return nil
}

// Names returns every database name currently open.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.databases))
	for name := range r.databases {
		names = append(names, name)
	}
	return names
}

func newMemoryCollection(db string) catalog.NewCollectionFunc {
	return func(name string) collection.Collection { return memory.New(db, name) }
}
