// Package catalog owns the mapping from collection name to collection
// handle within a single logical database, and keeps the system.namespaces
// / system.indexes pseudo-collections consistent with it, per spec.md §4.1.
package catalog

import (
	"context"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/autom8ter/nanomongo"
	"github.com/autom8ter/nanomongo/collection"
	"github.com/autom8ter/nanomongo/document"
	"github.com/autom8ter/nanomongo/errors"
	"github.com/autom8ter/nanomongo/index"
	"github.com/autom8ter/nanomongo/internal/safe"
)

// MaxNamespaceLength is the maximum length, in bytes, of a namespace name.
const MaxNamespaceLength = 128

const (
	namespacesCollectionName = "system.namespaces"
	indexesCollectionName    = "system.indexes"
	identifierField          = "_id"
)

// NewCollectionFunc opens or creates a collection by name, abstracting the
// persistence backend per spec.md §9 ("Polymorphism over persistence").
type NewCollectionFunc func(name string) collection.Collection

// Catalog maps collection names to collection handles for one logical
// database, and owns system.namespaces / system.indexes.
type Catalog struct {
	databaseName  string
	newCollection NewCollectionFunc
	indexFactory  index.Factory
	log           nanomongo.Logger

	mu sync.Mutex // serializes compound mutations: create/drop/move/resolveOrCreate

	collections *safe.Map[collection.Collection]

	namespaces collection.Collection

	indexMu sync.Mutex
	indexes collection.Collection
}

// New constructs a Catalog. InitNamespaces must be called before use;
// database.New does so in its bootstrap, which then either starts empty or
// rehydrates from a previously persisted system.namespaces/system.indexes.
// log may be nil, in which case every catalog mutation is logged to a
// no-op logger.
func New(databaseName string, newCollection NewCollectionFunc, indexFactory index.Factory, log nanomongo.Logger) *Catalog {
	if log == nil {
		log = nanomongo.NewNopLogger()
	}
	return &Catalog{
		databaseName:  databaseName,
		newCollection: newCollection,
		indexFactory:  indexFactory,
		log:           log,
		collections:   safe.NewMap[collection.Collection](nil),
	}
}

// DatabaseName returns the owning database's name.
func (c *Catalog) DatabaseName() string { return c.databaseName }

// Namespaces returns the system.namespaces collection.
func (c *Catalog) Namespaces() collection.Collection { return c.namespaces }

func checkCollectionName(name string) error {
	if len(name) > MaxNamespaceLength {
		return errors.New(errors.NamespaceTooLong, "", "ns name too long, max size is %d", MaxNamespaceLength)
	}
	if name == "" {
		return errors.New(errors.InvalidNamespace, "", "Invalid ns [%s]", name)
	}
	return nil
}

// Resolve looks up a collection by name, validating the name first.
// If throwIfMissing is true and the collection does not exist,
// errors.NoSuchCollection is returned.
func (c *Catalog) Resolve(name string, throwIfMissing bool) (collection.Collection, error) {
	if err := checkCollectionName(name); err != nil {
		return nil, err
	}
	col := c.collections.Get(name)
	if col == nil && throwIfMissing {
		return nil, errors.NoSuchCollection(name)
	}
	return col, nil
}

// ResolveOrCreate resolves name, creating it (implicit create) if it does
// not exist yet. Serialized so concurrent callers for an unknown name
// create it exactly once.
func (c *Catalog) ResolveOrCreate(name string) (collection.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	col, err := c.Resolve(name, false)
	if err != nil {
		return nil, err
	}
	if col != nil {
		return col, nil
	}
	return c.create(name)
}

// Create creates a brand-new user collection, failing with NamespaceExists
// if it already exists.
func (c *Catalog) Create(name string) (collection.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, err := c.Resolve(name, false)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.New(errors.NamespaceExists, "NamespaceExists", "collection already exists")
	}
	col, err := c.create(name)
	if err != nil {
		return nil, err
	}
	c.log.Info(context.Background(), "collection created", map[string]any{"database": c.databaseName, "collection": name})
	return col, nil
}

// create assumes c.mu is held.
func (c *Catalog) create(name string) (collection.Collection, error) {
	if err := checkCollectionName(name); err != nil {
		return nil, err
	}
	if strings.Contains(name, "$") {
		return nil, errors.New(errors.ReservedCollectionName, "", "cannot insert into reserved $ collection")
	}
	col := c.newCollection(name)
	c.register(col)

	idx, err := c.indexFactory.OpenOrCreateUniqueIndex(name, []index.Key{{Field: identifierField, Ascending: true}})
	if err != nil {
		return nil, err
	}
	if err := c.addIndex(col, idx, document.New(
		"name", idx.Name(),
		"ns", col.FullName(),
		"key", document.New(identifierField, 1),
	)); err != nil {
		return nil, err
	}
	return col, nil
}

// register adds col to the map and, for every collection but
// system.namespaces itself, appends its namespace document. That includes
// system.indexes: it is a registered namespace like any other user
// collection.
func (c *Catalog) register(col collection.Collection) {
	c.collections.Set(col.CollectionName(), col)
	if col.CollectionName() == namespacesCollectionName {
		return
	}
	_, _ = c.namespaces.Insert([]document.Doc{document.New("name", col.FullName())})
}

// Unregister removes name from the catalog and deletes its namespace
// document and its rows in system.indexes, so create(C) followed by
// drop(C) leaves no namespace or index row for C behind.
func (c *Catalog) Unregister(name string) (collection.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	col := c.collections.Get(name)
	if col == nil {
		return nil, nil
	}
	c.collections.Del(name)
	_, _ = c.namespaces.DeleteDocuments(document.New("name", col.FullName()), 1)
	if indexes := c.Indexes(); indexes != nil {
		_, _ = indexes.DeleteDocuments(document.New("ns", col.FullName()), 0)
	}
	c.log.Info(context.Background(), "collection dropped", map[string]any{"database": c.databaseName, "collection": name})
	return col, nil
}

// Drop unregisters every collection in the catalog.
func (c *Catalog) Drop() {
	c.mu.Lock()
	names := c.collections.AsMap()
	c.mu.Unlock()
	c.log.Info(context.Background(), "database dropped", map[string]any{"database": c.databaseName, "collections": len(names)})
	for name := range names {
		_, _ = c.Unregister(name)
	}
}

// MoveCollection atomically unregisters col from source, renames it, and
// registers it in this catalog under newName.
func (c *Catalog) MoveCollection(source *Catalog, col collection.Collection, newName string) error {
	if _, err := source.Unregister(col.CollectionName()); err != nil {
		return err
	}
	col.RenameTo(c.databaseName, newName)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.collections.Set(newName, col)
	_, err := c.namespaces.Insert([]document.Doc{document.New("name", col.FullName())})
	return err
}

// List returns the name of every registered collection, system.namespaces
// itself included.
func (c *Catalog) List() []string {
	return lo.Keys(c.collections.AsMap())
}

// Indexes returns the system.indexes collection, or nil if no index has
// ever been created.
func (c *Catalog) Indexes() collection.Collection {
	c.indexMu.Lock()
	defer c.indexMu.Unlock()
	return c.indexes
}

// CountIndexes returns the number of documents in system.indexes, 0 if it
// does not exist yet.
func (c *Catalog) CountIndexes() int {
	c.indexMu.Lock()
	idx := c.indexes
	c.indexMu.Unlock()
	if idx == nil {
		return 0
	}
	return idx.Count()
}

// AddIndex registers idx against col and appends description to
// system.indexes, lazily creating that collection on first use.
func (c *Catalog) AddIndex(col collection.Collection, idx index.Index, description document.Doc) error {
	return c.addIndex(col, idx, description)
}

func (c *Catalog) addIndex(col collection.Collection, idx index.Index, description document.Doc) error {
	if err := col.AddIndex(idx); err != nil {
		return err
	}
	indexes := c.getOrCreateIndexesCollection()
	_, err := indexes.Insert([]document.Doc{description})
	return err
}

func (c *Catalog) getOrCreateIndexesCollection() collection.Collection {
	c.indexMu.Lock()
	defer c.indexMu.Unlock()
	if c.indexes == nil {
		idx := c.newCollection(indexesCollectionName)
		c.register(idx)
		c.indexes = idx
	}
	return c.indexes
}

// InitNamespaces opens (creating if absent) system.namespaces and registers
// it, without replaying any persisted state. Bootstrap calls this first.
func (c *Catalog) InitNamespaces() {
	ns := c.newCollection(namespacesCollectionName)
	c.collections.Set(ns.CollectionName(), ns)
	c.namespaces = ns
}

// RegisterExisting registers an already-open collection without touching
// system.namespaces, used by bootstrap when replaying persisted state.
func (c *Catalog) RegisterExisting(col collection.Collection) {
	c.collections.Set(col.CollectionName(), col)
}

// SetIndexes registers an already-open system.indexes collection, used by
// bootstrap.
func (c *Catalog) SetIndexes(col collection.Collection) {
	c.indexMu.Lock()
	defer c.indexMu.Unlock()
	c.indexes = col
	c.mu.Lock()
	c.collections.Set(col.CollectionName(), col)
	c.mu.Unlock()
}

// ExtractCollectionName strips the "<db>." prefix off a namespace string,
// per extractCollectionNameFromNamespace in the original implementation.
func (c *Catalog) ExtractCollectionName(namespace string) (string, error) {
	prefix := c.databaseName + "."
	if !strings.HasPrefix(namespace, prefix) {
		return "", errors.Generic("namespace %q does not belong to database %q", namespace, c.databaseName)
	}
	return namespace[len(prefix):], nil
}
