// Package database is the command dispatcher and per-connection semantics
// engine: it owns one logical database's catalog, routes every client
// command to the right handler, and maintains the per-channel "last error"
// history legacy clients depend on.
package database

import (
	"context"
	"strings"

	"github.com/palantir/stacktrace"

	"github.com/autom8ter/nanomongo"
	"github.com/autom8ter/nanomongo/catalog"
	"github.com/autom8ter/nanomongo/collection"
	nanoerrors "github.com/autom8ter/nanomongo/errors"
	"github.com/autom8ter/nanomongo/history"
	"github.com/autom8ter/nanomongo/index"
)

const (
	namespacesCollectionName = "system.namespaces"
	indexesCollectionName    = "system.indexes"
)

// Backend is the collaborator a database delegates dropDatabase to. It is
// defined here, not in package backend, so backend can depend on database
// without creating an import cycle.
type Backend interface {
	DropDatabase(name string) error
}

// Database owns one logical database's catalog, indexes, and per-channel
// error history, and dispatches every client command against them.
type Database struct {
	name          string
	backend       Backend
	newCollection catalog.NewCollectionFunc
	indexFactory  index.Factory

	catalog *catalog.Catalog
	history *history.Store
	log     nanomongo.Logger
}

// New constructs a Database and bootstraps it: if newCollection rehydrates
// a previously persisted system.namespaces, its collections and indexes are
// replayed; otherwise the database starts empty.
func New(name string, backend Backend, newCollection catalog.NewCollectionFunc, indexFactory index.Factory, log nanomongo.Logger) *Database {
	if log == nil {
		log = nanomongo.NewNopLogger()
	}
	d := &Database{
		name:          name,
		backend:       backend,
		newCollection: newCollection,
		indexFactory:  indexFactory,
		catalog:       catalog.New(name, newCollection, indexFactory, log),
		history:       history.NewStore(),
		log:           log,
	}
	d.bootstrap(context.Background())
	return d
}

// Name returns the database's name.
func (d *Database) Name() string { return d.name }

func (d *Database) fullName(collectionName string) string {
	return d.name + "." + collectionName
}

func (d *Database) resolveOrCreate(name string) (collection.Collection, error) {
	return d.catalog.ResolveOrCreate(name)
}

func (d *Database) checkNotSystem(name string, code nanoerrors.Code, verb string) error {
	if name == namespacesCollectionName || name == indexesCollectionName {
		return nanoerrors.New(code, "", "cannot %s system collection: %s", verb, name)
	}
	if strings.HasPrefix(name, "system.") {
		return nanoerrors.New(code, "", "cannot %s system collection: %s", verb, name)
	}
	return nil
}

func wrapInternal(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*nanoerrors.Error); ok {
		return err
	}
	return nanoerrors.Wrap(stacktrace.Propagate(err, msg), 0, "")
}
