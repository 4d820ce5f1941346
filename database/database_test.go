package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autom8ter/nanomongo/catalog"
	"github.com/autom8ter/nanomongo/collection"
	"github.com/autom8ter/nanomongo/collection/memory"
	"github.com/autom8ter/nanomongo/database"
	"github.com/autom8ter/nanomongo/document"
	nanoerrors "github.com/autom8ter/nanomongo/errors"
)

type nopBackend struct {
	dropped []string
}

func (b *nopBackend) DropDatabase(name string) error {
	b.dropped = append(b.dropped, name)
	return nil
}

func newDatabase() (*database.Database, *nopBackend) {
	backend := &nopBackend{}
	newCollection := func(name string) collection.Collection { return memory.New("testdb", name) }
	db := database.New("testdb", backend, newCollection, memory.IndexFactory{}, nil)
	return db, backend
}

func TestInsertThenFind(t *testing.T) {
	ctx := context.Background()
	db, _ := newDatabase()

	resp, err := db.HandleCommand(ctx, "c1", "insert", document.New(
		"collection", "c",
		"documents", []document.Doc{document.New("_id", 1, "a", "x")},
	))
	require.NoError(t, err)
	n, _ := resp.Get("n")
	assert.EqualValues(t, 1, n)

	resp, err = db.HandleCommand(ctx, "c1", "find", document.New("collection", "c"))
	require.NoError(t, err)
	cursor, _ := resp.Get("cursor")
	batch, _ := cursor.(document.Doc).Get("firstBatch")
	docs, _ := batch.([]document.Doc)
	require.Len(t, docs, 1)
	a, _ := docs[0].Get("a")
	assert.Equal(t, "x", a)
}

func TestUpsertReportsUpsertedID(t *testing.T) {
	ctx := context.Background()
	db, _ := newDatabase()

	resp, err := db.HandleCommand(ctx, "c1", "update", document.New(
		"collection", "c",
		"updates", []document.Doc{
			document.New("q", document.New("_id", 2), "u", document.New("$set", document.New("a", "y")), "upsert", true),
		},
	))
	require.NoError(t, err)
	n, _ := resp.Get("n")
	nModified, _ := resp.Get("nModified")
	assert.EqualValues(t, 1, n)
	assert.EqualValues(t, 0, nModified)
	upserted, ok := resp.Get("upserted")
	require.True(t, ok)
	entries, _ := upserted.([]document.Doc)
	require.Len(t, entries, 1)
	id, _ := entries[0].Get("_id")
	assert.EqualValues(t, 2, id)
}

func TestLegacyLastErrorAfterUpdateThenReset(t *testing.T) {
	ctx := context.Background()
	db, _ := newDatabase()

	_, err := db.HandleCommand(ctx, "c1", "update", document.New(
		"collection", "c",
		"updates", []document.Doc{
			document.New("q", document.New("_id", 2), "u", document.New("$set", document.New("a", "y")), "upsert", true),
		},
	))
	require.NoError(t, err)

	resp, err := db.HandleCommand(ctx, "c1", "getlasterror", document.Doc{})
	require.NoError(t, err)
	n, _ := resp.Get("n")
	assert.EqualValues(t, 1, n)

	_, err = db.HandleCommand(ctx, "c1", "reseterror", document.Doc{})
	require.NoError(t, err)

	resp, err = db.HandleCommand(ctx, "c1", "getlasterror", document.Doc{})
	require.NoError(t, err)
	errVal, _ := resp.Get("err")
	assert.Nil(t, errVal)
}

func TestCreateIndexesEnforcesUniquenessOnInsert(t *testing.T) {
	ctx := context.Background()
	db, _ := newDatabase()

	_, err := db.HandleCommand(ctx, "c1", "create", document.New("collection", "people"))
	require.NoError(t, err)

	_, err = db.HandleCommand(ctx, "c1", "createindexes", document.New(
		"createIndexes", "people",
		"indexes", []document.Doc{
			document.New("name", "email_1", "ns", "testdb.people", "key", document.New("email", 1), "unique", true),
		},
	))
	require.NoError(t, err)

	_, err = db.HandleCommand(ctx, "c1", "insert", document.New(
		"collection", "people",
		"documents", []document.Doc{document.New("_id", 1, "email", "a@example.com")},
	))
	require.NoError(t, err)

	resp, err := db.HandleCommand(ctx, "c1", "insert", document.New(
		"collection", "people",
		"documents", []document.Doc{document.New("_id", 2, "email", "a@example.com")},
	))
	require.NoError(t, err)
	n, _ := resp.Get("n")
	assert.EqualValues(t, 0, n)
	writeErrors, _ := resp.Get("writeErrors")
	entries, _ := writeErrors.([]document.Doc)
	require.Len(t, entries, 1)
	code, _ := entries[0].Get("code")
	assert.EqualValues(t, 11000, code)
}

func TestCreateLeavesSentinelPending(t *testing.T) {
	ctx := context.Background()
	db, _ := newDatabase()

	_, err := db.HandleCommand(ctx, "c1", "create", document.New("collection", "people"))
	require.NoError(t, err)

	resp, err := db.HandleCommand(ctx, "c1", "getlasterror", document.Doc{})
	require.NoError(t, err)
	n, _ := resp.Get("n")
	assert.Nil(t, n)
}

func TestAggregateCount(t *testing.T) {
	ctx := context.Background()
	db, _ := newDatabase()

	_, err := db.HandleCommand(ctx, "c1", "insert", document.New(
		"collection", "c",
		"documents", []document.Doc{
			document.New("_id", 1, "a", "x"),
			document.New("_id", 2, "a", "y"),
		},
	))
	require.NoError(t, err)

	resp, err := db.HandleCommand(ctx, "c1", "aggregate", document.New(
		"collection", "c",
		"pipeline", []document.Doc{
			document.New("$match", document.New("a", "x")),
			document.New("$count", "total"),
		},
		"cursor", document.Doc{},
	))
	require.NoError(t, err)
	cursor, _ := resp.Get("cursor")
	batch, _ := cursor.(document.Doc).Get("firstBatch")
	docs, _ := batch.([]document.Doc)
	require.Len(t, docs, 1)
	total, _ := docs[0].Get("total")
	assert.EqualValues(t, 1, total)
}

func TestDropMissingCollectionIsSilent(t *testing.T) {
	ctx := context.Background()
	db, _ := newDatabase()

	_, err := db.HandleCommand(ctx, "c1", "drop", document.New("drop", "nope"))
	require.Error(t, err)
	assert.True(t, nanoerrors.Extract(err).Silent)
}

func TestInsertIntoSystemCollectionFailsWithCode(t *testing.T) {
	ctx := context.Background()
	db, _ := newDatabase()

	_, err := db.HandleCommand(ctx, "c1", "insert", document.New(
		"collection", "system.foo",
		"documents", []document.Doc{document.New("_id", 1)},
	))
	require.Error(t, err)
	assert.True(t, nanoerrors.Is(err, nanoerrors.InsertIntoSystem))

	resp, err := db.HandleCommand(ctx, "c1", "getlasterror", document.Doc{})
	require.NoError(t, err)
	errVal, _ := resp.Get("err")
	assert.NotNil(t, errVal)
}

func TestDropDatabaseDelegatesToBackend(t *testing.T) {
	ctx := context.Background()
	db, backend := newDatabase()

	resp, err := db.HandleCommand(ctx, "c1", "dropDatabase", document.Doc{})
	require.NoError(t, err)
	dropped, _ := resp.Get("dropped")
	assert.Equal(t, "testdb", dropped)
	assert.Contains(t, backend.dropped, "testdb")
}

func TestListCollectionsEnumeratesNamespaces(t *testing.T) {
	ctx := context.Background()
	db, _ := newDatabase()

	_, err := db.HandleCommand(ctx, "c1", "create", document.New("collection", "a"))
	require.NoError(t, err)
	_, err = db.HandleCommand(ctx, "c1", "create", document.New("collection", "b"))
	require.NoError(t, err)

	resp, err := db.HandleCommand(ctx, "c1", "listCollections", document.Doc{})
	require.NoError(t, err)
	cursor, _ := resp.Get("cursor")
	batch, _ := cursor.(document.Doc).Get("firstBatch")
	docs, _ := batch.([]document.Doc)
	var names []string
	for _, d := range docs {
		n, _ := d.Get("name")
		names = append(names, n.(string))
	}
	assert.ElementsMatch(t, []string{"a", "b", "system.indexes"}, names)
}

func TestUnrecognizedCommandFails(t *testing.T) {
	ctx := context.Background()
	db, _ := newDatabase()

	_, err := db.HandleCommand(ctx, "c1", "bogus", document.Doc{})
	require.Error(t, err)
}

func TestCreateExistingCollectionFailsWithCode48(t *testing.T) {
	ctx := context.Background()
	db, _ := newDatabase()

	_, err := db.HandleCommand(ctx, "c1", "create", document.New("collection", "c"))
	require.NoError(t, err)
	_, err = db.HandleCommand(ctx, "c1", "create", document.New("collection", "c"))
	require.Error(t, err)
	assert.True(t, nanoerrors.Is(err, nanoerrors.NamespaceExists))
}

func TestAggregateWithoutCursorFails(t *testing.T) {
	ctx := context.Background()
	db, _ := newDatabase()

	_, err := db.HandleCommand(ctx, "c1", "aggregate", document.New(
		"collection", "c",
		"pipeline", []document.Doc{},
	))
	require.Error(t, err)
	assert.True(t, nanoerrors.Is(err, nanoerrors.CursorRequired))
}

func TestBootstrapReplaysPersistedState(t *testing.T) {
	ctx := context.Background()
	shared := map[string]*memory.Collection{}
	newCollection := func(name string) collection.Collection {
		if c, ok := shared[name]; ok {
			return c
		}
		c := memory.New("testdb", name)
		shared[name] = c
		return c
	}

	backend := &nopBackend{}
	db1 := database.New("testdb", backend, newCollection, memory.IndexFactory{}, nil)
	_, err := db1.HandleCommand(ctx, "c1", "insert", document.New(
		"collection", "c",
		"documents", []document.Doc{document.New("_id", 1, "a", "x")},
	))
	require.NoError(t, err)

	db2 := database.New("testdb", backend, newCollection, memory.IndexFactory{}, nil)
	resp, err := db2.HandleCommand(ctx, "c1", "find", document.New("collection", "c"))
	require.NoError(t, err)
	cursor, _ := resp.Get("cursor")
	batch, _ := cursor.(document.Doc).Get("firstBatch")
	docs, _ := batch.([]document.Doc)
	require.Len(t, docs, 1)
}

var _ = catalog.MaxNamespaceLength
