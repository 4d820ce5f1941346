package database

import (
	"context"
	"strings"

	"github.com/autom8ter/nanomongo/document"
	nanoerrors "github.com/autom8ter/nanomongo/errors"
)

// handlerKind controls how HandleCommand interacts with the per-channel
// error history around a handler's invocation, per spec.md §4.2/§4.4/§4.3.
type handlerKind int

const (
	kindErrorQuery handlerKind = iota // getlasterror/getpreverror/reseterror: never touch the sentinel
	kindWrite                         // insert/update/delete: complete the sentinel
	kindRead                          // everything else, including create/createIndexes: leave the sentinel pending
)

type commandHandler struct {
	kind handlerKind
	fn   func(ctx context.Context, channel string, params document.Doc) (document.Doc, error)
}

func (d *Database) handlers() map[string]commandHandler {
	return map[string]commandHandler{
		"find":           {kindRead, d.handleFind},
		"insert":         {kindWrite, d.handleInsertCommand},
		"update":         {kindWrite, d.handleUpdateCommand},
		"delete":         {kindWrite, d.handleDeleteCommand},
		"create":         {kindRead, d.handleCreate},
		"createindexes":  {kindRead, d.handleCreateIndexes},
		"count":          {kindRead, d.handleCount},
		"aggregate":      {kindRead, d.handleAggregate},
		"distinct":       {kindRead, d.handleDistinct},
		"findandmodify":  {kindRead, d.handleFindAndModify},
		"collstats":      {kindRead, d.handleCollStats},
		"validate":       {kindRead, d.handleValidateCommand},
		"listcollections": {kindRead, d.handleListCollections},
		"listindexes":    {kindRead, d.handleListIndexes},
		"drop":           {kindRead, d.handleDrop},
		"dropdatabase":   {kindRead, d.handleDropDatabase},
		"dbstats":        {kindRead, d.handleDBStats},
	}
}

// HandleCommand is the command router: it resolves name case-insensitively,
// appends the per-channel pending sentinel ahead of dispatch (unless name is
// one of the three error-query commands), invokes the handler, and — for
// write handlers only — completes the sentinel with the result or error.
func (d *Database) HandleCommand(ctx context.Context, channel, name string, params document.Doc) (document.Doc, error) {
	key := strings.ToLower(name)

	switch key {
	case "getlasterror":
		return d.handleGetLastError(channel, params)
	case "getpreverror":
		return d.handleGetPrevError(channel)
	case "reseterror":
		return d.handleResetError(channel)
	}

	handler, ok := d.handlers()[key]
	if !ok {
		return nil, nanoerrors.NoSuchCommand(name)
	}

	d.history.Begin(channel)
	resp, err := handler.fn(ctx, channel, params)
	if handler.kind != kindWrite {
		return resp, err
	}
	if err != nil {
		errDoc := errorDoc(err, channel)
		if completeErr := d.history.Complete(channel, errDoc); completeErr != nil {
			d.log.Error(ctx, "history assertion failed", completeErr, map[string]any{"channel": channel})
		}
		return nil, err
	}
	if completeErr := d.history.Complete(channel, resp); completeErr != nil {
		d.log.Error(ctx, "history assertion failed", completeErr, map[string]any{"channel": channel})
	}
	return resp, nil
}

func errorDoc(err error, channel string) document.Doc {
	e := nanoerrors.Extract(err)
	doc := document.New("err", e.Message(), "connectionId", channel)
	if e.Code != 0 {
		doc = doc.Set("code", int(e.Code))
	}
	if e.CodeName != "" {
		doc = doc.Set("codeName", e.CodeName)
	}
	return doc
}

func (d *Database) handleGetLastError(channel string, params document.Doc) (document.Doc, error) {
	for _, e := range params {
		if strings.EqualFold(e.Key, "getlasterror") {
			continue // the command's own key, present when params is the whole command document
		}
		switch e.Key {
		case "w", "fsync":
			continue
		default:
			return nil, nanoerrors.Generic("unknown getlasterror subcommand: %s", e.Key)
		}
	}
	resp := d.history.GetLastError(channel)
	return resp.Set("ok", 1), nil
}

func (d *Database) handleGetPrevError(channel string) (document.Doc, error) {
	resp := d.history.GetPrevError(channel)
	return resp.Set("ok", 1), nil
}

func (d *Database) handleResetError(channel string) (document.Doc, error) {
	d.history.ResetError(channel)
	return document.New("ok", 1), nil
}

// HandleClose removes channel's per-connection error history, per the
// framing layer's close path.
func (d *Database) HandleClose(channel string) {
	d.history.Close(channel)
}
