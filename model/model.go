// Package model defines the typed shapes the command router decodes raw
// Document parameters into, validated with go-playground/validator and
// populated with mitchellh/mapstructure — matching the teacher's model
// package, generalized from its document-store commands to the wire
// commands this core dispatches.
package model

import (
	"encoding/json"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/autom8ter/nanomongo/document"
	nanoerrors "github.com/autom8ter/nanomongo/errors"
)

var validate = validator.New()

var docType = reflect.TypeOf(document.Doc{})

// docHook lets mapstructure, which otherwise only understands
// map[string]interface{}, materialize document.Doc fields out of the plain
// maps produced by the JSON round-trip in Decode.
func docHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != docType {
		return data, nil
	}
	m, ok := data.(map[string]any)
	if !ok {
		return data, nil
	}
	return document.FromMap(m), nil
}

// Decode maps a raw command Doc into a typed struct. params is first
// round-tripped through JSON (document.Doc's own dotted-path machinery) so
// every nested value becomes a plain map/slice mapstructure can walk, then
// docHook turns the maps mapstructure lands on document.Doc fields back
// into Docs.
func Decode(params document.Doc, target any) error {
	bits, err := params.ToJSON()
	if err != nil {
		return err
	}
	var generic map[string]any
	if err := json.Unmarshal(bits, &generic); err != nil {
		return err
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: docHook,
		Result:     target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(generic)
}

// InsertCommand is the decoded shape of the insert command.
type InsertCommand struct {
	Collection string         `mapstructure:"collection" validate:"required"`
	Documents  []document.Doc `mapstructure:"documents" validate:"required,min=1"`
	Ordered    *bool          `mapstructure:"ordered"`
}

// UpdateOp is a single entry of the update command's "updates" array.
type UpdateOp struct {
	Q      document.Doc `mapstructure:"q"`
	U      document.Doc `mapstructure:"u" validate:"required"`
	Multi  bool         `mapstructure:"multi"`
	Upsert bool         `mapstructure:"upsert"`
}

// UpdateCommand is the decoded shape of the update command.
type UpdateCommand struct {
	Collection string     `mapstructure:"collection" validate:"required"`
	Updates    []UpdateOp `mapstructure:"updates" validate:"required,min=1"`
	Ordered    *bool      `mapstructure:"ordered"`
}

// DeleteOp is a single entry of the delete command's "deletes" array.
type DeleteOp struct {
	Q     document.Doc `mapstructure:"q"`
	Limit int          `mapstructure:"limit"`
}

// DeleteCommand is the decoded shape of the delete command.
type DeleteCommand struct {
	Collection string     `mapstructure:"collection" validate:"required"`
	Deletes    []DeleteOp `mapstructure:"deletes" validate:"required,min=1"`
	Ordered    *bool      `mapstructure:"ordered"`
}

// CreateCommand is the decoded shape of the create command.
type CreateCommand struct {
	Collection  string `mapstructure:"collection" validate:"required"`
	Capped      bool   `mapstructure:"capped"`
	AutoIndexID *bool  `mapstructure:"autoIndexId"`
}

// IndexDescription is a single entry of the createIndexes command's
// "indexes" array, and the shape persisted into system.indexes.
type IndexDescription struct {
	Name   string       `mapstructure:"name" validate:"required"`
	NS     string       `mapstructure:"ns" validate:"required"`
	Key    document.Doc `mapstructure:"key" validate:"required"`
	Unique bool         `mapstructure:"unique"`
}

// CreateIndexesCommand is the decoded shape of the createIndexes command.
type CreateIndexesCommand struct {
	Collection string             `mapstructure:"createIndexes" validate:"required"`
	Indexes    []IndexDescription `mapstructure:"indexes" validate:"required,min=1"`
}

// Validate runs struct validation, wrapping failures as a generic wire
// error (these are caller-side shape errors, not MongoServerError codes).
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return nanoerrors.Wrap(err, 0, "invalid command shape")
	}
	return nil
}
