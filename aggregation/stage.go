// Package aggregation translates a declarative aggregation pipeline into a
// staged execution plan and runs it against a collection's full scan, per
// spec.md §4.5. Stages are modeled as a tagged variant, the way the teacher
// models polymorphic payloads with a kind tag plus typed fields.
package aggregation

import "github.com/autom8ter/nanomongo/document"

// Kind tags a Stage's concrete payload.
type Kind string

const (
	KindMatch     Kind = "match"
	KindSkip      Kind = "skip"
	KindLimit     Kind = "limit"
	KindOrderBy   Kind = "orderBy"
	KindProject   Kind = "project"
	KindGroup     Kind = "group"
	KindAddFields Kind = "addFields"
	KindUnwind    Kind = "unwind"
)

// Stage is one step of an execution plan. Exactly one of the payload fields
// is meaningful, selected by Kind.
type Stage struct {
	Kind Kind

	Filter     document.Doc // Match
	N          int          // Skip, Limit
	KeyOrder   document.Doc // OrderBy: field -> ±1
	Projection document.Doc // Project
	GroupSpec  document.Doc // Group
	FieldSpec  document.Doc // AddFields
	FieldPath  string       // Unwind
}

// Match builds a $match stage.
func Match(filter document.Doc) Stage { return Stage{Kind: KindMatch, Filter: filter} }

// Skip builds a $skip stage.
func Skip(n int) Stage { return Stage{Kind: KindSkip, N: n} }

// Limit builds a $limit stage.
func Limit(n int) Stage { return Stage{Kind: KindLimit, N: n} }

// OrderBy builds a $sort stage.
func OrderBy(keyOrder document.Doc) Stage { return Stage{Kind: KindOrderBy, KeyOrder: keyOrder} }

// Project builds a $project stage.
func Project(projection document.Doc) Stage { return Stage{Kind: KindProject, Projection: projection} }

// Group builds a $group stage.
func Group(spec document.Doc) Stage { return Stage{Kind: KindGroup, GroupSpec: spec} }

// AddFields builds an $addFields stage.
func AddFields(spec document.Doc) Stage { return Stage{Kind: KindAddFields, FieldSpec: spec} }

// Unwind builds an $unwind stage.
func Unwind(fieldPath string) Stage { return Stage{Kind: KindUnwind, FieldPath: fieldPath} }
