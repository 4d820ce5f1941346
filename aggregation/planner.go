package aggregation

import (
	"github.com/spf13/cast"

	"github.com/autom8ter/nanomongo/document"
	nanoerrors "github.com/autom8ter/nanomongo/errors"
)

// Parse translates a pipeline — an ordered sequence of single-key stage
// documents — into an execution plan. A stage document with ≠1 key fails
// with errors.StageShapeInvalid; an unrecognized key fails with
// errors.UnrecognizedStage.
func Parse(pipeline []document.Doc) ([]Stage, error) {
	plan := make([]Stage, 0, len(pipeline))
	for _, stageDoc := range pipeline {
		if stageDoc.Len() != 1 {
			return nil, nanoerrors.New(nanoerrors.StageShapeInvalid, "Location40323",
				"A pipeline stage specification object must contain exactly one field.")
		}
		key := stageDoc.Keys()[0]
		value, _ := stageDoc.Get(key)
		stages, err := buildStages(key, value)
		if err != nil {
			return nil, err
		}
		plan = append(plan, stages...)
	}
	return plan, nil
}

func buildStages(key string, value any) ([]Stage, error) {
	switch key {
	case "$match":
		return []Stage{Match(asDoc(value))}, nil
	case "$skip":
		return []Stage{Skip(cast.ToInt(value))}, nil
	case "$limit":
		return []Stage{Limit(cast.ToInt(value))}, nil
	case "$sort":
		return []Stage{OrderBy(asDoc(value))}, nil
	case "$project":
		return []Stage{Project(asDoc(value))}, nil
	case "$group":
		return []Stage{Group(asDoc(value))}, nil
	case "$addFields":
		return []Stage{AddFields(asDoc(value))}, nil
	case "$unwind":
		return []Stage{Unwind(cast.ToString(value))}, nil
	case "$count":
		name := cast.ToString(value)
		return []Stage{
			Group(document.New("_id", nil, name, document.New("$sum", 1))),
			Project(document.New("_id", 0)),
		}, nil
	default:
		return nil, nanoerrors.New(nanoerrors.UnrecognizedStage, "Location40324",
			"Unrecognized pipeline stage name: %q", key)
	}
}

func asDoc(v any) document.Doc {
	if d, ok := v.(document.Doc); ok {
		return d
	}
	return nil
}
