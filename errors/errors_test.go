package errors_test

import (
	"fmt"
	"testing"

	"github.com/autom8ter/nanomongo/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrors(t *testing.T) {
	t.Run("wrap nil error", func(t *testing.T) {
		var err error
		err = errors.Wrap(err, errors.NamespaceExists, "")
		assert.Nil(t, err)
	})
	t.Run("wrap plain error attaches a code", func(t *testing.T) {
		var err error = fmt.Errorf("boom")
		err = errors.Wrap(err, errors.NamespaceExists, "wrapped")
		assert.Equal(t, errors.NamespaceExists, errors.Extract(err).Code)
	})
	t.Run("new error carries code and codeName", func(t *testing.T) {
		err := errors.New(errors.NamespaceExists, "NamespaceExists", "collection already exists")
		e := errors.Extract(err)
		assert.Equal(t, errors.NamespaceExists, e.Code)
		assert.Equal(t, "NamespaceExists", e.CodeName)
		assert.Equal(t, "collection already exists", e.Message())
	})
	t.Run("silent error is flagged", func(t *testing.T) {
		err := errors.NewSilent("ns not found")
		assert.True(t, errors.Extract(err).Silent)
	})
	t.Run("generic error has no code", func(t *testing.T) {
		err := errors.Generic("not yet implemented")
		assert.Equal(t, errors.Code(0), errors.Extract(err).Code)
	})
	t.Run("is checks the code", func(t *testing.T) {
		err := errors.New(errors.NamespaceExists, "", "exists")
		assert.True(t, errors.Is(err, errors.NamespaceExists))
		assert.False(t, errors.Is(err, errors.CursorRequired))
	})
	t.Run("error renders as json", func(t *testing.T) {
		err := errors.New(errors.NamespaceTooLong, "", "ns name too long")
		assert.JSONEq(t, `{"code":10080,"messages":["ns name too long"]}`, err.Error())
	})
}
