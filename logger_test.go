package nanomongo_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autom8ter/nanomongo"
	"github.com/autom8ter/nanomongo/errors"
)

func TestLogger(t *testing.T) {
	t.Run("debug", func(t *testing.T) {
		logger, err := nanomongo.NewLogger("debug", map[string]any{})
		assert.Nil(t, err)
		assert.NotNil(t, logger)
		logger.Debug(context.Background(), "debug logger", nil)
	})
	t.Run("info", func(t *testing.T) {
		logger, err := nanomongo.NewLogger("info", map[string]any{})
		assert.Nil(t, err)
		logger.Info(context.Background(), "info logger", nil)
	})
	t.Run("warn", func(t *testing.T) {
		logger, err := nanomongo.NewLogger("warn", map[string]any{})
		assert.Nil(t, err)
		logger.Warn(context.Background(), "warn logger", nil)
	})
	t.Run("error", func(t *testing.T) {
		logger, err := nanomongo.NewLogger("error", map[string]any{})
		assert.Nil(t, err)
		logger.Error(context.Background(), "error logger", fmt.Errorf("this is an error"), nil)
	})
	t.Run("silent errors are suppressed", func(t *testing.T) {
		logger := nanomongo.NewNopLogger()
		nanomongo.LogServerError(context.Background(), logger, "dropped", errors.NewSilent("ns not found"), nil)
	})
}
