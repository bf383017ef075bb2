package main_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/m-mizutani/gt"
	main "github.com/m-mizutani/uisynth/cmd/uisynth"
)

func TestNewLogger(t *testing.T) {
	t.Run("json output honors level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := main.NewLogger("warn", "json", &buf)
		gt.NoError(t, err).Required()

		logger.Info("hidden")
		logger.Warn("shown", "iteration", 3)

		var entry map[string]any
		gt.NoError(t, json.Unmarshal(buf.Bytes(), &entry)).Required()
		gt.Equal(t, entry["msg"], "shown")
		gt.Equal(t, entry["iteration"], any(float64(3)))
	})

	t.Run("text output", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := main.NewLogger("debug", "text", &buf)
		gt.NoError(t, err).Required()

		logger.Debug("expanding", "state", "s1")
		gt.S(t, buf.String()).Contains("msg=expanding")
		gt.S(t, buf.String()).Contains("state=s1")
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := main.NewLogger("loud", "text", &bytes.Buffer{})
		gt.Error(t, err)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := main.NewLogger("info", "xml", &bytes.Buffer{})
		gt.Error(t, err)
	})
}
