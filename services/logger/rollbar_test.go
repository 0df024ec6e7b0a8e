package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campusgrid/core"
)

func newTestLogger(t *testing.T) (*RollbarLogger, *logtest.Hook) {
	t.Helper()
	std, hook := logtest.NewNullLogger()
	std.SetLevel(logrus.DebugLevel)
	logger := NewRollbarLogger(std.WithField("component", "TEST"), &core.Config{Env: "TEST"})
	logger.Enable(false)
	return logger, hook
}

func TestRollbarLogger_Fields(t *testing.T) {
	logger, hook := newTestLogger(t)
	err := errors.New("connection refused")

	logger.Warn("publishing ingestion event", err, map[string]interface{}{"run_id": "abc", "table": "classrooms"})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "publishing ingestion event", entry.Message)
	assert.Equal(t, err, entry.Data[logrus.ErrorKey])
	assert.Equal(t, "abc", entry.Data["run_id"])
	assert.Equal(t, "classrooms", entry.Data["table"])
	assert.Equal(t, "TEST", entry.Data["component"])
}

func TestRollbarLogger_Levels(t *testing.T) {
	logger, hook := newTestLogger(t)

	logger.Debug("debug")
	logger.Info("info", 42)
	logger.Error("error")

	entries := hook.AllEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, logrus.DebugLevel, entries[0].Level)
	assert.Equal(t, logrus.InfoLevel, entries[1].Level)
	assert.Equal(t, 42, entries[1].Data["extra"])
	assert.Equal(t, logrus.ErrorLevel, entries[2].Level)
}

func TestRollbarLogger_Prepare(t *testing.T) {
	logger, _ := newTestLogger(t)
	err := errors.New("boom")
	args, _ := logger.prepare("msg", []interface{}{err, map[string]interface{}{"k": "v"}})
	assert.Equal(t, []interface{}{"msg", err, map[string]interface{}{"k": "v"}}, args)
}
