package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	l := Logger(base, "", "api", "testing")

	l.Info("hello")

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, "api", entry.Data["application"])
	assert.Equal(t, "testing", entry.Data["environment"])
}

func TestLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")
	l := Logger(logrus.New(), path, "api", "production")

	l.WithField("patient_id", 7).Warn("checked in")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"patient_id":7`)
	assert.Contains(t, string(data), `"application":"api"`)
}
