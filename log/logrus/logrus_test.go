package logrus

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/asidecache"
)

func TestLogrusLogger(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.InfoLevel)
	l := LogrusLogger{E: logrus.NewEntry(base)}

	l.Debug("hidden", nil)
	l.Warn("touch failed", asidecache.Fields{"key": "k"})

	require.Len(t, hook.AllEntries(), 1)
	e := hook.LastEntry()
	require.Equal(t, logrus.WarnLevel, e.Level)
	require.Equal(t, "touch failed", e.Message)
	require.Equal(t, "k", e.Data["key"])
}
