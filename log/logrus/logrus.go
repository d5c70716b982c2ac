// Package logrus adapts sirupsen/logrus to asidecache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/asidecache"
)

var _ asidecache.Logger = LogrusLogger{}

// LogrusLogger writes through E, or the standard logger when E is nil.
type LogrusLogger struct{ E *logrus.Entry }

func (l LogrusLogger) Debug(msg string, f asidecache.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f asidecache.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f asidecache.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f asidecache.Fields) { l.with(f).Error(msg) }

func (l LogrusLogger) with(f asidecache.Fields) *logrus.Entry {
	e := l.E
	if e == nil {
		e = logrus.NewEntry(logrus.StandardLogger())
	}
	if len(f) == 0 {
		return e
	}
	return e.WithFields(logrus.Fields(f))
}
