// Package zap adapts go.uber.org/zap to asidecache.Logger.
package zap

import (
	"go.uber.org/zap"

	"github.com/unkn0wn-root/asidecache"
)

var _ asidecache.Logger = ZapLogger{}

// ZapLogger writes through L, or zap.L() when L is nil.
type ZapLogger struct{ L *zap.Logger }

func (z ZapLogger) Debug(msg string, f asidecache.Fields) { z.l().Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f asidecache.Fields)  { z.l().Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f asidecache.Fields)  { z.l().Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f asidecache.Fields) { z.l().Error(msg, zf(f)...) }

func (z ZapLogger) l() *zap.Logger {
	if z.L == nil {
		return zap.L()
	}
	return z.L
}

func zf(f asidecache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
