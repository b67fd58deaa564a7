// Package zap adapts go.uber.org/zap to the apicache Logger.
package zap

import (
	"go.uber.org/zap"

	"github.com/unkn0wn-root/apicache"
)

type Logger struct{ L *zap.Logger }

var _ apicache.Logger = Logger{}

func (z Logger) Debug(msg string, f apicache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f apicache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f apicache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f apicache.Fields) { z.L.Error(msg, fields(f)...) }

func fields(f apicache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}
