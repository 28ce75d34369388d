// Package logging builds the process-wide logr.Logger. Adapted from the
// teacher's pkg/operator/operator.go, which wires zap into controller-
// runtime's logr plumbing via sigs.k8s.io/controller-runtime/pkg/log/zap;
// this process has no controller-runtime manager, so zap is wired
// straight into go-logr via go-logr/zapr instead. One named logger per
// component ("orchestrator", "mapping", "worker", "checkpoint", "ingest",
// "broker") mirrors the teacher's setupLog/reconcileLog naming convention.
package logging

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logr.Logger backed by zap. devMode selects a
// human-readable console encoder at debug level (matching the teacher's
// zap.UseDevMode); production mode uses a JSON encoder at info level,
// suitable for log aggregation.
func New(devMode bool) logr.Logger {
	var cfg zap.Config
	if devMode {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zl, err := cfg.Build()
	if err != nil {
		// Building a zap logger from a well-formed default config cannot
		// fail in practice; fall back to a no-op sink rather than panic
		// the whole process over logging setup.
		return logr.Discard()
	}
	return zapr.NewLogger(zl)
}
