package obs

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logOnce sync.Once
	logger  *zap.SugaredLogger
)

// L returns the process-wide structured logger, built on first call
// with a production zap config. Context-Fabric never uses the logger
// for control flow; it logs load diagnostics from fabric.Open only, and
// the SPIN executor does not log.
func L() *zap.SugaredLogger {
	logOnce.Do(func() {
		base, err := zap.NewProduction()
		if err != nil {
			base = zap.NewNop()
		}
		logger = base.Sugar()
	})
	return logger
}

// SetLogger overrides the package-level logger, used by tests and by
// callers embedding Context-Fabric in a process with its own zap
// configuration.
func SetLogger(l *zap.SugaredLogger) {
	logOnce.Do(func() {}) // ensure logOnce is consumed so L() never overwrites an explicit SetLogger
	logger = l
}
