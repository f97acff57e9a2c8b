package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	mu          sync.Mutex
	globalSugar *zap.SugaredLogger
	globalBase  *zap.Logger
)

// Init builds the process-wide zap logger. env "production" (or "prod") selects the
// JSON production config, anything else the development config.
// Standard library log output is redirected into zap.
func Init(env string) (*zap.SugaredLogger, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalSugar != nil && globalBase != nil {
		return globalSugar, nil
	}

	var cfg zap.Config
	if strings.EqualFold(env, "prod") || strings.EqualFold(env, "production") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(base)
	_ = zap.RedirectStdLog(base)

	globalBase = base
	globalSugar = base.Sugar()
	return globalSugar, nil
}

// L returns the global sugared logger, initializing it from LOG_ENV on first use.
func L() *zap.SugaredLogger {
	ensure()
	return globalSugar
}

// Base returns the non-sugared logger.
func Base() *zap.Logger {
	ensure()
	return globalBase
}

// Or returns l when non-nil, otherwise the global base logger.
func Or(l *zap.Logger) *zap.Logger {
	if l != nil {
		return l
	}
	return Base()
}

func ensure() {
	mu.Lock()
	ready := globalBase != nil
	mu.Unlock()
	if ready {
		return
	}
	if _, err := Init(os.Getenv("LOG_ENV")); err != nil {
		base, _ := zap.NewDevelopment()
		mu.Lock()
		globalBase = base
		globalSugar = base.Sugar()
		mu.Unlock()
	}
}

// Sync flushes any buffered log entries.
func Sync() {
	if globalSugar != nil {
		_ = globalSugar.Sync()
	}
	if globalBase != nil {
		_ = globalBase.Sync()
	}
}
