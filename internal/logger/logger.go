package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu       sync.Mutex
	instance *zap.Logger
)

// Init builds the process-wide logger. Idempotent; call once from main.
func Init(environment string) {
	mu.Lock()
	defer mu.Unlock()
	initLocked(environment)
}

func initLocked(environment string) {
	if instance != nil {
		return
	}
	var err error
	if environment == "production" {
		instance, err = zap.NewProduction()
	} else {
		instance, err = zap.NewDevelopment()
	}
	if err != nil {
		instance = zap.NewNop()
	}
}

// L returns the shared logger, building a development one when Init was
// never called (tests, mostly).
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	initLocked("development")
	return instance
}

// Named returns the shared logger tagged with a component name.
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// Sync flushes buffered entries. Defer from main.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if instance != nil {
		_ = instance.Sync()
	}
}
