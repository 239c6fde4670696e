package util

import (
	"sync"
)

var (
	globalLogger LoggerInterface
	loggerMu     sync.RWMutex
)

// InitLogger builds the global logger from opts and installs it.
// A previously installed logger is closed.
func InitLogger(opts Options) error {
	logger, err := NewLogger(opts)
	if err != nil {
		return err
	}
	SetLogger(logger)
	return nil
}

// SetLogger installs l as the global logger, closing the previous one.
func SetLogger(l LoggerInterface) {
	loggerMu.Lock()
	old := globalLogger
	globalLogger = l
	loggerMu.Unlock()

	if old != nil && old != l {
		_ = old.Close()
	}
}

// GetLogger returns the global logger, or a logger that discards
// everything when none is installed.
func GetLogger() LoggerInterface {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if globalLogger == nil {
		return &Logger{level: LevelError + 1}
	}
	return globalLogger
}

// LogInfo convenience functions for logging
func LogInfo(msg string) {
	GetLogger().Info(msg)
}

func LogInfof(format string, args ...interface{}) {
	GetLogger().Infof(format, args...)
}

func LogDebug(msg string) {
	GetLogger().Debug(msg)
}

func LogDebugf(format string, args ...interface{}) {
	GetLogger().Debugf(format, args...)
}

func LogWarn(msg string) {
	GetLogger().Warn(msg)
}

func LogWarnf(format string, args ...interface{}) {
	GetLogger().Warnf(format, args...)
}

func LogError(msg string) {
	GetLogger().Error(msg)
}

func LogErrorf(format string, args ...interface{}) {
	GetLogger().Errorf(format, args...)
}
