package core

import (
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var once sync.Once

type logger struct {
	*log.Logger
}

var singleton *logger

func getLogger() *logger {
	if singleton == nil {
		once.Do(
			func() {
				l := log.NewWithOptions(os.Stderr, log.Options{
					ReportCaller:    true,
					ReportTimestamp: true,
					TimeFormat:      time.RFC3339,
					Prefix:          "Prism 🎥 ",
				})
				l.SetLevel(log.InfoLevel)
				singleton = &logger{l}
			})
	}
	return singleton
}

// SetLogLevel adjusts the global log level. Accepts "debug", "info",
// "warn", "error"; anything else keeps the current level.
func SetLogLevel(level string) {
	if lvl, err := log.ParseLevel(level); err == nil {
		getLogger().SetLevel(lvl)
	}
}

// LogLevelEnabled reports whether messages at the given level would be
// emitted. Used to gate expensive diagnostic dumps.
func LogLevelEnabled(level string) bool {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return false
	}
	return getLogger().GetLevel() <= lvl
}

func LogDebug(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	getLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	getLogger().Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	getLogger().Fatalf(msg, args...)
}

// LogSource logs a multi-line shader source with line numbers, one log
// line per source line, at debug or error severity.
func LogSource(source string, isError bool) {
	line := 1
	for len(source) > 0 {
		end := len(source)
		for i := 0; i < len(source); i++ {
			if source[i] == '\n' {
				end = i
				break
			}
		}
		if isError {
			LogError("[%3d] %s", line, source[:end])
		} else {
			LogDebug("[%3d] %s", line, source[:end])
		}
		if end == len(source) {
			break
		}
		source = source[end+1:]
		line++
	}
}
