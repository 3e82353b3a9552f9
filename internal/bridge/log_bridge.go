package bridge

import (
	"os"
	goruntime "runtime"

	"github.com/kevingtzz/BMO-project/internal/logging"
	"github.com/rs/zerolog"
)

// LogBridge exposes the log history and diagnostics to surfaces
type LogBridge struct {
	emitter Emitter
	logger  *logging.Logger
	minimum zerolog.Level
}

// NewLogBridge creates a new log bridge
func NewLogBridge(logger *logging.Logger) *LogBridge {
	return &LogBridge{
		logger:  logger,
		minimum: zerolog.WarnLevel,
	}
}

// Bind streams entries at or above minimum to emitter as they are logged
func (b *LogBridge) Bind(emitter Emitter, minimum zerolog.Level) {
	b.emitter = emitter
	b.minimum = minimum

	b.logger.SetOnLog(func(entry logging.LogEntry) {
		level, err := zerolog.ParseLevel(entry.Level)
		if err != nil || level < b.minimum {
			return
		}
		b.emitter.Emit(EventLogEntry, entry)
	})
}

// Log records a message from the surface
func (b *LogBridge) Log(level, component, message string) {
	log := b.logger.Component(component)
	switch level {
	case "debug":
		log.Debug().Msg(message)
	case "warn":
		log.Warn().Msg(message)
	case "error":
		log.Error().Msg(message)
	default:
		log.Info().Msg(message)
	}
}

// GetLogHistory returns recent log entries
func (b *LogBridge) GetLogHistory(limit int) []logging.LogEntry {
	return b.logger.GetHistory(limit)
}

// GetDiagnostics returns the kept warnings and errors, contract mismatches
// included
func (b *LogBridge) GetDiagnostics() []logging.LogEntry {
	return b.logger.Diagnostics()
}

// GetLogPath returns the current log file path
func (b *LogBridge) GetLogPath() string {
	return b.logger.GetLogPath()
}

// GetSystemInfo returns system information for troubleshooting
func (b *LogBridge) GetSystemInfo() map[string]any {
	info := make(map[string]any)

	info["os"] = goruntime.GOOS
	info["arch"] = goruntime.GOARCH
	info["goVersion"] = goruntime.Version()
	info["numGoroutine"] = goruntime.NumGoroutine()

	var m goruntime.MemStats
	goruntime.ReadMemStats(&m)
	info["memAlloc"] = m.Alloc / 1024 / 1024 // MB
	info["numGC"] = m.NumGC

	info["home"] = os.Getenv("HOME")
	info["logPath"] = b.logger.GetLogPath()

	return info
}
