package logging

import (
	"fmt"
	"io"
	"log"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger writes pipeline activity to a rotating log file under .loom/.
// Per-action failures the pipeline continues past are recorded here so they
// survive the invocation even when they are never surfaced to the user.
type Logger struct {
	logger *log.Logger
}

var (
	globalLogger *Logger
	once         sync.Once
)

// Get returns the singleton logger, initializing it with a rotating file
// handler on first use.
func Get() *Logger {
	once.Do(func() {
		logFile := &lumberjack.Logger{
			Filename:   ".loom/loom.log",
			MaxSize:    15, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		globalLogger = &Logger{
			logger: log.New(logFile, "", log.LstdFlags),
		}
	})
	return globalLogger
}

// New returns a logger writing to w. Used by tests and embedders that manage
// their own log destination.
func New(w io.Writer) *Logger {
	return &Logger{logger: log.New(w, "", log.LstdFlags)}
}

// Close closes the underlying log file.
func (l *Logger) Close() error {
	if logFile, ok := l.logger.Writer().(*lumberjack.Logger); ok {
		return logFile.Close()
	}
	return nil
}

// Log logs a general message.
func (l *Logger) Log(message string) {
	l.logger.Print(message)
}

// Logf logs a formatted general message.
func (l *Logger) Logf(format string, v ...any) {
	l.logger.Printf(format, v...)
}

// LogError logs an error.
func (l *Logger) LogError(err error) {
	l.logger.Printf("Error: %s", err)
}

// LogProcessStep logs the current step in a pipeline invocation.
func (l *Logger) LogProcessStep(step string) {
	l.logger.Printf("Process Step: %s", step)
}

// LogActionResult logs the outcome of a single action.
func (l *Logger) LogActionResult(kind, path string, err error) {
	if err != nil {
		l.logger.Printf("Action %s %s failed: %v", kind, path, err)
		return
	}
	l.logger.Print(fmt.Sprintf("Action %s %s ok", kind, path))
}
