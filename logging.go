package simplertos

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// LogLevel is the severity of a LogEntry.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the human-readable level name.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}

// LogEntry is a single structured log record emitted by the kernel.
type LogEntry struct {
	Level     LogLevel
	Category  string // e.g. "kernel", "task", "timer"
	TaskID    int64
	TimerID   int64
	Message   string
	Err       error
	Timestamp time.Time
}

// Logger is the structured logging interface the kernel emits through.
// Implementations can bridge to an external logging framework; the
// built-in DefaultLogger writes plain text to stderr. A Kernel logs to a
// no-op logger unless WithLogger installs another.
type Logger interface {
	Log(entry LogEntry)
	IsEnabled(level LogLevel) bool
}

// noOpLogger discards everything; it's the default unless WithLogger
// installs another logger, keeping the hot path (tick handling, dispatch) free of
// allocation when no logger is configured.
type noOpLogger struct{}

func (noOpLogger) Log(LogEntry)          {}
func (noOpLogger) IsEnabled(LogLevel) bool { return false }

// DefaultLogger is a minimal text Logger, writing to an *os.File.
type DefaultLogger struct {
	level atomic.Int32
	mu    sync.Mutex
	Out   *os.File
}

// NewDefaultLogger creates a DefaultLogger writing to stderr at the given
// minimum level.
func NewDefaultLogger(level LogLevel) *DefaultLogger {
	l := &DefaultLogger{Out: os.Stderr}
	l.level.Store(int32(level))
	return l
}

// SetLevel changes the minimum level logged.
func (l *DefaultLogger) SetLevel(level LogLevel) { l.level.Store(int32(level)) }

// IsEnabled reports whether level would be logged.
func (l *DefaultLogger) IsEnabled(level LogLevel) bool {
	return level >= LogLevel(l.level.Load())
}

// Log writes entry if its level is enabled.
func (l *DefaultLogger) Log(entry LogEntry) {
	if !l.IsEnabled(entry.Level) {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.Out, "%s %s [%-9s]", entry.Timestamp.Format("15:04:05.000"), entry.Level, entry.Category)
	if entry.TaskID != 0 {
		fmt.Fprintf(l.Out, " task=%d", entry.TaskID)
	}
	if entry.TimerID != 0 {
		fmt.Fprintf(l.Out, " timer=%d", entry.TimerID)
	}
	fmt.Fprintf(l.Out, " %s", entry.Message)
	if entry.Err != nil {
		fmt.Fprintf(l.Out, ": %v", entry.Err)
	}
	fmt.Fprintln(l.Out)
}

// log is a tiny helper used throughout the kernel; it's cheap to call even
// when disabled since Logger.IsEnabled is checked first by implementations
// and the entry construction is the caller's to avoid when unused.
func (k *Kernel) log(level LogLevel, category, message string, taskID, timerID int64, err error) {
	lg := k.logger
	if lg == nil {
		return
	}
	if !lg.IsEnabled(level) {
		return
	}
	lg.Log(LogEntry{
		Level:    level,
		Category: category,
		TaskID:   taskID,
		TimerID:  timerID,
		Message:  message,
		Err:      err,
	})
}
