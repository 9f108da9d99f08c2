// Package logs is a small subsystem-tagged leveled logger. It exists because
// the ambient logging surface the rest of this module is built against
// (Logger, Backend, BackendWriter) is never vendored by the upstream it was
// modeled on - only referenced as an internal sibling package - so it is
// reproduced here rather than invented ad hoc per caller.
package logs

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// BackendWriter pairs an io.Writer with the minimum level it accepts.
type BackendWriter struct {
	w        io.Writer
	minLevel Level
}

// NewAllLevelsBackendWriter returns a writer that accepts every level.
func NewAllLevelsBackendWriter(w io.Writer) *BackendWriter {
	return &BackendWriter{w: w, minLevel: LevelTrace}
}

// NewErrorBackendWriter returns a writer that only accepts Error and above.
func NewErrorBackendWriter(w io.Writer) *BackendWriter {
	return &BackendWriter{w: w, minLevel: LevelError}
}

// Backend multiplexes formatted log lines to a set of BackendWriters.
type Backend struct {
	mtx     sync.Mutex
	writers []*BackendWriter
	closed  bool
}

// NewBackend creates a logging backend writing to the given writers.
func NewBackend(writers []*BackendWriter) *Backend {
	return &Backend{writers: writers}
}

func (b *Backend) write(level Level, tag, format string, args []interface{}) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.closed {
		return
	}
	line := fmt.Sprintf("%s [%s] %s %s\n",
		time.Now().UTC().Format("2006-01-02 15:04:05.000"), level, tag,
		fmt.Sprintf(format, args...))
	for _, w := range b.writers {
		if level >= w.minLevel {
			io.WriteString(w.w, line)
		}
	}
}

// Close marks the backend closed; further writes are dropped.
func (b *Backend) Close() {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.closed = true
}

// Logger writes subsystem-tagged, leveled log lines to a shared Backend.
type Logger struct {
	tag     string
	backend *Backend
	level   uint32
}

// Logger returns a new Logger writing to this backend, tagged with subsys.
func (b *Backend) Logger(subsys string) *Logger {
	l := &Logger{tag: subsys, backend: b}
	atomic.StoreUint32(&l.level, uint32(LevelInfo))
	return l
}

// Backend returns the backend this logger writes to.
func (l *Logger) Backend() *Backend { return l.backend }

// Level returns the logger's current minimum level.
func (l *Logger) Level() Level { return Level(atomic.LoadUint32(&l.level)) }

// SetLevel sets the logger's minimum level.
func (l *Logger) SetLevel(level Level) { atomic.StoreUint32(&l.level, uint32(level)) }

func (l *Logger) log(level Level, format string, args []interface{}) {
	if level < l.Level() {
		return
	}
	l.backend.write(level, l.tag, format, args)
}

func (l *Logger) Tracef(format string, args ...interface{})    { l.log(LevelTrace, format, args) }
func (l *Logger) Debugf(format string, args ...interface{})    { l.log(LevelDebug, format, args) }
func (l *Logger) Infof(format string, args ...interface{})     { l.log(LevelInfo, format, args) }
func (l *Logger) Warnf(format string, args ...interface{})     { l.log(LevelWarn, format, args) }
func (l *Logger) Errorf(format string, args ...interface{})    { l.log(LevelError, format, args) }
func (l *Logger) Criticalf(format string, args ...interface{}) { l.log(LevelCritical, format, args) }

// Disabled is a logger whose backend discards everything; useful as a
// safe zero value before InitLogRotators runs, and in tests.
func Disabled() *Logger {
	return NewBackend([]*BackendWriter{NewAllLevelsBackendWriter(io.Discard)}).Logger("DISABLED")
}
