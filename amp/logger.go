package amp

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger interface for AMP protocol logging
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Level is the minimum severity a FileLogger writes.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel accepts debug, info or error in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, NewError(ErrConfig, fmt.Sprintf("unknown log level %q", s))
}

// FileLogger writes timestamped lines to a file or any writer.
type FileLogger struct {
	mu    sync.Mutex
	out   io.Writer
	file  *os.File
	level Level
	now   func() time.Time
}

// NewFileLogger creates a logger that appends to the file at path. The path
// "-" logs to stderr.
func NewFileLogger(path string) (*FileLogger, error) {
	if path == "-" {
		return NewWriterLogger(os.Stderr), nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	l := NewWriterLogger(file)
	l.file = file
	return l, nil
}

// NewWriterLogger creates a logger that writes to w at LevelDebug.
func NewWriterLogger(w io.Writer) *FileLogger {
	return &FileLogger{out: w, level: LevelDebug, now: time.Now}
}

// SetLevel drops messages below level.
func (l *FileLogger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *FileLogger) log(level Level, format string, args ...interface{}) {
	if l == nil || l.out == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	timestamp := l.now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(l.out, "[%s] %s: %s\n", timestamp, level, fmt.Sprintf(format, args...))
}

func (l *FileLogger) Debug(format string, args ...interface{}) { l.log(LevelDebug, format, args...) }
func (l *FileLogger) Info(format string, args ...interface{})  { l.log(LevelInfo, format, args...) }
func (l *FileLogger) Error(format string, args ...interface{}) { l.log(LevelError, format, args...) }

// Close closes the log file, if the logger owns one.
func (l *FileLogger) Close() error {
	if l != nil && l.file != nil {
		return l.file.Close()
	}
	return nil
}

// NoopLogger does nothing
type NoopLogger struct{}

func (NoopLogger) Debug(format string, args ...interface{}) {}
func (NoopLogger) Info(format string, args ...interface{})  {}
func (NoopLogger) Error(format string, args ...interface{}) {}

// FormatBlockLog formats a block for logging with data truncation
func FormatBlockLog(direction string, b *Block) string {
	msg := fmt.Sprintf("%s %s %s (bytes=%d, checksum=%s", direction, b.Keyword, b.HashString(), b.ByteCount(), b.Checksum())
	if b.Data == "" {
		return msg + ")"
	}
	if len(b.Data) > 128 {
		return msg + fmt.Sprintf(", data=%q...[truncated])", b.Data[:128])
	}
	return msg + fmt.Sprintf(", data=%q)", b.Data)
}

// lineTap logs channel traffic one text line at a time. The AMP channel is
// line oriented, so a frame usually shows up as a single entry.
type lineTap struct {
	mu      sync.Mutex
	logger  Logger
	name    string
	partial []byte
}

func (t *lineTap) observe(p []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.partial = append(t.partial, p...)
	for {
		i := bytes.IndexByte(t.partial, '\n')
		if i < 0 {
			break
		}
		t.emit(bytes.TrimRight(t.partial[:i], "\r"))
		t.partial = t.partial[i+1:]
	}
	// A stream without newlines is logged in bounded pieces
	if len(t.partial) > DefaultMaxFrameBytes {
		t.emit(t.partial)
		t.partial = nil
	}
}

func (t *lineTap) flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.partial) > 0 {
		t.emit(t.partial)
		t.partial = nil
	}
}

func (t *lineTap) emit(line []byte) {
	if len(line) == 0 {
		return
	}
	if len(line) > 128 {
		t.logger.Debug("%s: %q...[truncated, %d bytes]", t.name, line[:128], len(line))
		return
	}
	t.logger.Debug("%s: %q", t.name, line)
}

// TapReader logs every line read from the channel.
type TapReader struct {
	reader io.Reader
	tap    *lineTap
}

// NewTapReader wraps reader so its traffic is logged under name.
func NewTapReader(reader io.Reader, logger Logger, name string) *TapReader {
	return &TapReader{reader: reader, tap: &lineTap{logger: logger, name: name}}
}

func (r *TapReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.tap.observe(p[:n])
	}
	if err == io.EOF {
		r.tap.flush()
	} else if err != nil {
		r.tap.logger.Error("%s: read error: %v", r.tap.name, err)
	}
	return n, err
}

// SetReadDeadline forwards to the wrapped reader when it supports deadlines.
func (r *TapReader) SetReadDeadline(t time.Time) error {
	if rt, ok := r.reader.(ReaderWithTimeout); ok {
		return rt.SetReadDeadline(t)
	}
	return os.ErrNoDeadline
}

// TapWriter logs every line written to the channel.
type TapWriter struct {
	writer io.Writer
	tap    *lineTap
}

// NewTapWriter wraps writer so its traffic is logged under name.
func NewTapWriter(writer io.Writer, logger Logger, name string) *TapWriter {
	return &TapWriter{writer: writer, tap: &lineTap{logger: logger, name: name}}
}

func (w *TapWriter) Write(p []byte) (int, error) {
	n, err := w.writer.Write(p)
	if n > 0 {
		w.tap.observe(p[:n])
	}
	if err != nil {
		w.tap.logger.Error("%s: write error: %v", w.tap.name, err)
	}
	return n, err
}

// Flush logs a trailing partial line and flushes the wrapped writer if it
// buffers.
func (w *TapWriter) Flush() error {
	w.tap.flush()
	if f, ok := w.writer.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
