package amp

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// ReaderWithTimeout is a reader that supports read deadlines, such as a
// net.Conn or an *os.File on a serial port.
type ReaderWithTimeout interface {
	io.Reader
	SetReadDeadline(time.Time) error
}

// streamIO reads the receive channel in chunks, honoring cancellation and an
// idle timeout when the reader supports deadlines.
type streamIO struct {
	reader  io.Reader
	writer  io.Writer
	rbuf    []byte
	timeout time.Duration
	ctx     context.Context
}

// newStreamIO creates a new stream handler.
//
// Parameters:
//   - reader: the underlying reader (deadlines are used if it supports them)
//   - writer: the underlying writer
//   - bufsize: size of the read buffer
//   - timeout: idle timeout for reads (0 = no timeout)
func newStreamIO(reader io.Reader, writer io.Writer, bufsize int, timeout time.Duration) *streamIO {
	if bufsize <= 0 {
		bufsize = 1024
	}
	return &streamIO{
		reader:  reader,
		writer:  writer,
		rbuf:    make([]byte, bufsize),
		timeout: timeout,
		ctx:     context.Background(),
	}
}

// SetContext sets the context for cancellation.
func (z *streamIO) SetContext(ctx context.Context) {
	z.ctx = ctx
}

// ReadChunk returns the next bytes from the channel. The returned slice is
// only valid until the next call.
func (z *streamIO) ReadChunk() ([]byte, error) {
	if z.ctx != nil {
		select {
		case <-z.ctx.Done():
			return nil, NewError(ErrCancelled, z.ctx.Err().Error())
		default:
		}
	}

	if rt, ok := z.reader.(ReaderWithTimeout); ok && z.timeout > 0 {
		// Pipes and terminals report ErrNoDeadline; read without one
		if err := rt.SetReadDeadline(time.Now().Add(z.timeout)); err != nil && !errors.Is(err, os.ErrNoDeadline) {
			return nil, err
		}
	}

	n, err := z.reader.Read(z.rbuf)
	if err != nil && isTimeoutErr(err) {
		return z.rbuf[:n], NewError(ErrTimeout, err.Error())
	}
	return z.rbuf[:n], err
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Write writes bytes to the underlying writer.
func (z *streamIO) Write(buf []byte) (int, error) {
	return z.writer.Write(buf)
}

// WriteString writes s to the underlying writer.
func (z *streamIO) WriteString(s string) (int, error) {
	return io.WriteString(z.writer, s)
}

// Flush flushes the writer if it buffers.
func (z *streamIO) Flush() error {
	if f, ok := z.writer.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
