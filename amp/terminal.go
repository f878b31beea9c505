package amp

import (
	"context"
	"io"
	"sync"
	"time"
)

// TerminalIO wraps the output side of an interactive session, such as an SSH
// shell running a modem program or a serial TNC. Terminal text passes
// through unchanged while every byte is also fed to a decoder, so broadcast
// files are captured while the user watches the channel.
type TerminalIO struct {
	// Underlying I/O
	reader io.Reader
	writer io.Writer

	// Configuration
	config    *Config
	callbacks *Callbacks
	ctx       context.Context
	logger    Logger

	// State
	mu        sync.Mutex
	decoder   *Deamp
	tracker   *ProgressTracker
	completed []string
	received  int
	lastErr   error
}

// NewTerminalIO creates a new TerminalIO middleware that wraps a reader and
// writer pair.
//
// The returned TerminalIO provides:
//   - TerminalReader(): io.Reader for terminal output (passes through, decoding AMP blocks)
//   - TerminalWriter(): io.Writer for terminal input (passes through)
//
// Example:
//
//	termIO := amp.NewTerminalIO(sshStdout, sshStdin, amp.WithCallbacks(callbacks))
//	go io.Copy(os.Stdout, termIO.TerminalReader())
//	go io.Copy(termIO.TerminalWriter(), os.Stdin)
func NewTerminalIO(reader io.Reader, writer io.Writer, opts ...Option) *TerminalIO {
	// Options are written against Session; apply them to one and keep the
	// result
	s := NewSession(nil, nil, opts...)

	t := &TerminalIO{
		reader:    reader,
		writer:    writer,
		config:    s.config,
		callbacks: s.callbacks,
		ctx:       s.ctx,
		logger:    s.logger,
	}
	t.tracker = NewProgressTracker(t.callbacks.OnProgress, t.config.ProgressInterval)
	hooks := &Callbacks{
		OnFileUpdate: t.tracker.Observe,
		OnFileComplete: func(e FileCompleteEvent) {
			t.completed = append(t.completed, e.Hash)
		},
	}
	t.decoder = NewDeamp(chainCallbacks(t.callbacks, hooks), &DeampConfig{
		Compressors:   t.config.Compressors,
		MaxFrameBytes: t.config.MaxFrameBytes,
		Location:      t.config.Location,
		Logger:        t.logger,
	})
	return t
}

// NewTerminalIOWithLogger creates a TerminalIO with a logger
func NewTerminalIOWithLogger(reader io.Reader, writer io.Writer, logger Logger, opts ...Option) *TerminalIO {
	opts = append(opts, WithSessionLogger(logger))
	termIO := NewTerminalIO(reader, writer, opts...)
	termIO.logger.Info("TerminalIO initialized with logging")
	return termIO
}

// TerminalReader returns an io.Reader that provides terminal output.
func (t *TerminalIO) TerminalReader() io.Reader {
	return t
}

// TerminalWriter returns an io.Writer that accepts terminal input.
// Data is passed through to the underlying writer.
func (t *TerminalIO) TerminalWriter() io.Writer {
	return t.writer
}

// Read implements io.Reader for TerminalIO.
// It passes data through and decodes any AMP blocks in it.
func (t *TerminalIO) Read(p []byte) (int, error) {
	select {
	case <-t.ctx.Done():
		return 0, t.ctx.Err()
	default:
	}

	n, err := t.reader.Read(p)
	if n > 0 {
		t.scan(p[:n])
	}
	if err != nil && err != io.EOF {
		t.logger.Error("TerminalIO: Read error: %v", err)
	}
	return n, err
}

// scan feeds terminal output to the decoder and delivers completed files.
func (t *TerminalIO) scan(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.decoder.Write(data)
	for _, hash := range t.completed {
		f, ok := t.decoder.Retire(hash)
		if !ok {
			continue
		}
		duration := t.tracker.Complete(hash)
		content, err := f.Content()
		if err != nil {
			t.logger.Error("TerminalIO: %s: %v", f.Name, err)
			t.callbacks.OnError(err, "recover "+f.Name)
			continue
		}
		t.logger.Info("TerminalIO: received %s (%d bytes in %v)", f.Name, len(content), duration)
		if err := t.callbacks.OnFileReceived(f, content); err != nil {
			t.lastErr = err
			t.callbacks.OnError(err, "file received")
		}
		t.received++
	}
	t.completed = t.completed[:0]
}

// SendFile broadcasts content through the terminal writer, for example into
// a modem program waiting for text to transmit.
func (t *TerminalIO) SendFile(filename string, content []byte, modified time.Time) (*Amp, error) {
	s := NewSession(nil, t.writer,
		WithConfig(t.config),
		WithCallbacks(t.callbacks),
		WithContext(t.ctx),
		WithSessionLogger(t.logger),
	)
	a, err := s.NewAmp(filename, content, modified)
	if err != nil {
		return nil, err
	}
	return a, s.SendAmp(t.ctx, a, RenderOptions{})
}

// Received returns the number of files delivered so far.
func (t *TerminalIO) Received() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.received
}

// Pending returns the hashes of transfers still being assembled.
func (t *TerminalIO) Pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.decoder.Files()
}

// Err returns the last error returned by OnFileReceived.
func (t *TerminalIO) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}
