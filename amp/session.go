package amp

import (
	"context"
	"io"
	"os"
	path "path/filepath"
	"strings"
	"time"
)

// Session represents an AMP broadcast session over a character channel.
// It provides a high-level API for sending and receiving files.
type Session struct {
	// I/O
	reader io.Reader
	writer io.Writer
	io     *streamIO

	// Configuration
	config *Config

	// Callbacks
	callbacks *Callbacks

	// Context
	ctx context.Context

	// Logger
	logger Logger

	// decoder is the Deamp of the running or last ReceiveFiles call
	decoder *Deamp
}

// Config holds session configuration.
type Config struct {
	// Encoder options
	BlockSize     int
	Compression   string
	ForceCompress bool
	Base          BaseEncoding
	FromCallsign  string
	ToCallsign    string
	Description   string
	SkipProgram   bool
	SkipEOF       bool
	SkipEOT       bool

	// Location is the zone FILE timestamps are written and read in
	Location *time.Location

	// Compressors available to both directions
	Compressors *CompressorRegistry

	// Decoder options
	MaxFrameBytes  int
	ReadBufferSize int

	// IdleTimeout ends reception when the channel stays silent this long
	// (0 = wait forever; needs a reader with deadlines)
	IdleTimeout time.Duration

	// LineDelay pauses between rendered lines, for transmitters that key
	// up as text arrives (0 = write everything at once)
	LineDelay time.Duration

	// Progress update interval
	ProgressInterval time.Duration

	// TraceChannel logs every line crossing the channel at debug level
	TraceChannel bool
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		BlockSize:        DefaultBlockSize,
		Location:         time.Local,
		Compressors:      DefaultCompressors(),
		MaxFrameBytes:    DefaultMaxFrameBytes,
		ReadBufferSize:   1024,
		ProgressInterval: 100 * time.Millisecond,
	}
}

// Option configures a Session.
type Option func(*Session)

// WithConfig sets the session configuration.
func WithConfig(config *Config) Option {
	return func(s *Session) {
		s.config = config
	}
}

// WithCallbacks sets the session callbacks.
func WithCallbacks(callbacks *Callbacks) Option {
	return func(s *Session) {
		s.callbacks = mergeCallbacks(callbacks)
	}
}

// WithContext sets the session context.
func WithContext(ctx context.Context) Option {
	return func(s *Session) {
		s.ctx = ctx
	}
}

// WithSessionLogger sets a logger for protocol debugging.
func WithSessionLogger(logger Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates a new AMP session. Either side may be nil when the
// session is only used in one direction.
func NewSession(reader io.Reader, writer io.Writer, opts ...Option) *Session {
	s := &Session{
		reader:    reader,
		writer:    writer,
		config:    DefaultConfig(),
		callbacks: defaultCallbacks(),
		ctx:       context.Background(),
		logger:    NoopLogger{},
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.config.Compressors == nil {
		s.config.Compressors = DefaultCompressors()
	}
	if s.config.Location == nil {
		s.config.Location = time.Local
	}

	if s.config.TraceChannel {
		if reader != nil {
			reader = NewTapReader(reader, s.logger, "rx")
		}
		if writer != nil {
			writer = NewTapWriter(writer, s.logger, "tx")
		}
	}
	s.io = newStreamIO(reader, writer, s.config.ReadBufferSize, s.config.IdleTimeout)
	return s
}

// NewAmp builds the encoder for one file using the session configuration.
func (s *Session) NewAmp(filename string, content []byte, modified time.Time) (*Amp, error) {
	if modified.IsZero() {
		modified = time.Now()
	}
	return NewAmp(Options{
		Filename:      filename,
		Modified:      modified.In(s.config.Location),
		BlockSize:     s.config.BlockSize,
		Content:       content,
		FromCallsign:  s.config.FromCallsign,
		ToCallsign:    s.config.ToCallsign,
		Compression:   s.config.Compression,
		ForceCompress: s.config.ForceCompress,
		Base:          s.config.Base,
		Description:   s.config.Description,
		SkipProgram:   s.config.SkipProgram,
		SkipEOF:       s.config.SkipEOF,
		SkipEOT:       s.config.SkipEOT,
		Compressors:   s.config.Compressors,
		Logger:        s.logger,
	})
}

// SendFile encodes a file and writes every block to the channel.
func (s *Session) SendFile(ctx context.Context, filename string, file io.Reader, fileInfo os.FileInfo) (*Amp, error) {
	// Use context from session if not provided
	if ctx == nil {
		ctx = s.ctx
	}

	content, err := io.ReadAll(file)
	if err != nil {
		s.callbacks.OnError(err, "read file")
		return nil, err
	}

	var modified time.Time
	if fileInfo != nil {
		modified = fileInfo.ModTime()
	}
	_, actualFileName := path.Split(filename)
	a, err := s.NewAmp(actualFileName, content, modified)
	if err != nil {
		s.callbacks.OnError(err, "encode file")
		return nil, err
	}

	if err := s.SendAmp(ctx, a, RenderOptions{}); err != nil {
		return a, err
	}
	return a, nil
}

// SendBlocks resends part of a transfer, typically the blocks a receiver
// reported missing.
func (s *Session) SendBlocks(ctx context.Context, a *Amp, blocks []int, omitHeaders bool) error {
	if ctx == nil {
		ctx = s.ctx
	}
	if blocks == nil {
		blocks = []int{}
	}
	return s.SendAmp(ctx, a, RenderOptions{Blocks: blocks, OmitHeaders: omitHeaders})
}

// SendAmp writes a rendering of a to the channel.
func (s *Session) SendAmp(ctx context.Context, a *Amp, ro RenderOptions) error {
	if s.writer == nil {
		return NewError(ErrConfig, "session has no writer")
	}
	start := time.Now()
	s.logger.Info("SendAmp: %s hash=%s blocks=%d encoding=%q compression=%q",
		a.Filename(), a.Hash(), a.DataBlockCount(), a.Encoding(), a.Compression())
	s.callbacks.OnFileStart(a.Filename(), a.TransmitLength(), a.DataBlockCount())
	s.callbacks.OnEvent(Event{Type: EventFileStart, Message: a.Filename(), Hash: a.Hash(), Timestamp: start})

	text := a.Render(ro)
	var written int64
	if s.config.LineDelay <= 0 {
		n, err := s.io.WriteString(text)
		written = int64(n)
		if err != nil {
			s.callbacks.OnError(err, "send file")
			return err
		}
	} else {
		lines := strings.SplitAfter(text, "\n")
		for i, line := range lines {
			if i > 0 {
				select {
				case <-ctx.Done():
					s.callbacks.OnEvent(Event{Type: EventCancelled, Hash: a.Hash(), Timestamp: time.Now()})
					return NewFileError(ErrCancelled, ctx.Err().Error(), a.Hash())
				case <-time.After(s.config.LineDelay):
				}
			}
			n, err := s.io.WriteString(line)
			written += int64(n)
			if err != nil {
				s.callbacks.OnError(err, "send file")
				return err
			}
			s.callbacks.OnEvent(Event{Type: EventBlockSent, Message: strings.TrimSpace(line), Hash: a.Hash(), Timestamp: time.Now()})
		}
	}
	if err := s.io.Flush(); err != nil {
		return err
	}

	s.callbacks.OnFileSent(a.Filename(), written, time.Since(start))
	return nil
}

// SendFiles sends multiple files over the session.
func (s *Session) SendFiles(ctx context.Context, files []FileInfo) error {
	for _, fileInfo := range files {
		f, err := os.Open(fileInfo.Filename)
		if err != nil {
			if s.callbacks.OnError(err, "open file") {
				continue
			}
			return err
		}
		if fileInfo.Info == nil {
			if fileInfo.Info, err = f.Stat(); err != nil {
				f.Close()
				if s.callbacks.OnError(err, "stat file") {
					continue
				}
				return err
			}
		}

		_, err = s.SendFile(ctx, fileInfo.Filename, f, fileInfo.Info)
		f.Close()
		if err != nil {
			if IsCancelled(err) {
				return err
			}
			if !s.callbacks.OnError(err, "send file") {
				return err
			}
		}
	}

	return nil
}

// Decoder returns the decoder of the running or last ReceiveFiles call.
func (s *Session) Decoder() *Deamp {
	return s.decoder
}

// ReceiveFiles decodes the channel until it ends, the context is cancelled,
// the idle timeout expires or maxFiles files have been delivered (0 = no
// limit). Each completed file is handed to OnFileReceived and retired from
// the decoder.
func (s *Session) ReceiveFiles(ctx context.Context, maxFiles int) error {
	if ctx == nil {
		ctx = s.ctx
	}
	if s.reader == nil {
		return NewError(ErrConfig, "session has no reader")
	}
	s.io.SetContext(ctx)

	tracker := NewProgressTracker(s.callbacks.OnProgress, s.config.ProgressInterval)
	var completed []string
	hooks := &Callbacks{
		OnFileUpdate: tracker.Observe,
		OnFileComplete: func(e FileCompleteEvent) {
			completed = append(completed, e.Hash)
		},
	}
	s.decoder = NewDeamp(chainCallbacks(s.callbacks, hooks), &DeampConfig{
		Compressors:   s.config.Compressors,
		MaxFrameBytes: s.config.MaxFrameBytes,
		Location:      s.config.Location,
		Logger:        s.logger,
	})

	s.logger.Info("ReceiveFiles: listening (max=%d)", maxFiles)
	received := 0
	for {
		chunk, readErr := s.io.ReadChunk()
		if len(chunk) > 0 {
			s.decoder.Write(chunk)
		}

		for _, hash := range completed {
			if err := s.deliver(hash, tracker); err != nil {
				return err
			}
			received++
		}
		completed = completed[:0]

		if maxFiles > 0 && received >= maxFiles {
			s.logger.Info("ReceiveFiles: received %d file(s)", received)
			return nil
		}
		if readErr == io.EOF {
			s.logger.Info("ReceiveFiles: channel closed after %d file(s)", received)
			return nil
		}
		if readErr != nil {
			s.logger.Error("ReceiveFiles: read error: %v", readErr)
			s.callbacks.OnError(readErr, "read")
			return readErr
		}
	}
}

// deliver recovers a completed file and hands it to the application.
func (s *Session) deliver(hash string, tracker *ProgressTracker) error {
	f, ok := s.decoder.Retire(hash)
	if !ok {
		return nil
	}
	duration := tracker.Complete(hash)
	content, err := f.Content()
	if err != nil {
		s.logger.Error("ReceiveFiles: %s: %v", f.Name, err)
		if s.callbacks.OnError(err, "recover "+f.Name) {
			return nil
		}
		return err
	}
	s.logger.Info("ReceiveFiles: %s complete, %d bytes in %v", f.Name, len(content), duration)
	return s.callbacks.OnFileReceived(f, content)
}

// FileInfo holds information about a file to transfer.
type FileInfo struct {
	Filename string
	Info     os.FileInfo
}
