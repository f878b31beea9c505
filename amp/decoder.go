package amp

import (
	"sort"
	"time"
)

// DeampConfig holds decoder configuration.
type DeampConfig struct {
	// Checksum validates frames; nil means CRC16
	Checksum ChecksumFunc

	// Compressors resolves compression prefixes; nil means DefaultCompressors()
	Compressors *CompressorRegistry

	// MaxFrameBytes bounds the byte count a tag may declare
	MaxFrameBytes int

	// Location is the zone FILE timestamps are read in; nil means UTC
	Location *time.Location

	// Logger receives per-block diagnostics; nil means NoopLogger
	Logger Logger
}

// DefaultDeampConfig returns a default decoder configuration.
func DefaultDeampConfig() *DeampConfig {
	return &DeampConfig{
		Checksum:      CRC16,
		Compressors:   DefaultCompressors(),
		MaxFrameBytes: DefaultMaxFrameBytes,
		Location:      time.UTC,
		Logger:        NoopLogger{},
	}
}

// Deamp is the receiving side: it parses a character stream and reassembles
// every transfer it hears. Completed files stay resident until PopFile or
// Retire.
//
// A Deamp is not safe for concurrent use.
type Deamp struct {
	config    *DeampConfig
	callbacks *Callbacks
	logger    Logger
	parser    *Parser
	files     map[string]*File
	retired   map[string]bool
}

// NewDeamp creates a decoder. Nil callbacks or config use defaults.
func NewDeamp(callbacks *Callbacks, config *DeampConfig) *Deamp {
	cfg := DefaultDeampConfig()
	if config != nil {
		merged := *config
		if merged.Checksum == nil {
			merged.Checksum = cfg.Checksum
		}
		if merged.Compressors == nil {
			merged.Compressors = cfg.Compressors
		}
		if merged.MaxFrameBytes <= 0 {
			merged.MaxFrameBytes = cfg.MaxFrameBytes
		}
		if merged.Location == nil {
			merged.Location = cfg.Location
		}
		if merged.Logger == nil {
			merged.Logger = cfg.Logger
		}
		cfg = &merged
	}

	d := &Deamp{
		config:    cfg,
		callbacks: mergeCallbacks(callbacks),
		logger:    cfg.Logger,
		files:     make(map[string]*File),
		retired:   make(map[string]bool),
	}
	d.parser = NewParser(d.addBlock)
	d.parser.Checksum = cfg.Checksum
	d.parser.MaxFrameBytes = cfg.MaxFrameBytes
	d.parser.OnReject = d.reject
	return d
}

// IngestByte feeds one received byte.
func (d *Deamp) IngestByte(c byte) {
	d.parser.WriteByte(c)
}

// IngestString feeds every byte of s.
func (d *Deamp) IngestString(s string) {
	d.parser.WriteString(s)
}

// Write implements io.Writer so a Deamp can sit at the end of io.Copy.
func (d *Deamp) Write(p []byte) (int, error) {
	return d.parser.Write(p)
}

// ClearBuffer drops any partially received frame.
func (d *Deamp) ClearBuffer() {
	d.parser.Reset()
}

// Buffered returns the partial frame currently held.
func (d *Deamp) Buffered() string {
	return d.parser.Buffered()
}

func (d *Deamp) emit(t EventType, hash, msg string) {
	d.callbacks.OnEvent(Event{Type: t, Message: msg, Hash: hash, Timestamp: time.Now()})
}

func (d *Deamp) reject(frame string, err error) {
	d.logger.Debug("rejected frame %q: %v", truncate(frame, 64), err)
	d.emit(EventBlockRejected, "", err.Error())
}

// addBlock files a parsed block under its hash and fires the lifecycle
// callbacks.
func (d *Deamp) addBlock(b *Block) {
	if d.retired[b.Hash] {
		d.logger.Debug("%s", FormatBlockLog("retired", b))
		d.emit(EventBlockIgnored, b.Hash, b.HashString())
		return
	}

	f, ok := d.files[b.Hash]
	created := !ok
	if created {
		f = newFile(b.Hash, d.config.Compressors, d.config.Location)
		d.files[b.Hash] = f
		d.logger.Info("new transfer %s", b.Hash)
		d.callbacks.OnNewFile(NewFileEvent{Hash: b.Hash})
	}

	absorbed := f.addBlock(b)
	if !absorbed && !created {
		d.logger.Debug("%s", FormatBlockLog("duplicate", b))
		d.emit(EventBlockDuplicate, b.Hash, b.HashString())
		return
	}
	d.logger.Debug("%s", FormatBlockLog("received", b))
	d.emit(EventBlockReceived, b.Hash, b.HashString())
	d.callbacks.OnFileUpdate(f.Update())

	if !f.completeFired && f.IsComplete() {
		f.completeFired = true
		d.logger.Info("transfer %s complete: %s (%d blocks)", f.Hash, f.Name, f.BlockCount)
		d.emit(EventFileComplete, f.Hash, f.Name)
		d.callbacks.OnFileComplete(FileCompleteEvent{Hash: f.Hash, Filename: f.Name})
	}
}

// Files returns the hashes of every file held, in sorted order.
func (d *Deamp) Files() []string {
	hashes := make([]string, 0, len(d.files))
	for h := range d.files {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	return hashes
}

// GetFile returns the file for hash and leaves it in place.
func (d *Deamp) GetFile(hash string) (*File, bool) {
	f, ok := d.files[hash]
	return f, ok
}

// PopFile returns the file for hash and forgets it.
func (d *Deamp) PopFile(hash string) (*File, bool) {
	f, ok := d.files[hash]
	if ok {
		delete(d.files, hash)
	}
	return f, ok
}

// Retire returns the file for hash, forgets it and ignores every block for
// hash heard afterwards. Receivers retire a transfer once it is delivered so
// the trailing CNTL blocks, or a resend of single blocks meant for another
// station, cannot bring it back.
func (d *Deamp) Retire(hash string) (*File, bool) {
	f, ok := d.PopFile(hash)
	d.retired[hash] = true
	return f, ok
}

// Retired reports whether blocks for hash are being ignored.
func (d *Deamp) Retired(hash string) bool {
	return d.retired[hash]
}

// FileContent recovers the content of the file for hash.
func (d *Deamp) FileContent(hash string) ([]byte, error) {
	f, ok := d.files[hash]
	if !ok {
		return nil, NewFileError(ErrUnknownFile, "no blocks received", hash)
	}
	return f.Content()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
