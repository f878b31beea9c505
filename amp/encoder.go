package amp

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Options configures an Amp.
type Options struct {
	// Filename is the name sent in the FILE block
	Filename string

	// Modified is the file modification time. Its location decides the
	// zone of the FILE timestamp. The zero value means now.
	Modified time.Time

	// BlockSize is the number of characters in each DATA payload
	BlockSize int

	// Content is the raw file content
	Content []byte

	// Station call signs; both are optional
	FromCallsign string
	ToCallsign   string

	// Compression names a registered compressor; empty disables compression
	Compression string

	// ForceCompress keeps the compressed and encoded form even when it does
	// not pay for itself
	ForceCompress bool

	// Base selects a binary-to-text encoding. Content that is not printable
	// is always encoded, with basE91 unless Base says otherwise.
	Base BaseEncoding

	// Description is sent in a DESC block when not empty
	Description string

	// Program and Version identify the sender in the PROG block
	Program string
	Version string

	// Block suppression
	SkipProgram bool
	SkipEOF     bool
	SkipEOT     bool

	// Compressors resolves Compression; nil means DefaultCompressors()
	Compressors *CompressorRegistry

	// Checksum overrides the block checksum; nil means CRC16
	Checksum ChecksumFunc

	// Logger receives pipeline diagnostics; nil means NoopLogger
	Logger Logger
}

// Amp is the sending side of one file transfer. It owns the file metadata,
// the transformed content and the complete block set.
type Amp struct {
	opts Options

	stamp      string
	hash       string
	base       BaseEncoding
	forced     bool
	compressor Compressor
	payload    string

	headers []*Block
	data    []*Block
	control []*Block
}

// NewAmp transforms the content and builds every block of the transfer.
func NewAmp(opts Options) (*Amp, error) {
	if opts.Filename == "" {
		return nil, NewError(ErrConfig, "filename is required")
	}
	if strings.ContainsAny(opts.Filename, "\r\n") {
		return nil, NewError(ErrConfig, "filename contains a line break")
	}
	if opts.BlockSize < 1 || opts.BlockSize > MaxBlockSize {
		return nil, NewError(ErrConfig, fmt.Sprintf("block size %d must be between 1 and %d", opts.BlockSize, MaxBlockSize))
	}
	switch opts.Base {
	case BaseNone, Base64, Base91:
	default:
		return nil, NewError(ErrConfig, fmt.Sprintf("unknown base encoding %q", opts.Base))
	}
	if opts.Modified.IsZero() {
		opts.Modified = time.Now()
	}
	if opts.Program == "" {
		opts.Program = ProgramName
		if opts.Version == "" {
			opts.Version = ProgramVersion
		}
	}
	if opts.Compressors == nil {
		opts.Compressors = DefaultCompressors()
	}
	if opts.Checksum == nil {
		opts.Checksum = CRC16
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger{}
	}

	a := &Amp{opts: opts, stamp: FormatTimestamp(opts.Modified)}
	a.hash = opts.Checksum(a.headerString())

	if err := a.transform(); err != nil {
		return nil, err
	}
	a.quantize()
	a.buildHeaders()
	for _, b := range a.headers {
		if b.ByteCount() > DefaultMaxFrameBytes {
			return nil, NewError(ErrConfig, fmt.Sprintf("%s block of %d bytes exceeds the %d byte frame limit",
				b.Keyword, b.ByteCount(), DefaultMaxFrameBytes))
		}
	}
	return a, nil
}

// headerString is the text the transfer hash is computed from:
//
//	timestamp:filename C B blockSize
//
// C is "1" when compression was requested, B the explicitly configured base.
func (a *Amp) headerString() string {
	var sb strings.Builder
	sb.WriteString(a.stamp)
	sb.WriteByte(':')
	sb.WriteString(a.opts.Filename)
	if a.opts.Compression != "" {
		sb.WriteByte('1')
	} else {
		sb.WriteByte('0')
	}
	sb.WriteString(string(a.opts.Base))
	sb.WriteString(strconv.Itoa(a.opts.BlockSize))
	return sb.String()
}

// hasNotPrintable reports whether content holds anything beyond printable
// ASCII, CR and LF.
func hasNotPrintable(content []byte) bool {
	for _, c := range content {
		if (c < 0x20 || c > 0x7E) && c != '\n' && c != '\r' {
			return true
		}
	}
	return false
}

// transform runs the content pipeline: force an encoding for unprintable
// content, compress when it saves enough, wrap in codec markers, and fall
// back to the original when nothing was gained.
func (a *Amp) transform() error {
	content := a.opts.Content
	log := a.opts.Logger

	a.base = a.opts.Base
	a.forced = hasNotPrintable(content)
	if a.forced && a.base == BaseNone {
		a.base = Base91
	}

	actual := content
	if a.opts.Compression != "" {
		c, ok := a.opts.Compressors.Lookup(a.opts.Compression)
		if !ok {
			return NewError(ErrConfig, fmt.Sprintf("unknown compression %q", a.opts.Compression))
		}
		compressed, err := c.Compress(content)
		switch {
		case err != nil:
			log.Error("%s: compression failed, sending uncompressed: %v", a.opts.Filename, err)
		case len(compressed) <= len(content)-CompressionSavingsThreshold || a.opts.ForceCompress:
			actual = compressed
			a.compressor = c
			if a.base == BaseNone {
				a.base = Base91
			}
			log.Debug("%s: %s compressed %d bytes to %d", a.opts.Filename, c.Name(), len(content), len(compressed))
		default:
			log.Debug("%s: %s saved too little (%d of %d bytes), sending uncompressed",
				a.opts.Filename, c.Name(), len(content)-len(compressed), len(content))
		}
	}

	if codec := CodecFor(a.base); codec != nil {
		a.payload = Wrap(codec, actual)
	} else {
		a.payload = string(actual)
	}

	if len(a.payload) > len(content) && !a.forced && !a.opts.ForceCompress {
		log.Debug("%s: transformed form is longer, sending as is", a.opts.Filename)
		a.payload = string(content)
		a.base = BaseNone
		a.compressor = nil
	}
	return nil
}

// quantize cuts the payload into contiguous DATA blocks.
func (a *Amp) quantize() {
	size := a.opts.BlockSize
	count := (len(a.payload) + size - 1) / size
	a.data = make([]*Block, 0, count)
	for start, num := 0, 1; start < len(a.payload); start, num = start+size, num+1 {
		end := start + size
		if end > len(a.payload) {
			end = len(a.payload)
		}
		a.data = append(a.data, NewDataBlock(a.hash, num, a.payload[start:end]).WithChecksum(a.opts.Checksum))
	}
}

func (a *Amp) buildHeaders() {
	sum := a.opts.Checksum
	add := func(k Keyword, data string) {
		a.headers = append(a.headers, NewBlock(k, a.hash, data).WithChecksum(sum))
	}
	if !a.opts.SkipProgram {
		add(KeywordProgram, strings.TrimSpace(a.opts.Program+" "+a.opts.Version))
	}
	add(KeywordFile, a.stamp+":"+a.opts.Filename)
	if a.opts.FromCallsign != "" {
		add(KeywordID, a.opts.FromCallsign)
	}
	if a.opts.Description != "" {
		add(KeywordDescription, a.opts.Description)
	}
	add(KeywordSize, fmt.Sprintf("%d %d %d", len(a.payload), len(a.data), a.opts.BlockSize))

	if !a.opts.SkipEOF {
		a.control = append(a.control, NewControlBlock(a.hash, ControlEOF).WithChecksum(sum))
	}
	if !a.opts.SkipEOT {
		a.control = append(a.control, NewControlBlock(a.hash, ControlEOT).WithChecksum(sum))
	}
}

// Hash returns the transfer hash shared by every block.
func (a *Amp) Hash() string { return a.hash }

// Filename returns the name sent in the FILE block.
func (a *Amp) Filename() string { return a.opts.Filename }

// DataBlockCount returns the number of DATA blocks.
func (a *Amp) DataBlockCount() int { return len(a.data) }

// TransmitLength returns the length of the transformed content, which is
// the size declared in the SIZE block.
func (a *Amp) TransmitLength() int { return len(a.payload) }

// Encoding returns the binary-to-text encoding applied, if any.
func (a *Amp) Encoding() BaseEncoding { return a.base }

// Compression returns the name of the compressor applied, or "".
func (a *Amp) Compression() string {
	if a.compressor == nil {
		return ""
	}
	return a.compressor.Name()
}

// HeaderBlocks returns PROG, FILE, ID, DESC and SIZE as configured.
func (a *Amp) HeaderBlocks() []*Block { return append([]*Block(nil), a.headers...) }

// DataBlock returns DATA block num, or nil when out of range.
func (a *Amp) DataBlock(num int) *Block {
	if num < 1 || num > len(a.data) {
		return nil
	}
	return a.data[num-1]
}

// Blocks returns every block in rendering order.
func (a *Amp) Blocks() []*Block {
	out := make([]*Block, 0, len(a.headers)+len(a.data)+len(a.control))
	out = append(out, a.headers...)
	out = append(out, a.data...)
	return append(out, a.control...)
}

// preamble is the station identification line sent before and after the
// blocks.
func (a *Amp) preamble() string {
	to, from := a.opts.ToCallsign, a.opts.FromCallsign
	switch {
	case to != "" && from != "":
		return fmt.Sprintf("%s %s DE %s\n", to, to, from)
	case to != "":
		return fmt.Sprintf("%s %s DE ME\n", to, to)
	case from != "":
		return fmt.Sprintf("QST QST QST DE %s\n", from)
	default:
		return "QST QST QST\n"
	}
}

// RenderOptions selects what Render emits.
type RenderOptions struct {
	// Blocks lists the DATA blocks to send, in order. Nil sends all of them.
	// Unknown numbers are skipped.
	Blocks []int

	// OmitHeaders drops the preamble and postamble, and with a Blocks
	// subset also the header blocks, for resending missing data.
	OmitHeaders bool
}

// Render returns the transfer as newline-joined protocol text.
func (a *Amp) Render(ro RenderOptions) string {
	var lines []string
	if !ro.OmitHeaders {
		lines = append(lines, a.preamble())
	}
	if ro.Blocks == nil || !ro.OmitHeaders {
		for _, b := range a.headers {
			lines = append(lines, b.String())
		}
	}
	if ro.Blocks == nil {
		for _, b := range a.data {
			lines = append(lines, b.String())
		}
	} else {
		for _, n := range ro.Blocks {
			if b := a.DataBlock(n); b != nil {
				lines = append(lines, b.String())
			}
		}
	}
	for _, b := range a.control {
		lines = append(lines, b.String())
	}
	if !ro.OmitHeaders {
		lines = append(lines, a.preamble())
	}
	return strings.Join(lines, "\n")
}

// String renders the complete transfer.
func (a *Amp) String() string {
	return a.Render(RenderOptions{})
}

// WriteTo writes the complete transfer to w.
func (a *Amp) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, a.String())
	return int64(n), err
}
