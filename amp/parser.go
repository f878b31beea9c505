package amp

import "bytes"

// parserState is the position of the Parser within a frame.
type parserState int

const (
	// stateSeek discards input until '<'
	stateSeek parserState = iota

	// stateTag collects "KEYWORD count checksum" until '>'
	stateTag

	// stateData collects the declared number of payload bytes
	stateData
)

// Parser recognizes blocks in a noisy character stream, one byte at a time.
// Input between frames is discarded. A frame that fails validation is
// dropped and the bytes it swallowed are scanned again from their first '<',
// so a real block hidden inside a corrupted one is still found.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	// OnBlock receives every valid block
	OnBlock func(*Block)

	// OnReject receives frames that reached their declared length but
	// failed validation (optional)
	OnReject func(frame string, err error)

	// Checksum validates frames; nil means CRC16
	Checksum ChecksumFunc

	// MaxFrameBytes bounds the byte count a tag may declare
	MaxFrameBytes int

	state     parserState
	buf       []byte
	keyword   Keyword
	count     int
	checksum  string
	bodyStart int

	// pending holds bytes queued for rescanning after a rejected frame
	pending []byte
}

// NewParser creates a parser delivering blocks to onBlock.
func NewParser(onBlock func(*Block)) *Parser {
	return &Parser{
		OnBlock:       onBlock,
		MaxFrameBytes: DefaultMaxFrameBytes,
	}
}

// WriteByte feeds one byte. It never fails.
func (p *Parser) WriteByte(c byte) error {
	p.step(c)
	for len(p.pending) > 0 {
		next := p.pending[0]
		p.pending = p.pending[1:]
		p.step(next)
	}
	return nil
}

// Write feeds every byte of data.
func (p *Parser) Write(data []byte) (int, error) {
	for _, c := range data {
		p.WriteByte(c)
	}
	return len(data), nil
}

// WriteString feeds every byte of s.
func (p *Parser) WriteString(s string) (int, error) {
	for i := 0; i < len(s); i++ {
		p.WriteByte(s[i])
	}
	return len(s), nil
}

// Buffered returns the partial frame currently held, or "" while seeking.
func (p *Parser) Buffered() string {
	if p.state == stateSeek {
		return ""
	}
	return string(p.buf)
}

// Reset drops any partial frame.
func (p *Parser) Reset() {
	p.state = stateSeek
	p.buf = p.buf[:0]
	p.pending = nil
}

// step applies c, reprocessing it while the current state gives it back.
func (p *Parser) step(c byte) {
	for !p.advance(c) {
	}
}

func isTagChar(c byte) bool {
	return c == ' ' ||
		(c >= '0' && c <= '9') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z')
}

// advance runs one transition and reports whether c was consumed. An
// abandoned tag returns false so c is seen again in stateSeek.
func (p *Parser) advance(c byte) bool {
	switch p.state {
	case stateSeek:
		if c == '<' {
			p.buf = append(p.buf[:0], c)
			p.state = stateTag
		}
		return true

	case stateTag:
		switch {
		case c == '>':
			p.openFrame()
			return true
		case isTagChar(c) && len(p.buf)-1 < MaxTagLength:
			p.buf = append(p.buf, c)
			return true
		default:
			p.abandon()
			return false
		}

	case stateData:
		p.buf = append(p.buf, c)
		if len(p.buf)-p.bodyStart >= p.count {
			p.closeFrame()
		}
		return true
	}
	return true
}

// openFrame validates the collected tag on '>'.
func (p *Parser) openFrame() {
	keyword, count, checksum, ok := parseTag(string(p.buf[1:]))
	if !ok || count > p.maxFrame() {
		p.abandon()
		return
	}
	p.buf = append(p.buf, '>')
	p.keyword, p.count, p.checksum = keyword, count, checksum
	p.bodyStart = len(p.buf)
	p.state = stateData
	if count == 0 {
		p.closeFrame()
	}
}

// closeFrame validates a frame whose declared bytes have all arrived.
func (p *Parser) closeFrame() {
	frame := string(p.buf)
	p.state = stateSeek
	b, err := decodeBody(p.keyword, p.checksum, frame, frame[p.bodyStart:], p.Checksum)
	if err == nil {
		p.buf = p.buf[:0]
		if p.OnBlock != nil {
			p.OnBlock(b)
		}
		return
	}
	if p.OnReject != nil {
		p.OnReject(frame, err)
	}
	if i := bytes.IndexByte(p.buf[1:], '<'); i >= 0 {
		rescan := append([]byte(nil), p.buf[i+1:]...)
		p.pending = append(rescan, p.pending...)
	}
	p.buf = p.buf[:0]
}

func (p *Parser) abandon() {
	p.state = stateSeek
	p.buf = p.buf[:0]
}

func (p *Parser) maxFrame() int {
	if p.MaxFrameBytes > 0 {
		return p.MaxFrameBytes
	}
	return DefaultMaxFrameBytes
}
