package amp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Block is one framed protocol unit:
//
//	<KEYWORD byteCount CHECKSUM>{hash[:suffix]}data
//
// The byte count and checksum cover the braced hash string and the data.
type Block struct {
	Keyword Keyword
	Hash    string
	Data    string

	// BlockNum is the 1-based index of a DATA block
	BlockNum int

	// Control is the control word of a CNTL block
	Control ControlWord

	sum ChecksumFunc
}

// NewBlock creates a header block (PROG, FILE, ID, SIZE or DESC).
func NewBlock(keyword Keyword, hash, data string) *Block {
	return &Block{Keyword: keyword, Hash: hash, Data: data}
}

// NewDataBlock creates DATA block num.
func NewDataBlock(hash string, num int, data string) *Block {
	return &Block{Keyword: KeywordData, Hash: hash, Data: data, BlockNum: num}
}

// NewControlBlock creates a CNTL block. Control blocks carry no data.
func NewControlBlock(hash string, word ControlWord) *Block {
	return &Block{Keyword: KeywordControl, Hash: hash, Control: word}
}

// WithChecksum returns b using fn for its checksum.
func (b *Block) WithChecksum(fn ChecksumFunc) *Block {
	b.sum = fn
	return b
}

func (b *Block) checksumFunc() ChecksumFunc {
	if b.sum != nil {
		return b.sum
	}
	return CRC16
}

// HashString returns the braced hash, including the block number or control
// word when the keyword carries one.
func (b *Block) HashString() string {
	switch b.Keyword {
	case KeywordData:
		return "{" + b.Hash + ":" + strconv.Itoa(b.BlockNum) + "}"
	case KeywordControl:
		return "{" + b.Hash + ":" + string(b.Control) + "}"
	default:
		return "{" + b.Hash + "}"
	}
}

// Checksum returns the checksum of the hash string and data.
func (b *Block) Checksum() string {
	return b.checksumFunc()(b.HashString() + b.Data)
}

// ByteCount returns the length of the hash string and data.
func (b *Block) ByteCount() int {
	return len(b.HashString()) + len(b.Data)
}

// String renders the block in wire form.
func (b *Block) String() string {
	body := b.HashString() + b.Data
	return fmt.Sprintf("<%s %d %s>%s", b.Keyword, len(body), b.checksumFunc()(body), body)
}

// Payload is the decoded content of a block; its concrete type depends on
// the keyword.
type Payload interface {
	keyword() Keyword
}

// ProgramInfo is the payload of a PROG block.
type ProgramInfo struct {
	Name    string
	Version string
}

// FileHeader is the payload of a FILE block.
type FileHeader struct {
	// Stamp is the 14 digit modification timestamp as sent
	Stamp string
	Name  string
}

// StationID is the payload of an ID block.
type StationID struct {
	Callsign string
}

// SizeHeader is the payload of a SIZE block.
type SizeHeader struct {
	// Size is the length of the transmitted content
	Size       int
	BlockCount int
	BlockSize  int
}

// Description is the payload of a DESC block.
type Description struct {
	Text string
}

// DataChunk is the payload of a DATA block.
type DataChunk struct {
	Num  int
	Text string
}

// ControlMark is the payload of a CNTL block.
type ControlMark struct {
	Word ControlWord
}

func (ProgramInfo) keyword() Keyword { return KeywordProgram }
func (FileHeader) keyword() Keyword  { return KeywordFile }
func (StationID) keyword() Keyword   { return KeywordID }
func (SizeHeader) keyword() Keyword  { return KeywordSize }
func (Description) keyword() Keyword { return KeywordDescription }
func (DataChunk) keyword() Keyword   { return KeywordData }
func (ControlMark) keyword() Keyword { return KeywordControl }

// ModTime parses the timestamp in loc.
func (h FileHeader) ModTime(loc *time.Location) (time.Time, error) {
	return ParseTimestamp(h.Stamp, loc)
}

// Payload decodes the block data according to its keyword.
func (b *Block) Payload() (Payload, error) {
	switch b.Keyword {
	case KeywordProgram:
		name, version, _ := strings.Cut(b.Data, " ")
		return ProgramInfo{Name: name, Version: version}, nil
	case KeywordFile:
		if len(b.Data) < len(ModifiedTimeFormat)+1 || b.Data[len(ModifiedTimeFormat)] != ':' {
			return nil, NewFileError(ErrInvalidBlock, fmt.Sprintf("malformed FILE payload %q", b.Data), b.Hash)
		}
		return FileHeader{
			Stamp: b.Data[:len(ModifiedTimeFormat)],
			Name:  b.Data[len(ModifiedTimeFormat)+1:],
		}, nil
	case KeywordID:
		return StationID{Callsign: strings.TrimSpace(b.Data)}, nil
	case KeywordSize:
		fields := strings.Fields(b.Data)
		if len(fields) != 3 {
			return nil, NewFileError(ErrInvalidBlock, fmt.Sprintf("malformed SIZE payload %q", b.Data), b.Hash)
		}
		var vals [3]int
		for i, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil || v < 0 {
				return nil, NewFileError(ErrInvalidBlock, fmt.Sprintf("malformed SIZE payload %q", b.Data), b.Hash)
			}
			vals[i] = v
		}
		return SizeHeader{Size: vals[0], BlockCount: vals[1], BlockSize: vals[2]}, nil
	case KeywordDescription:
		return Description{Text: b.Data}, nil
	case KeywordData:
		return DataChunk{Num: b.BlockNum, Text: b.Data}, nil
	case KeywordControl:
		return ControlMark{Word: b.Control}, nil
	default:
		return nil, NewFileError(ErrInvalidBlock, "unknown keyword "+string(b.Keyword), b.Hash)
	}
}

var tagPattern = regexp.MustCompile(`^([A-Za-z]+) ([0-9]+) ([0-9A-Fa-f]+)$`)

// parseTag splits the text between '<' and '>' into its keyword, declared
// byte count and declared checksum.
func parseTag(tag string) (Keyword, int, string, bool) {
	m := tagPattern.FindStringSubmatch(tag)
	if m == nil {
		return "", 0, "", false
	}
	keyword, ok := ParseKeyword(m[1])
	if !ok {
		return "", 0, "", false
	}
	count, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, "", false
	}
	return keyword, count, m[3], true
}

// ParseBlock validates a complete frame, from '<' through the last payload
// byte. A nil sum selects CRC16.
func ParseBlock(frame string, sum ChecksumFunc) (*Block, error) {
	if !strings.HasPrefix(frame, "<") {
		return nil, NewError(ErrInvalidBlock, "frame does not start with '<'")
	}
	end := strings.IndexByte(frame, '>')
	if end < 0 {
		return nil, NewError(ErrInvalidBlock, "frame has no tag end")
	}
	keyword, count, checksum, ok := parseTag(frame[1:end])
	if !ok {
		return nil, NewError(ErrInvalidBlock, fmt.Sprintf("malformed tag %q", frame[1:end]))
	}
	body := frame[end+1:]
	if len(body) != count {
		return nil, NewError(ErrInvalidBlock, fmt.Sprintf("declared %d bytes, have %d", count, len(body)))
	}
	return decodeBody(keyword, checksum, frame, body, sum)
}

// decodeBody builds a block from the consumed bytes and accepts it only when
// the checksum matches and the block renders back to exactly frame.
func decodeBody(keyword Keyword, checksum, frame, body string, sum ChecksumFunc) (*Block, error) {
	if !strings.HasPrefix(body, "{") {
		return nil, NewError(ErrInvalidBlock, "missing hash string")
	}
	closing := strings.IndexByte(body, '}')
	if closing < 0 {
		return nil, NewError(ErrInvalidBlock, "unterminated hash string")
	}
	parts := strings.Split(body[1:closing], ":")
	if len(parts) > 2 {
		return nil, NewError(ErrInvalidBlock, "malformed hash string")
	}

	b := &Block{Keyword: keyword, Hash: parts[0], Data: body[closing+1:], sum: sum}
	switch keyword {
	case KeywordData:
		if len(parts) != 2 {
			return nil, NewFileError(ErrInvalidBlock, "DATA block without number", b.Hash)
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 1 {
			return nil, NewFileError(ErrInvalidBlock, fmt.Sprintf("bad block number %q", parts[1]), b.Hash)
		}
		b.BlockNum = n
	case KeywordControl:
		if len(parts) != 2 {
			return nil, NewFileError(ErrInvalidBlock, "CNTL block without control word", b.Hash)
		}
		word, ok := ParseControlWord(parts[1])
		if !ok {
			return nil, NewFileError(ErrInvalidBlock, fmt.Sprintf("bad control word %q", parts[1]), b.Hash)
		}
		b.Control = word
	default:
		if len(parts) != 1 {
			return nil, NewFileError(ErrInvalidBlock, "unexpected hash suffix", b.Hash)
		}
	}

	if got := b.Checksum(); got != checksum {
		return nil, NewFileError(ErrChecksum, fmt.Sprintf("checksum %s, declared %s", got, checksum), b.Hash)
	}
	if b.String() != frame {
		return nil, NewFileError(ErrInvalidBlock, "frame does not re-render identically", b.Hash)
	}
	return b, nil
}

// FindBlock returns the first valid block of keyword in buffer together with
// the offsets of its frame. Candidates that fail validation are skipped.
func FindBlock(keyword Keyword, buffer string, sum ChecksumFunc) (*Block, int, int, bool) {
	token := "<" + string(keyword) + " "
	offset := 0
	for {
		i := strings.Index(buffer[offset:], token)
		if i < 0 {
			return nil, 0, 0, false
		}
		start := offset + i
		offset = start + len(token)

		end := strings.IndexByte(buffer[start:], '>')
		if end < 0 || end > MaxTagLength+1 {
			continue
		}
		_, count, _, ok := parseTag(buffer[start+1 : start+end])
		if !ok {
			continue
		}
		stop := start + end + 1 + count
		if stop > len(buffer) {
			continue
		}
		if b, err := ParseBlock(buffer[start:stop], sum); err == nil {
			return b, start, stop, true
		}
	}
}
