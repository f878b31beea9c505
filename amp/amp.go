// Package amp implements the AMP-2 version 3 amateur multicast protocol, the
// block format used by FLAMP to broadcast files over keyboard-to-keyboard
// digital modes.
//
// A sender builds an Amp from a file and its metadata and renders it as text.
// The text is made of self-checksummed blocks that survive being interleaved
// with noise, duplicated, reordered or partially lost by the radio channel.
// A receiver feeds whatever characters it hears into a Deamp, which recognizes
// valid blocks, groups them by transfer hash and reports progress as files
// are reassembled.
//
// The package is designed as a library: SSH and terminal wrappers are provided
// for driving the protocol over an interactive session, and callback hooks are
// available for progress tracking and feedback.
package amp

// Keyword identifies the role of a protocol block.
type Keyword string

// Block keywords
const (
	// KeywordProgram carries the sending program name and version
	KeywordProgram Keyword = "PROG"

	// KeywordFile carries the modification timestamp and file name
	KeywordFile Keyword = "FILE"

	// KeywordID carries the sender call sign
	KeywordID Keyword = "ID"

	// KeywordSize carries the content length, block count and block size
	KeywordSize Keyword = "SIZE"

	// KeywordDescription carries a free-text description of the file
	KeywordDescription Keyword = "DESC"

	// KeywordData carries one slice of the transmitted content
	KeywordData Keyword = "DATA"

	// KeywordControl carries an EOF or EOT control word
	KeywordControl Keyword = "CNTL"
)

// Keywords lists every recognized keyword in rendering order.
var Keywords = []Keyword{
	KeywordProgram,
	KeywordFile,
	KeywordID,
	KeywordDescription,
	KeywordSize,
	KeywordData,
	KeywordControl,
}

// ParseKeyword returns the keyword named by s.
func ParseKeyword(s string) (Keyword, bool) {
	for _, k := range Keywords {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// ControlWord is the payload of a CNTL block.
type ControlWord string

const (
	// ControlEOF marks the end of one file's blocks
	ControlEOF ControlWord = "EOF"

	// ControlEOT marks the end of the transmission
	ControlEOT ControlWord = "EOT"
)

// ParseControlWord returns the control word named by s.
func ParseControlWord(s string) (ControlWord, bool) {
	switch ControlWord(s) {
	case ControlEOF, ControlEOT:
		return ControlWord(s), true
	}
	return "", false
}

// Protocol limits
const (
	// MaxTagLength bounds the text between '<' and '>' while a tag is being
	// recognized. Longer candidates are abandoned.
	MaxTagLength = 30

	// DefaultMaxFrameBytes bounds the declared byte count a tag may announce.
	DefaultMaxFrameBytes = 4096

	// DefaultBlockSize is the DATA payload size used when none is configured
	DefaultBlockSize = 64

	// MaxBlockSize is the largest block size whose DATA frames a default
	// decoder accepts: the "{hash:num}" prefix takes at most 16 bytes of the
	// frame for block numbers below one billion.
	MaxBlockSize = DefaultMaxFrameBytes - 16

	// CompressionSavingsThreshold is the least number of bytes compression
	// must save before the compressed form is transmitted. The value matches FLAMP and
	// is a tunable, not a derived constant.
	CompressionSavingsThreshold = 200
)

// Program identity sent in PROG blocks
const (
	ProgramName    = "GOFLAMP"
	ProgramVersion = "0.1.0"
)
