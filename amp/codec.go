package amp

import (
	"fmt"
	"strings"

	cristalbase64 "github.com/cristalhq/base64"
)

// BaseEncoding names a binary-to-text encoding.
type BaseEncoding string

const (
	// BaseNone sends content as is
	BaseNone BaseEncoding = ""

	// Base64 wraps content in [b64:start]...[b64:end]
	Base64 BaseEncoding = "base64"

	// Base91 wraps content in [b91:start]...[b91:end]
	Base91 BaseEncoding = "base91"
)

// ParseBaseEncoding parses a base encoding name. "none" and "" both mean no
// encoding; "64" and "91" are accepted as shorthand.
func ParseBaseEncoding(name string) (BaseEncoding, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return BaseNone, nil
	case "base64", "b64", "64":
		return Base64, nil
	case "base91", "b91", "91":
		return Base91, nil
	default:
		return BaseNone, NewError(ErrConfig, fmt.Sprintf("unknown base encoding %q", name))
	}
}

// Codec is a reversible binary-to-text transform with its own start and end
// markers.
type Codec interface {
	// Base returns the encoding this codec implements
	Base() BaseEncoding

	// Tag returns the short marker name, such as "b64"
	Tag() string

	Encode(src []byte) string
	Decode(text string) ([]byte, error)
}

type base64Codec struct{}

func (base64Codec) Base() BaseEncoding { return Base64 }
func (base64Codec) Tag() string        { return "b64" }

func (base64Codec) Encode(src []byte) string {
	return cristalbase64.StdEncoding.EncodeToString(src)
}

func (base64Codec) Decode(text string) ([]byte, error) {
	out, err := cristalbase64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, NewError(ErrEncoding, "base64: "+err.Error())
	}
	return out, nil
}

type base91Codec struct{}

func (base91Codec) Base() BaseEncoding { return Base91 }
func (base91Codec) Tag() string        { return "b91" }

func (base91Codec) Encode(src []byte) string { return Base91Encode(src) }

func (base91Codec) Decode(text string) ([]byte, error) { return Base91Decode(text), nil }

// codecs holds the built-in codecs keyed by encoding.
var codecs = map[BaseEncoding]Codec{
	Base64: base64Codec{},
	Base91: base91Codec{},
}

// CodecFor returns the codec implementing base, or nil for BaseNone and
// unknown encodings.
func CodecFor(base BaseEncoding) Codec {
	return codecs[base]
}

var lineBreaks = strings.NewReplacer("\r", "", "\n", "")

func startMarker(c Codec) string { return "[" + c.Tag() + ":start]" }
func endMarker(c Codec) string   { return "[" + c.Tag() + ":end]" }

// Wrap encodes src with c and surrounds the result with the codec markers.
func Wrap(c Codec, src []byte) string {
	return startMarker(c) + c.Encode(src) + endMarker(c)
}

// Unwrap reverses Wrap for whichever built-in codec marks content. Content
// without markers, or with markers no codec recognizes, is returned as is
// with a nil codec.
func Unwrap(content string) ([]byte, Codec, error) {
	wrapped := strings.TrimRight(content, "\r\n")
	if !strings.HasPrefix(wrapped, "[b") || !strings.HasSuffix(wrapped, ":end]") {
		return []byte(content), nil, nil
	}
	endOfStart := strings.IndexByte(wrapped, ']') + 1
	tag := wrapped[:endOfStart]
	for _, c := range codecs {
		if tag != startMarker(c) || !strings.HasSuffix(wrapped, endMarker(c)) {
			continue
		}
		// FLAMP wraps long encoded lines; neither alphabet uses CR or LF.
		inner := lineBreaks.Replace(wrapped[endOfStart : len(wrapped)-len(endMarker(c))])
		out, err := c.Decode(inner)
		if err != nil {
			return nil, c, err
		}
		return out, c, nil
	}
	return []byte(content), nil, nil
}
