package amp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz/lzma"
)

// Compressor is a reversible compressor registered under a unique prefix.
// Compressed output always begins with the prefix, which is how the receiver
// selects the decompressor.
type Compressor interface {
	// Name returns the configuration name, such as "lzma"
	Name() string

	// Prefix returns the marker that starts every compressed payload
	Prefix() string

	// Compress returns Prefix() followed by the compressed form of src
	Compress(src []byte) ([]byte, error)

	// Decompress reverses Compress. src includes the prefix.
	Decompress(src []byte) ([]byte, error)
}

// Compressor names
const (
	CompressionLZMA = "lzma"
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
)

// CompressorRegistry holds the compressors available to an encoder or
// decoder.
type CompressorRegistry struct {
	mu       sync.RWMutex
	byName   map[string]Compressor
	defaultC string
}

// NewCompressorRegistry creates a registry holding cs. The first compressor
// becomes the default.
func NewCompressorRegistry(cs ...Compressor) *CompressorRegistry {
	r := &CompressorRegistry{byName: make(map[string]Compressor)}
	for _, c := range cs {
		r.Register(c)
	}
	return r
}

// DefaultCompressors returns a registry with LZMA (the FLAMP default), zstd
// and lz4.
func DefaultCompressors() *CompressorRegistry {
	return NewCompressorRegistry(LZMACompressor{}, ZstdCompressor{}, LZ4Compressor{})
}

// Register adds c, replacing any compressor with the same name.
func (r *CompressorRegistry) Register(c Compressor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.defaultC == "" {
		r.defaultC = c.Name()
	}
	r.byName[strings.ToLower(c.Name())] = c
}

// Lookup returns the compressor registered as name. An empty name selects
// the default compressor.
func (r *CompressorRegistry) Lookup(name string) (Compressor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.defaultC
	}
	c, ok := r.byName[strings.ToLower(name)]
	return c, ok
}

// Match returns the compressor whose prefix starts content, or nil.
func (r *CompressorRegistry) Match(content []byte) Compressor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.byName {
		if bytes.HasPrefix(content, []byte(c.Prefix())) {
			return c
		}
	}
	return nil
}

// Names returns the registered compressor names in sorted order.
func (r *CompressorRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LZMACompressor produces the FLAMP LZMA layout: the prefix, the original
// length as a 4 byte big-endian integer, the 5 LZMA property bytes and the
// raw LZMA stream.
type LZMACompressor struct{}

const lzmaPrefix = "\x01LZMA"

// lzmaMaxRatio bounds the size a header may declare for its stream length.
// Long runs of one byte compress to a little under 1/8000 of their size.
const lzmaMaxRatio = 1 << 14

func (LZMACompressor) Name() string   { return CompressionLZMA }
func (LZMACompressor) Prefix() string { return lzmaPrefix }

func (LZMACompressor) Compress(src []byte) ([]byte, error) {
	dictCap := lzma.MinDictCap
	if len(src) > dictCap {
		dictCap = len(src)
	}
	cfg := lzma.WriterConfig{
		DictCap:      dictCap,
		SizeInHeader: true,
		Size:         int64(len(src)),
		EOSMarker:    false,
	}
	var buf bytes.Buffer
	w, err := cfg.NewWriter(&buf)
	if err != nil {
		return nil, NewError(ErrCompression, "lzma writer: "+err.Error())
	}
	if _, err := w.Write(src); err != nil {
		return nil, NewError(ErrCompression, "lzma write: "+err.Error())
	}
	if err := w.Close(); err != nil {
		return nil, NewError(ErrCompression, "lzma close: "+err.Error())
	}

	// The classic header is 5 property bytes followed by an 8 byte
	// little-endian size; FLAMP carries the size up front instead.
	raw := buf.Bytes()
	if len(raw) < 13 {
		return nil, NewError(ErrCompression, "lzma: short stream")
	}
	out := make([]byte, 0, len(lzmaPrefix)+4+len(raw)-8)
	out = append(out, lzmaPrefix...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(src)))
	out = append(out, raw[:5]...)
	out = append(out, raw[13:]...)
	return out, nil
}

func (LZMACompressor) Decompress(src []byte) ([]byte, error) {
	body, ok := bytes.CutPrefix(src, []byte(lzmaPrefix))
	if !ok {
		return nil, NewError(ErrCompression, "lzma: missing prefix")
	}
	if len(body) < 9 {
		return nil, NewError(ErrCompression, "lzma: short header")
	}
	size := binary.BigEndian.Uint32(body[:4])
	if uint64(size) > lzmaMaxRatio*uint64(len(body)) {
		return nil, NewError(ErrCompression, fmt.Sprintf("lzma: %d byte stream cannot hold %d bytes", len(body), size))
	}

	hdr := make([]byte, 13)
	copy(hdr, body[4:9])
	// Matches can never reach further back than the content length, so a
	// dictionary larger than that only costs memory.
	want := uint32(lzma.MinDictCap)
	if size > want {
		want = size
	}
	if binary.LittleEndian.Uint32(hdr[1:5]) > want {
		binary.LittleEndian.PutUint32(hdr[1:5], want)
	}
	binary.LittleEndian.PutUint64(hdr[5:], uint64(size))

	r, err := lzma.NewReader(io.MultiReader(bytes.NewReader(hdr), bytes.NewReader(body[9:])))
	if err != nil {
		return nil, NewError(ErrCompression, "lzma reader: "+err.Error())
	}
	var out bytes.Buffer
	out.Grow(int(min(uint64(size), 64*uint64(len(body)))))
	if _, err := out.ReadFrom(io.LimitReader(r, int64(size))); err != nil {
		return nil, NewError(ErrCompression, "lzma read: "+err.Error())
	}
	if out.Len() != int(size) {
		return nil, NewError(ErrCompression, fmt.Sprintf("lzma: got %d bytes, expected %d", out.Len(), size))
	}
	return out.Bytes(), nil
}

// zstdMaxMemory bounds what one zstd frame may decode to.
const zstdMaxMemory = 64 << 20

// zstdEncoder and zstdDecoder are shared; both are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		panic("amp: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(zstdMaxMemory))
	if err != nil {
		panic("amp: zstd decoder initialization failed: " + err.Error())
	}
}

// ZstdCompressor compresses with zstd frames.
type ZstdCompressor struct{}

const zstdPrefix = "\x01ZSTD"

func (ZstdCompressor) Name() string   { return CompressionZstd }
func (ZstdCompressor) Prefix() string { return zstdPrefix }

func (ZstdCompressor) Compress(src []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(src, []byte(zstdPrefix)), nil
}

func (ZstdCompressor) Decompress(src []byte) ([]byte, error) {
	body, ok := bytes.CutPrefix(src, []byte(zstdPrefix))
	if !ok {
		return nil, NewError(ErrCompression, "zstd: missing prefix")
	}
	out, err := zstdDecoder.DecodeAll(body, nil)
	if err != nil {
		return nil, NewError(ErrCompression, "zstd: "+err.Error())
	}
	return out, nil
}

// LZ4Compressor compresses with an lz4 block preceded by its original length
// as a 4 byte big-endian integer.
type LZ4Compressor struct{}

const (
	lz4Prefix   = "\x01LZ4:"
	lz4MaxRatio = 255
)

func (LZ4Compressor) Name() string   { return CompressionLZ4 }
func (LZ4Compressor) Prefix() string { return lz4Prefix }

func (LZ4Compressor) Compress(src []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	written, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return nil, NewError(ErrCompression, "lz4: "+err.Error())
	}
	// CompressBlock reports 0 for incompressible input.
	if written == 0 {
		return nil, NewError(ErrCompression, "lz4: incompressible")
	}
	out := make([]byte, 0, len(lz4Prefix)+4+written)
	out = append(out, lz4Prefix...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(src)))
	return append(out, dst[:written]...), nil
}

func (LZ4Compressor) Decompress(src []byte) ([]byte, error) {
	body, ok := bytes.CutPrefix(src, []byte(lz4Prefix))
	if !ok {
		return nil, NewError(ErrCompression, "lz4: missing prefix")
	}
	if len(body) < 4 {
		return nil, NewError(ErrCompression, "lz4: short header")
	}
	size := int(binary.BigEndian.Uint32(body[:4]))
	// An lz4 sequence expands to at most 255 bytes per input byte
	if size > lz4MaxRatio*(len(body)-4)+16 {
		return nil, NewError(ErrCompression, fmt.Sprintf("lz4: %d byte block cannot hold %d bytes", len(body)-4, size))
	}
	out := make([]byte, size)
	read, err := lz4.UncompressBlock(body[4:], out)
	if err != nil {
		return nil, NewError(ErrCompression, "lz4: "+err.Error())
	}
	if read != size {
		return nil, NewError(ErrCompression, fmt.Sprintf("lz4: got %d bytes, expected %d", read, size))
	}
	return out, nil
}
