package amp

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	cv "github.com/glycerine/goconvey/convey"
)

func randomBytes(seed int64, n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}

func TestRoundTrip(t *testing.T) {

	binary := randomBytes(1, 700)

	cases := []struct {
		name string
		opts func(*Options)
		// encoding and compression expected on the wire
		base        BaseEncoding
		compression string
	}{
		{"plain text", func(o *Options) {}, BaseNone, ""},
		{"binary defaults to basE91", func(o *Options) { o.Content = binary }, Base91, ""},
		{"binary as base64", func(o *Options) { o.Content = binary; o.Base = Base64 }, Base64, ""},
		{"lzma", func(o *Options) { o.Content = compressible; o.Compression = CompressionLZMA }, Base91, CompressionLZMA},
		{"lzma as base64", func(o *Options) {
			o.Content = compressible
			o.Compression = CompressionLZMA
			o.Base = Base64
		}, Base64, CompressionLZMA},
		{"zstd", func(o *Options) {
			o.Content = compressible
			o.Compression = CompressionZstd
			o.ForceCompress = true
		}, Base91, CompressionZstd},
		{"lz4", func(o *Options) {
			o.Content = compressible
			o.Compression = CompressionLZ4
			o.ForceCompress = true
		}, Base91, CompressionLZ4},
	}

	orders := []struct {
		name    string
		arrange func([]*Block)
	}{
		{"in order", func([]*Block) {}},
		{"reversed", func(b []*Block) {
			for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
				b[i], b[j] = b[j], b[i]
			}
		}},
		{"shuffled", func(b []*Block) {
			rand.New(rand.NewSource(7)).Shuffle(len(b), func(i, j int) { b[i], b[j] = b[j], b[i] })
		}},
	}

	cv.Convey("a file encoded by Amp is recovered byte for byte by Deamp, "+
		"whatever the encoding, compression or arrival order", t, func() {

		for _, c := range cases {
			a := testAmp(t, c.opts)
			want := a.opts.Content

			cv.So(a.Encoding(), cv.ShouldEqual, c.base)
			cv.So(a.Compression(), cv.ShouldEqual, c.compression)

			for _, order := range orders {
				blocks := a.Blocks()
				order.arrange(blocks)

				var completes int
				d := NewDeamp(&Callbacks{
					OnFileComplete: func(FileCompleteEvent) { completes++ },
				}, nil)
				for _, b := range blocks {
					d.IngestString(b.String() + "\n")
				}

				cv.So(completes, cv.ShouldEqual, 1)
				got, err := d.FileContent(a.Hash())
				cv.So(err, cv.ShouldBeNil)
				cv.So(bytes.Equal(got, want), cv.ShouldBeTrue)
			}
		}
	})

	cv.Convey("a rendering that loses blocks is completed by resending "+
		"the missing ones without headers", t, func() {

		a := testAmp(t, func(o *Options) { o.Content = compressible; o.BlockSize = 32 })
		text := a.Render(RenderOptions{})

		// Drop blocks 2 and 5 on the way
		garbled := bytes.Replace([]byte(text), []byte(a.DataBlock(2).String()), nil, 1)
		garbled = bytes.Replace(garbled, []byte(a.DataBlock(5).String()), nil, 1)

		d := NewDeamp(nil, nil)
		d.Write(garbled)
		f, ok := d.GetFile(a.Hash())
		cv.So(ok, cv.ShouldBeTrue)
		cv.So(f.BlocksNeeded(), cv.ShouldResemble, []int{2, 5})
		cv.So(f.IsComplete(), cv.ShouldBeFalse)

		d.IngestString(a.Render(RenderOptions{Blocks: f.BlocksNeeded(), OmitHeaders: true}))
		cv.So(f.IsComplete(), cv.ShouldBeTrue)
		got, err := d.FileContent(a.Hash())
		cv.So(err, cv.ShouldBeNil)
		cv.So(string(got), cv.ShouldEqual, string(compressible))
	})

	cv.Convey("every block size a default decoder can frame round trips, "+
		"and larger block sizes are refused", t, func() {

		long := []byte(strings.Repeat(testFile+"\n", 40))
		for _, size := range []int{1, MaxBlockSize} {
			a := testAmp(t, func(o *Options) { o.Content = long; o.BlockSize = size })
			cv.So(a.DataBlockCount(), cv.ShouldEqual, (len(long)+size-1)/size)

			d := NewDeamp(nil, nil)
			d.IngestString(a.String())
			got, err := d.FileContent(a.Hash())
			cv.So(err, cv.ShouldBeNil)
			cv.So(bytes.Equal(got, long), cv.ShouldBeTrue)
		}

		_, err := NewAmp(Options{Filename: "big.txt", Content: long, BlockSize: MaxBlockSize + 1})
		cv.So(isType(err, ErrConfig), cv.ShouldBeTrue)
	})
}
