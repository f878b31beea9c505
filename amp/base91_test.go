package amp

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestBase91Vectors(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{[]byte("test"), "fPNKd"},
		{[]byte("Hello, World!"), ">OwJh>}AQ;r@@Y?F"},
		{[]byte{0, 1, 2, 255, 254}, ":C#(c~B"},
		{[]byte("The quick brown fox jumped over the lazy dog and then got eaten for his trouble."),
			"nX^Iz?T1s!2t:aRn#o>vf>6C9#`#S9bjyq^gp@TXi#ztAQDreBd<(.eGlTztJF8jTB1<@[<cLR!0=E^j>z=CM:wCmU(&8bKmtoB"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := Base91Encode(tt.in); got != tt.want {
			t.Errorf("Base91Encode(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if got := Base91Decode(tt.want); !bytes.Equal(got, tt.in) && len(tt.in) > 0 {
			t.Errorf("Base91Decode(%q) = %q, want %q", tt.want, got, tt.in)
		}
	}
}

func TestBase91RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(91))
	for n := 0; n < 300; n++ {
		src := make([]byte, n)
		rng.Read(src)
		enc := Base91Encode(src)
		if got := Base91Decode(enc); !bytes.Equal(got, src) {
			t.Fatalf("round trip of %d bytes failed", n)
		}
	}
}

func TestBase91DecodeSkipsForeignBytes(t *testing.T) {
	// Line breaks and spaces are not in the alphabet
	if got := string(Base91Decode("fP\nNK d")); got != "test" {
		t.Errorf("expected test, got %q", got)
	}
}
