package amp

import (
	"bytes"
	"testing"
)

func TestParseBaseEncoding(t *testing.T) {
	tests := map[string]BaseEncoding{
		"":       BaseNone,
		"none":   BaseNone,
		"base64": Base64,
		"B64":    Base64,
		"64":     Base64,
		"base91": Base91,
		"91":     Base91,
	}
	for in, want := range tests {
		got, err := ParseBaseEncoding(in)
		if err != nil || got != want {
			t.Errorf("ParseBaseEncoding(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseBaseEncoding("base32"); err == nil {
		t.Error("expected error for base32")
	}
}

func TestWrapUnwrap(t *testing.T) {
	src := []byte("\x01LZMA binary \x00\xff payload")
	for _, base := range []BaseEncoding{Base64, Base91} {
		c := CodecFor(base)
		wrapped := Wrap(c, src)
		got, used, err := Unwrap(wrapped)
		if err != nil {
			t.Fatalf("%s: %v", base, err)
		}
		if used == nil || used.Base() != base {
			t.Errorf("%s: wrong codec %v", base, used)
		}
		if !bytes.Equal(got, src) {
			t.Errorf("%s: got %q, want %q", base, got, src)
		}
	}

	if w := Wrap(CodecFor(Base64), []byte("hi")); w != "[b64:start]aGk=[b64:end]" {
		t.Errorf("unexpected base64 wrapping %q", w)
	}
}

func TestUnwrapPassThrough(t *testing.T) {
	for _, content := range []string{
		"plain text\n",
		"[b64:start]no end marker",
		"[b32:start]MFRGG===[b32:end]",
		"[b64:start]aGk=[b91:end]",
		"",
	} {
		got, c, err := Unwrap(content)
		if err != nil {
			t.Errorf("Unwrap(%q): %v", content, err)
		}
		if c != nil {
			t.Errorf("Unwrap(%q): unexpected codec %s", content, c.Tag())
		}
		if string(got) != content {
			t.Errorf("Unwrap(%q) changed content to %q", content, got)
		}
	}
}

func TestUnwrapLineWrapped(t *testing.T) {
	got, _, err := Unwrap("[b64:start]aGVs\nbG8g\r\nd29y\nbGQ=\n[b64:end]\n")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Errorf("expected hello world, got %q", got)
	}
}

func TestUnwrapBadBase64(t *testing.T) {
	_, _, err := Unwrap("[b64:start]!!!![b64:end]")
	if err == nil {
		t.Fatal("expected decode error")
	}
	if !isType(err, ErrEncoding) {
		t.Errorf("expected encoding error, got %v", err)
	}
}
