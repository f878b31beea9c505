package amp

import (
	"strings"
	"testing"
)

func TestParserBuffered(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"junk is ignored", "              fdsafdsafdsafdsaf dsaf dsa f     ", ""},
		{"attention after <", "      <         fdsfds", "<         fdsfds"},
		{"too long a tag is dropped", "      <         fdsfds                             ", ""},
		{"restart keeps the new tag", "      <         fdsfds      <DATA         ", "<DATA         "},
		{"malformed tag", "  <SIZE ^^ tingy>", ""},
		{"unknown keyword", "  <CHIC 23 AB34>", ""},
		{"partial body", "<SIZE 16 7C74>{ABEF}10", "<SIZE 16 7C74>{ABEF}10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(nil)
			p.WriteString(tt.input)
			if got := p.Buffered(); got != tt.want {
				t.Errorf("Buffered() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParserTagLengthLimit(t *testing.T) {
	p := NewParser(nil)
	p.WriteString("<" + strings.Repeat("A", MaxTagLength))
	if got := p.Buffered(); len(got) != MaxTagLength+1 {
		t.Fatalf("expected %d buffered bytes, got %d", MaxTagLength+1, len(got))
	}
	p.WriteByte('A')
	if got := p.Buffered(); got != "" {
		t.Errorf("expected the tag to be abandoned, got %q", got)
	}
}

func TestParserFrameLimit(t *testing.T) {
	var blocks []*Block
	p := NewParser(func(b *Block) { blocks = append(blocks, b) })
	p.MaxFrameBytes = 10

	p.WriteString("<SIZE 16 7C74>")
	if p.Buffered() != "" {
		t.Error("a declared count over the limit should be abandoned at '>'")
	}
	p.WriteString("{ABEF}1045 17 64<CNTL 10 5433>{6074:EOF}")
	if len(blocks) != 1 || blocks[0].Control != ControlEOF {
		t.Errorf("expected only the CNTL block, got %d blocks", len(blocks))
	}
}

func TestParserResync(t *testing.T) {
	// A rejected frame that swallowed the start of a real block gives the
	// bytes back for scanning.
	var blocks []*Block
	var rejected []string
	p := NewParser(func(b *Block) { blocks = append(blocks, b) })
	p.OnReject = func(frame string, err error) { rejected = append(rejected, frame) }

	p.WriteString("<SIZE 30 1234>{AB<SIZE 16 7C74>{ABEF}1045 17 64 trailing noise")
	if len(rejected) != 1 {
		t.Fatalf("expected 1 rejected frame, got %d", len(rejected))
	}
	if len(blocks) != 1 || blocks[0].Data != "1045 17 64" {
		t.Fatalf("expected the embedded SIZE block, got %v", blocks)
	}
}

func TestParserNestedResync(t *testing.T) {
	var blocks []*Block
	p := NewParser(func(b *Block) { blocks = append(blocks, b) })

	// Two corrupted frames, each swallowing the start of the next
	input := "<DATA 60 0000>x<DATA 40 0000>y<CNTL 10 5433>{6074:EOF}" + strings.Repeat(" ", 60)
	p.WriteString(input)
	if len(blocks) != 1 || blocks[0].Control != ControlEOF {
		t.Fatalf("expected the CNTL block, got %d blocks", len(blocks))
	}
}

func TestParserByteAtATime(t *testing.T) {
	var blocks []*Block
	p := NewParser(func(b *Block) { blocks = append(blocks, b) })
	input := strings.Join(blockTestData, "\r\n")
	for i := 0; i < len(input); i++ {
		p.WriteByte(input[i])
	}
	if len(blocks) != 10 {
		t.Errorf("expected 10 blocks, got %d", len(blocks))
	}
}

func TestParserReset(t *testing.T) {
	var blocks []*Block
	p := NewParser(func(b *Block) { blocks = append(blocks, b) })
	p.WriteString("<SIZE 16 7C74>{ABEF}10")
	p.Reset()
	if p.Buffered() != "" {
		t.Error("Reset should drop the partial frame")
	}
	p.WriteString("45 17 64")
	if len(blocks) != 0 {
		t.Error("no block should survive a reset")
	}
	p.WriteString("<SIZE 16 7C74>{ABEF}1045 17 64")
	if len(blocks) != 1 {
		t.Error("parser should work after a reset")
	}
}

func TestParserWriter(t *testing.T) {
	var blocks []*Block
	p := NewParser(func(b *Block) { blocks = append(blocks, b) })
	n, err := p.Write([]byte("<CNTL 10 F43F>{6074:EOT}"))
	if err != nil || n != 24 {
		t.Errorf("Write returned %d, %v", n, err)
	}
	if len(blocks) != 1 {
		t.Errorf("expected 1 block, got %d", len(blocks))
	}
}
