package amp

import (
	"strings"
	"testing"
	"time"
)

var blockTestData = []string{
	"QST QST QST",
	"<FILE 29 A7F3>{568B}20190531220700:edcT.csv",
	"<SIZE 20 E0D5>{568B}146796 2294 64",
	"<DATA 75 23C5>{568B:1147}gC_Sb8&Nqa_Dh1}#QD_}/v};`M(8HvzO>qP2Jw&7$X_?@G&^U8~=:CbZ~%&C|]he",
	"<DATA 74 946C>{568B:359}qZ~D8C|@?|s#]H|7sb~g1iUI.Xs6|)>,!buHsC|1@|sp}zh4DM_s(!rinr>REM|Z",
	"<DATA 74 5A98>{568B:552}#v}&_M(d.E&uT8~(._~oe`c1Ix}aPD_=:_~${s(v#v(Xs<|(h6.E8NCC|:[|s/qk",
	"<DATA 75 B4D2>{568B:1364}Nw)Xs&|(h=&#$Z_ICkDe>%a6TK&#$,KC|u9M>J&NqkhK8fl<~>NQ>REJ9v}#`s(.",
	"<DATA 74 BB43>{568B:261}}${s(Vs.9Y(7~4ZP&!TY_^xG&_BD_8=PwZ~(8DJC&&Xqn%2_~O$(soqy}Wb8~s=v",
	"<DATA 75 CE16>{568B:1800}~N:_~qoNIC|`@XsT})>{&k1Z_n.H&IlD_%>v}#RJ_.&nKl>&,KqyXb~l2(Rz}Zi8",
	"<DATA 74 0682>{568B:551}=v}1T2qjq?Qg}C__*^4ZM|o<~;mG>REM|pCE>ivwqj_w>~]Lq(UI]M(oEy}UBO#P",
	"<DATA 75 1DE1>{568B:2056}}=G8~^Yi&nIa_%HI,f>}lat0<uW{Rfq,Qy>J&Uv_~2_M(@r?Qy>IVL|pCb~56#qi",
}

// collect runs input through a parser and returns every block found.
func collect(input string) []*Block {
	var blocks []*Block
	p := NewParser(func(b *Block) { blocks = append(blocks, b) })
	p.WriteString(input)
	return blocks
}

func TestBlockString(t *testing.T) {
	b := NewBlock(KeywordSize, "ABEF", "1045 17 64")
	if got := b.String(); got != "<SIZE 16 7C74>{ABEF}1045 17 64" {
		t.Errorf("unexpected rendering %q", got)
	}
	if b.ByteCount() != 16 || b.Checksum() != "7C74" {
		t.Errorf("byte count %d checksum %s", b.ByteCount(), b.Checksum())
	}

	c := NewControlBlock("6074", ControlEOF)
	if got := c.String(); got != "<CNTL 10 5433>{6074:EOF}" {
		t.Errorf("unexpected control rendering %q", got)
	}

	d := NewDataBlock("6074", 4, "13,01:05,01:55\n14,01:05,01:55")
	if got := d.String(); got != "<DATA 37 507D>{6074:4}13,01:05,01:55\n14,01:05,01:55" {
		t.Errorf("unexpected data rendering %q", got)
	}
}

func TestParsingBlocks(t *testing.T) {
	blocks := collect(strings.Join(blockTestData, "\n"))
	if len(blocks) != 10 {
		t.Fatalf("expected 10 blocks, got %d", len(blocks))
	}

	file := blocks[0]
	if file.Keyword != KeywordFile || file.Data != "20190531220700:edcT.csv" || file.ByteCount() != 29 || file.Hash != "568B" {
		t.Errorf("unexpected FILE block %+v", file)
	}
	size := blocks[1]
	if size.Keyword != KeywordSize || size.Data != "146796 2294 64" || size.ByteCount() != 20 {
		t.Errorf("unexpected SIZE block %+v", size)
	}

	info := []struct{ size, num int }{
		{75, 1147}, {74, 359}, {74, 552}, {75, 1364}, {74, 261}, {75, 1800}, {74, 551}, {75, 2056},
	}
	for i, want := range info {
		b := blocks[2+i]
		line := blockTestData[3+i]
		data := line[strings.IndexByte(line, '}')+1:]
		if b.Keyword != KeywordData {
			t.Errorf("block %d: keyword %s", i, b.Keyword)
		}
		if b.Data != data {
			t.Errorf("block %d: data %q, want %q", i, b.Data, data)
		}
		if b.ByteCount() != want.size || b.BlockNum != want.num {
			t.Errorf("block %d: size %d num %d, want %d %d", i, b.ByteCount(), b.BlockNum, want.size, want.num)
		}
	}
}

func TestBadDataHandling(t *testing.T) {
	badTestData := []string{
		"<DATA 75 23C5<FILE 29 A7F3>{568B}20190531220700:edcT.csvfdsafdsfdjklfdsafdsa",
		// one character changed so the checksum fails
		"<DATA 75 CE16>{568B:1800}~N;_~qoNIC|`@XsT})>{&k1Z_n.H&IlD_%>v}#RJ_.&nKl>&,KqyXb~l2(Rz}Zi8",
		"<DATA 74 946C>{568B:359}qZ~D8C|@?|s#]H|7sb~g1iUI.Xs6|)>,!buHsC|1@|sp}zh4DM_s(!rinr>REM|Z",
		"<DATA 74 5A98>{568B:552}#v}&_M(d.E&uT8~(._~oe`c1Ix}aPD_=:_~${s(v#v(Xs<|(h6.E8NCC|:[|s/qk",
	}
	blocks := collect(strings.Join(badTestData, "\n"))
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}
	if blocks[0].Keyword != KeywordFile || blocks[0].Data != "20190531220700:edcT.csv" {
		t.Errorf("unexpected first block %+v", blocks[0])
	}
	if blocks[1].BlockNum != 359 {
		t.Errorf("expected block 359 after the corrupted one, got %d", blocks[1].BlockNum)
	}
	if blocks[2].BlockNum != 552 {
		t.Errorf("expected block 552, got %d", blocks[2].BlockNum)
	}
}

func TestParseBlock(t *testing.T) {
	b, err := ParseBlock("<SIZE 16 7C74>{ABEF}1045 17 64", nil)
	if err != nil {
		t.Fatal(err)
	}
	p, err := b.Payload()
	if err != nil {
		t.Fatal(err)
	}
	if got := p.(SizeHeader); got != (SizeHeader{Size: 1045, BlockCount: 17, BlockSize: 64}) {
		t.Errorf("unexpected payload %+v", got)
	}

	bad := map[string]ErrorType{
		"SIZE 16 7C74>{ABEF}1045 17 64":    ErrInvalidBlock,
		"<SIZE 16 7C74 {ABEF}1045 17 64":   ErrInvalidBlock,
		"<SIZE 17 7C74>{ABEF}1045 17 64":   ErrInvalidBlock,
		"<SIZE 16 7C75>{ABEF}1045 17 64":   ErrChecksum,
		"<SIZE 16 7c74>{ABEF}1045 17 64":   ErrChecksum,
		"<CHIC 16 7C74>{ABEF}1045 17 64":   ErrInvalidBlock,
		"<SIZE 16 7C74>[ABEF]1045 17 64":   ErrInvalidBlock,
		"<SIZE 016 7C74>{ABEF}1045 17 64":  ErrInvalidBlock,
		"<DATA 10 5433>{6074:EOF}":         ErrInvalidBlock,
		"<CNTL 10 5433>{6074:EOX}":         ErrInvalidBlock,
		"<SIZE 18 0000>{ABEF:1}1045 17 64": ErrInvalidBlock,
	}
	for frame, want := range bad {
		_, err := ParseBlock(frame, nil)
		if err == nil {
			t.Errorf("ParseBlock(%q): expected error", frame)
			continue
		}
		if !isType(err, want) {
			t.Errorf("ParseBlock(%q): got %v, want %s", frame, err, want)
		}
	}
}

func TestParseBlockCustomChecksum(t *testing.T) {
	constant := func(string) string { return "BEEF" }
	b := NewBlock(KeywordID, "0001", "N0CALL").WithChecksum(constant)
	frame := b.String()
	if frame != "<ID 12 BEEF>{0001}N0CALL" {
		t.Fatalf("unexpected rendering %q", frame)
	}
	if _, err := ParseBlock(frame, constant); err != nil {
		t.Errorf("custom checksum rejected: %v", err)
	}
	if _, err := ParseBlock(frame, nil); !IsChecksum(err) {
		t.Errorf("expected CRC16 mismatch, got %v", err)
	}
}

func TestPayloads(t *testing.T) {
	tests := []struct {
		block *Block
		want  Payload
	}{
		{NewBlock(KeywordProgram, "1", "FLAMP 2.2.04"), ProgramInfo{Name: "FLAMP", Version: "2.2.04"}},
		{NewBlock(KeywordFile, "1", "20190530002949:prep emscripten.sh"), FileHeader{Stamp: "20190530002949", Name: "prep emscripten.sh"}},
		{NewBlock(KeywordID, "1", "KD7BBC "), StationID{Callsign: "KD7BBC"}},
		{NewBlock(KeywordDescription, "1", "race results"), Description{Text: "race results"}},
		{NewDataBlock("1", 3, "abc"), DataChunk{Num: 3, Text: "abc"}},
		{NewControlBlock("1", ControlEOT), ControlMark{Word: ControlEOT}},
	}
	for _, tt := range tests {
		got, err := tt.block.Payload()
		if err != nil {
			t.Errorf("%s: %v", tt.block.Keyword, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.block.Keyword, got, tt.want)
		}
	}

	for _, b := range []*Block{
		NewBlock(KeywordFile, "1", "2019053000294:x"),
		NewBlock(KeywordSize, "1", "1 2"),
		NewBlock(KeywordSize, "1", "1 -2 3"),
		NewBlock(KeywordSize, "1", "a b c"),
	} {
		if _, err := b.Payload(); err == nil {
			t.Errorf("%s %q: expected error", b.Keyword, b.Data)
		}
	}
}

func TestFileHeaderModTime(t *testing.T) {
	h := FileHeader{Stamp: "20190530002949", Name: "x"}
	got, err := h.ModTime(time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2019, 5, 30, 0, 29, 49, 0, time.UTC); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if _, err := (FileHeader{Stamp: "20191330002949"}).ModTime(nil); err == nil {
		t.Error("expected error for month 13")
	}
}

func TestFindBlock(t *testing.T) {
	buffer := "noise <SIZE 16 7C75>{ABEF}1045 17 64 more <SIZE 16 7C74>{ABEF}1045 17 64 tail"
	b, start, end, ok := FindBlock(KeywordSize, buffer, nil)
	if !ok {
		t.Fatal("expected to find the valid SIZE block")
	}
	if buffer[start:end] != "<SIZE 16 7C74>{ABEF}1045 17 64" {
		t.Errorf("unexpected span %q", buffer[start:end])
	}
	if b.Data != "1045 17 64" {
		t.Errorf("unexpected data %q", b.Data)
	}

	if _, _, _, ok := FindBlock(KeywordFile, buffer, nil); ok {
		t.Error("unexpected FILE block")
	}
	if _, _, _, ok := FindBlock(KeywordSize, "<SIZE 16 7C74>{ABEF}1045", nil); ok {
		t.Error("truncated block should not be found")
	}
}

func TestParseKeyword(t *testing.T) {
	for _, k := range Keywords {
		if got, ok := ParseKeyword(string(k)); !ok || got != k {
			t.Errorf("ParseKeyword(%s) failed", k)
		}
	}
	if _, ok := ParseKeyword("size"); ok {
		t.Error("keywords are case-sensitive")
	}
}
