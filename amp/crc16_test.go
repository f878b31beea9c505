package amp

import "testing"

func TestCRC16(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"{ABEF}1045 17 64", "7C74"},
		{"{568B}20190531220700:edcT.csv", "A7F3"},
		{"{6074}221 4 64", "654C"},
		{"{6074:EOF}", "5433"},
		{"{6074:EOT}", "F43F"},
		{"20190602005328:testFile.txt064", "6074"},
		{"", "FFFF"},
	}
	for _, tt := range tests {
		if got := CRC16(tt.text); got != tt.want {
			t.Errorf("CRC16(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestCRC16Format(t *testing.T) {
	// Low values keep their leading zeros and every digit is uppercase
	for _, text := range []string{"a", "ab", "abc", "{5258:20}]", "\x00\xff"} {
		got := CRC16(text)
		if len(got) != 4 {
			t.Errorf("CRC16(%q) = %q, want 4 digits", text, got)
		}
		for i := 0; i < len(got); i++ {
			c := got[i]
			if !(c >= '0' && c <= '9') && !(c >= 'A' && c <= 'F') {
				t.Errorf("CRC16(%q) = %q, not uppercase hex", text, got)
			}
		}
	}
}

func TestUpdcrc16MatchesBitwise(t *testing.T) {
	bitwise := func(b byte, crc uint16) uint16 {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
		return crc
	}
	for crc := 0; crc < 0x10000; crc += 251 {
		for b := 0; b < 256; b++ {
			if got, want := updcrc16(byte(b), uint16(crc)), bitwise(byte(b), uint16(crc)); got != want {
				t.Fatalf("updcrc16(%#x, %#x) = %#x, want %#x", b, crc, got, want)
			}
		}
	}
}
