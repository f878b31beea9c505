package amp

// ChecksumFunc computes the 4 hex digit block checksum of text.
type ChecksumFunc func(text string) string

// crc16Table is the lookup table for the reflected CRC-16 polynomial 0xA001.
var crc16Table = func() [256]uint16 {
	var table [256]uint16
	for i := range table {
		c := uint16(i)
		for j := 0; j < 8; j++ {
			if c&1 != 0 {
				c = 0xA001 ^ (c >> 1)
			} else {
				c >>= 1
			}
		}
		table[i] = c
	}
	return table
}()

// updcrc16 folds one byte into a running CRC-16.
func updcrc16(b byte, crc uint16) uint16 {
	return crc16Table[byte(crc)^b] ^ (crc >> 8)
}

const hexDigits = "0123456789ABCDEF"

// CRC16 returns the AMP block checksum of text: CRC-16 with the reflected
// polynomial 0xA001, initial value 0xFFFF and no final xor, rendered as four
// uppercase hex digits.
func CRC16(text string) string {
	crc := uint16(0xFFFF)
	for i := 0; i < len(text); i++ {
		crc = updcrc16(text[i], crc)
	}
	return string([]byte{
		hexDigits[crc>>12&0x0F],
		hexDigits[crc>>8&0x0F],
		hexDigits[crc>>4&0x0F],
		hexDigits[crc&0x0F],
	})
}
