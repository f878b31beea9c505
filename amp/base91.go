package amp

// basE91 alphabet. Every symbol is printable ASCII and safe inside a DATA
// payload because payloads are consumed by length, not by delimiter.
const base91Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!#$%&()*+,./:;<=>?@[]^_`{|}~\""

var base91Decode = func() [256]int {
	var table [256]int
	for i := range table {
		table[i] = -1
	}
	for i := 0; i < len(base91Alphabet); i++ {
		table[base91Alphabet[i]] = i
	}
	return table
}()

// Base91Encode encodes src with basE91.
func Base91Encode(src []byte) string {
	out := make([]byte, 0, len(src)*16/13+2)
	var b uint32
	var n uint
	for _, c := range src {
		b |= uint32(c) << n
		n += 8
		if n > 13 {
			v := b & 8191
			if v > 88 {
				b >>= 13
				n -= 13
			} else {
				v = b & 16383
				b >>= 14
				n -= 14
			}
			out = append(out, base91Alphabet[v%91], base91Alphabet[v/91])
		}
	}
	if n > 0 {
		out = append(out, base91Alphabet[b%91])
		if n > 7 || b > 90 {
			out = append(out, base91Alphabet[b/91])
		}
	}
	return string(out)
}

// Base91Decode decodes basE91 text. Characters outside the alphabet are
// skipped, so decoding never fails.
func Base91Decode(s string) []byte {
	out := make([]byte, 0, len(s)*14/16+1)
	var b uint32
	var n uint
	v := -1
	for i := 0; i < len(s); i++ {
		p := base91Decode[s[i]]
		if p < 0 {
			continue
		}
		if v < 0 {
			v = p
			continue
		}
		v += p * 91
		b |= uint32(v) << n
		if v&8191 > 88 {
			n += 13
		} else {
			n += 14
		}
		for {
			out = append(out, byte(b))
			b >>= 8
			n -= 8
			if n <= 7 {
				break
			}
		}
		v = -1
	}
	if v >= 0 {
		out = append(out, byte(b|uint32(v)<<n))
	}
	return out
}
