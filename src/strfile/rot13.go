package strfile

// Rot13Byte rotates ASCII letters by 13 places, preserving case. Any other byte is
// returned unchanged.
func Rot13Byte(b byte) byte {
	switch {
	case b >= 'a' && b <= 'z':
		return 'a' + (b-'a'+13)%26
	case b >= 'A' && b <= 'Z':
		return 'A' + (b-'A'+13)%26
	default:
		return b
	}
}

// Rot13 applies Rot13Byte to every byte of s. Multi-byte UTF-8 sequences never
// contain ASCII bytes, so they pass through intact. Rot13(Rot13(s)) == s.
func Rot13(s string) string {
	buf := []byte(s)
	for i, b := range buf {
		buf[i] = Rot13Byte(b)
	}
	return string(buf)
}
