package bytecode

// MaxVarintLen is the longest encoding of a 64-bit value.
const MaxVarintLen = 10

// DecodeVarint reads a varint starting at pos. Each byte carries 7 value
// bits, most significant group first; a set high bit means another byte
// follows. It returns the value and the position just past the encoding.
func DecodeVarint(buf []byte, pos int) (uint64, int, error) {
	var result uint64
	for {
		if pos < 0 || pos >= len(buf) {
			return 0, pos, ErrTruncatedVarint
		}
		b := buf[pos]
		pos++
		if result>>57 != 0 {
			return 0, pos, ErrVarintOverflow
		}
		result = result<<7 | uint64(b&0x7f)
		if b&0x80 == 0 {
			return result, pos, nil
		}
	}
}

// AppendVarint appends the minimal encoding of v to buf.
func AppendVarint(buf []byte, v uint64) []byte {
	var tmp [MaxVarintLen]byte
	i := len(tmp) - 1
	tmp[i] = byte(v & 0x7f)
	for v >>= 7; v != 0; v >>= 7 {
		i--
		tmp[i] = byte(v&0x7f) | 0x80
	}
	return append(buf, tmp[i:]...)
}

// AppendVarintFixed appends v padded with leading empty groups so the
// encoding is exactly width bytes long. Jump operands use this so they can
// be patched once the target is known. It panics if v does not fit.
func AppendVarintFixed(buf []byte, v uint64, width int) []byte {
	if VarintLen(v) > width {
		panic("bytecode: varint does not fit in fixed width")
	}
	for i := width - 1; i >= 0; i-- {
		b := byte(v>>(7*uint(i))) & 0x7f
		if i > 0 {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}

// VarintLen returns the length of the minimal encoding of v.
func VarintLen(v uint64) int {
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}
