package bytecode

import (
	"bytes"
	"errors"
	"testing"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 255, 16383, 16384, 2097151, 2097152, 1 << 32, 1<<63 + 5}
	for _, v := range values {
		buf := AppendVarint(nil, v)
		if len(buf) != VarintLen(v) {
			t.Errorf("AppendVarint(%d) len = %d, want %d", v, len(buf), VarintLen(v))
		}
		got, next, err := DecodeVarint(buf, 0)
		if err != nil {
			t.Fatalf("DecodeVarint(%x) error: %v", buf, err)
		}
		if got != v {
			t.Errorf("DecodeVarint(AppendVarint(%d)) = %d", v, got)
		}
		if next != len(buf) {
			t.Errorf("DecodeVarint(%x) next = %d, want %d", buf, next, len(buf))
		}
	}
}

func TestVarintEncoding(t *testing.T) {
	tests := []struct {
		value uint64
		want  []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0x81, 0x00}},
		{300, []byte{0x82, 0x2c}},
		{16384, []byte{0x81, 0x80, 0x00}},
	}
	for _, tt := range tests {
		if got := AppendVarint(nil, tt.value); !bytes.Equal(got, tt.want) {
			t.Errorf("AppendVarint(%d) = %x, want %x", tt.value, got, tt.want)
		}
	}
}

func TestVarintFixedWidth(t *testing.T) {
	buf := AppendVarintFixed(nil, 300, 5)
	if len(buf) != 5 {
		t.Fatalf("fixed encoding len = %d, want 5", len(buf))
	}
	got, next, err := DecodeVarint(buf, 0)
	if err != nil || got != 300 || next != 5 {
		t.Errorf("DecodeVarint(padded) = %d, %d, %v; want 300, 5, nil", got, next, err)
	}
}

func TestVarintTruncated(t *testing.T) {
	_, _, err := DecodeVarint([]byte{0x81, 0x80}, 0)
	if !errors.Is(err, ErrTruncatedVarint) {
		t.Errorf("DecodeVarint(truncated) error = %v, want ErrTruncatedVarint", err)
	}
	_, _, err = DecodeVarint(nil, 0)
	if !errors.Is(err, ErrTruncatedVarint) {
		t.Errorf("DecodeVarint(empty) error = %v, want ErrTruncatedVarint", err)
	}
}

func TestVarintOverflow(t *testing.T) {
	buf := bytes.Repeat([]byte{0xff}, 11)
	buf = append(buf, 0x7f)
	if _, _, err := DecodeVarint(buf, 0); !errors.Is(err, ErrVarintOverflow) {
		t.Errorf("DecodeVarint(overlong) error = %v, want ErrVarintOverflow", err)
	}
}
