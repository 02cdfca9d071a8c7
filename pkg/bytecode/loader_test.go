package bytecode

import (
	"errors"
	"strings"
	"testing"
)

// minimalObject is the smallest valid object file: empty tables, no code.
func minimalObject() []byte {
	buf := append([]byte{}, Signature...)
	buf = append(buf, 0x01)                     // version
	buf = append(buf, make([]byte, HashSize)...) // source hash
	buf = append(buf, 0x00)                     // global size
	buf = append(buf, 0x00)                     // string table length
	buf = append(buf, 0x00)                     // type count
	buf = append(buf, 0, 0, 0, 0, 0, 0)         // reserved sections
	buf = append(buf, 0x00)                     // functions
	buf = append(buf, 0x00)                     // exception handlers
	buf = append(buf, 0x00)                     // classes
	return buf
}

func TestLoadMinimal(t *testing.T) {
	img, err := Load(minimalObject())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if img.Version != FormatVersion {
		t.Errorf("Version = %d, want %d", img.Version, FormatVersion)
	}
	if img.GlobalSize != 0 {
		t.Errorf("GlobalSize = %d, want 0", img.GlobalSize)
	}
	if len(img.Strings) != 0 || len(img.Functions) != 0 || len(img.Code) != 0 {
		t.Errorf("expected empty image, got %d strings, %d functions, %d code bytes",
			len(img.Strings), len(img.Functions), len(img.Code))
	}
}

func TestLoadBadSignature(t *testing.T) {
	data := minimalObject()
	data[1] = 'x'
	_, err := Load(data)
	if !IsFormatError(err) {
		t.Fatalf("Load error = %v, want FormatError", err)
	}
	if !errors.Is(err, ErrBadSignature) {
		t.Errorf("Load error = %v, want ErrBadSignature", err)
	}
}

func TestLoadBadVersion(t *testing.T) {
	data := minimalObject()
	data[4] = 0x02
	_, err := Load(data)
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("Load error = %v, want ErrUnsupportedVersion", err)
	}
}

func TestLoadTruncated(t *testing.T) {
	data := minimalObject()
	for n := 0; n < len(data)-1; n++ {
		_, err := Load(data[:n])
		if !IsFormatError(err) {
			t.Errorf("Load(%d bytes) error = %v, want FormatError", n, err)
		}
	}
}

func TestLoadReservedSectionNonZero(t *testing.T) {
	for i, name := range reservedSections {
		data := minimalObject()
		// signature + version + hash + global size + string table + type count
		pos := 4 + 1 + HashSize + 1 + 1 + 1 + i
		data[pos] = 0x01
		_, err := Load(data)
		if !errors.Is(err, ErrUnsupportedSection) {
			t.Errorf("%s: Load error = %v, want ErrUnsupportedSection", name, err)
			continue
		}
		var fe *FormatError
		if errors.As(err, &fe) && fe.Section != name {
			t.Errorf("FormatError.Section = %q, want %q", fe.Section, name)
		}
	}
}

func TestLoadRejectsTablesByDefault(t *testing.T) {
	b := NewBuilder()
	b.AddException(0, 1, "Err", 1, 0)
	b.Emit(OpRet)
	if _, err := Load(b.Bytes()); !errors.Is(err, ErrUnsupportedSection) {
		t.Errorf("exception table: error = %v, want ErrUnsupportedSection", err)
	}
	if _, err := Load(b.Bytes(), WithExceptionTable()); err != nil {
		t.Errorf("exception table allowed: error = %v", err)
	}

	b = NewBuilder()
	b.AddClass("Point", []int{})
	if _, err := Load(b.Bytes()); !errors.Is(err, ErrUnsupportedSection) {
		t.Errorf("class table: error = %v, want ErrUnsupportedSection", err)
	}
}

func TestLoadStringOverrun(t *testing.T) {
	data := minimalObject()
	pos := 4 + 1 + HashSize + 1
	tail := append([]byte{}, data[pos+1:]...)
	// A two byte table whose only entry claims five bytes.
	data = append(data[:pos], 0x02, 0x05, 'a')
	data = append(data, tail...)
	_, err := Load(data)
	if !errors.Is(err, ErrInvalidString) {
		t.Errorf("Load error = %v, want ErrInvalidString", err)
	}
}

func TestLoadBytesLiteralInStringTable(t *testing.T) {
	b := NewBuilder()
	idx := b.String(string([]byte{0x00, 0xff, 0xfe}))
	img, err := Load(b.Bytes())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got, _ := img.String(idx); got != "\x00\xff\xfe" {
		t.Errorf("entry = %q", got)
	}
}

func TestBuilderRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.SetGlobalSize(3)
	b.AddType("Point", "R[x:N,y:N]")
	fn := b.AddFunction("add", 0, 2, 2, 0)
	b.EmitString(OpPushS, "hello")
	b.Emit(OpCallF, uint64(fn))
	var hash [HashSize]byte
	hash[0] = 0xAB
	b.SetSourceHash(hash)

	img, err := Load(b.Bytes())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if img.GlobalSize != 3 {
		t.Errorf("GlobalSize = %d, want 3", img.GlobalSize)
	}
	if img.SourceHash != hash {
		t.Errorf("SourceHash = %x, want %x", img.SourceHash, hash)
	}
	if len(img.Types) != 1 {
		t.Fatalf("Types = %d entries, want 1", len(img.Types))
	}
	if s, _ := img.String(img.Types[0].Name); s != "Point" {
		t.Errorf("type name = %q, want %q", s, "Point")
	}
	if idx, ok := img.LookupFunction("add"); !ok || idx != fn {
		t.Errorf("LookupFunction(add) = %d, %v", idx, ok)
	}
	if got := img.Functions[fn]; got.Params != 2 || got.Locals != 2 {
		t.Errorf("function = %+v", got)
	}
}

func TestLoadLegacyTypeCount(t *testing.T) {
	b := NewBuilder()
	b.AddType("A", "N")
	b.AddType("B", "S")
	data := b.Bytes()

	img, err := Load(data)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(img.Types) != 2 {
		t.Errorf("Types = %d, want 2", len(img.Types))
	}

	// A legacy reader stops one pair early and the leftover pair is then
	// misread as reserved section counts.
	if _, err := Load(data, WithLegacyTypeCount()); err == nil {
		t.Error("legacy read of a full type table should not load cleanly")
	}
}

func TestFormatErrorMessage(t *testing.T) {
	_, err := Load([]byte("Nope"))
	if err == nil || !strings.Contains(err.Error(), "signature") {
		t.Errorf("error = %v, want mention of signature", err)
	}
}

func TestLoadImplausibleFunction(t *testing.T) {
	tests := []struct {
		name                        string
		nest, params, locals, entry int
		field                       string
	}{
		{"negative params", 0, -1, 0, 0, "params"},
		{"huge locals", 0, 0, 1 << 62, 0, "locals"},
		{"negative nest", -1, 0, 0, 0, "nest"},
		{"entry past end", 0, 0, 0, 1 << 30, "entry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			b.AddFunction("f", tt.nest, tt.params, tt.locals, tt.entry)
			b.Emit(OpCallF, 0)
			_, err := b.Image()
			if !IsFormatError(err) {
				t.Fatalf("Load error = %v, want FormatError", err)
			}
			if !errors.Is(err, ErrImplausibleFunction) {
				t.Errorf("Load error = %v, want ErrImplausibleFunction", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q should name the %s field", err, tt.field)
			}
		})
	}
}

func TestLoadFunctionAtLimit(t *testing.T) {
	b := NewBuilder()
	b.AddFunction("f", 2, MaxFrameSlots, MaxFrameSlots, 0)
	img, err := b.Image()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if fn := img.Functions[0]; fn.Params != MaxFrameSlots || fn.Locals != MaxFrameSlots || fn.Nest != 2 {
		t.Errorf("function = %+v", fn)
	}
}

func TestLoadImplausibleHandler(t *testing.T) {
	b := NewBuilder()
	b.Emit(OpRet)
	b.AddException(0, 1, "Err", 0, -1)
	_, err := b.Image()
	if !errors.Is(err, ErrImplausibleHandler) {
		t.Errorf("Load error = %v, want ErrImplausibleHandler", err)
	}
}
