package record

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	r := New(6)
	r.Values[0] = NullValue()
	r.Values[1] = IntValue(-42)
	r.Values[2] = FloatValue(3.5)
	r.Values[3] = TextValue("hello")
	r.Values[4] = BlobValue([]byte{1, 2, 3})
	r.Values[5] = BoolValue(true)

	encoded := r.Encode()
	got, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if got.ColumnCount() != 6 {
		t.Fatalf("ColumnCount() = %d, want 6", got.ColumnCount())
	}
	if !got.Values[0].IsNull() {
		t.Error("column 0 should be NULL")
	}
	if got.Values[1].Int != -42 {
		t.Errorf("column 1 = %d, want -42", got.Values[1].Int)
	}
	if got.Values[2].F64 != 3.5 {
		t.Errorf("column 2 = %f, want 3.5", got.Values[2].F64)
	}
	if got.Values[3].Str != "hello" {
		t.Errorf("column 3 = %q, want hello", got.Values[3].Str)
	}
	if !bytes.Equal(got.Values[4].Bin, []byte{1, 2, 3}) {
		t.Errorf("column 4 = %v, want [1 2 3]", got.Values[4].Bin)
	}
	if !got.Values[5].Bool {
		t.Error("column 5 should be true")
	}
}

func TestDecodeRejectsSizeMismatch(t *testing.T) {
	r := New(1)
	r.Values[0] = IntValue(1)
	encoded := r.Encode()
	corrupted := append(encoded, 0xFF)
	if _, err := Decode(corrupted); err == nil {
		t.Fatal("expected a size mismatch error")
	}
}

func TestDecodeRejectsTruncation(t *testing.T) {
	r := New(1)
	r.Values[0] = TextValue("a reasonably long string value")
	encoded := r.Encode()
	if _, err := Decode(encoded[:len(encoded)-5]); err == nil {
		t.Fatal("expected a truncation error")
	}
}

func TestInvalidRowIDIsDistinct(t *testing.T) {
	if InvalidRowID.IsValid() {
		t.Fatal("InvalidRowID must report IsValid() == false")
	}
	valid := RowID{Slot: 0}
	if !valid.IsValid() {
		t.Fatal("a zero-value slot 0 row should be valid")
	}
}
