package page

import (
	"bytes"
	"testing"

	"edgesql/pkg/primitives"
)

func testPageID() primitives.PageID {
	return primitives.PageID{TableID: 1, PageNum: 0}
}

func TestNewPageIsValidAndEmpty(t *testing.T) {
	p := New(testPageID(), FlagLeaf)
	if !p.IsValid() {
		t.Fatal("expected a freshly initialized page to be valid")
	}
	if p.SlotCount() != 0 {
		t.Fatalf("SlotCount() = %d, want 0", p.SlotCount())
	}
	if p.FreeSpace() != Size-HeaderSize {
		t.Fatalf("FreeSpace() = %d, want %d", p.FreeSpace(), Size-HeaderSize)
	}
	if !p.IsLeaf() {
		t.Fatal("expected FlagLeaf to be set")
	}
}

func TestInsertAndGetRecord(t *testing.T) {
	p := New(testPageID(), FlagLeaf)
	rec := []byte("hello world")

	slot, err := p.InsertRecord(rec)
	if err != nil {
		t.Fatalf("InsertRecord failed: %v", err)
	}
	if slot != 0 {
		t.Fatalf("expected first slot index 0, got %d", slot)
	}

	got, ok := p.GetRecord(slot)
	if !ok {
		t.Fatal("GetRecord reported not found")
	}
	if !bytes.Equal(got, rec) {
		t.Fatalf("GetRecord() = %q, want %q", got, rec)
	}
	if !p.IsDirty() {
		t.Fatal("expected InsertRecord to mark the page dirty")
	}
}

func TestInsertFailsWhenFull(t *testing.T) {
	p := New(testPageID(), FlagLeaf)
	big := make([]byte, Size)
	if _, err := p.InsertRecord(big); err == nil {
		t.Fatal("expected an error inserting a record larger than the page")
	}
}

func TestDeleteRecordMarksDeletedNotReclaimed(t *testing.T) {
	p := New(testPageID(), FlagLeaf)
	slot, _ := p.InsertRecord([]byte("x"))
	freeBefore := p.FreeSpace()

	if err := p.DeleteRecord(slot); err != nil {
		t.Fatalf("DeleteRecord failed: %v", err)
	}
	if _, ok := p.GetRecord(slot); ok {
		t.Fatal("expected GetRecord to report the slot as gone after delete")
	}
	if p.FreeSpace() != freeBefore {
		t.Fatalf("FreeSpace() changed on delete: got %d, want unchanged %d", p.FreeSpace(), freeBefore)
	}
	if err := p.DeleteRecord(slot); err == nil {
		t.Fatal("expected deleting an already-deleted slot to fail")
	}
}

func TestUpdateRecordInPlaceOnlyWhenShrinkingOrEqual(t *testing.T) {
	p := New(testPageID(), FlagLeaf)
	slot, _ := p.InsertRecord([]byte("0123456789"))

	if err := p.UpdateRecord(slot, []byte("short")); err != nil {
		t.Fatalf("UpdateRecord (shrink) failed: %v", err)
	}
	got, _ := p.GetRecord(slot)
	if string(got) != "short" {
		t.Fatalf("GetRecord() = %q, want %q", got, "short")
	}

	if err := p.UpdateRecord(slot, []byte("this is way too long")); err == nil {
		t.Fatal("expected growing update to fail")
	}
}

func TestRoundTripThroughBytes(t *testing.T) {
	p := New(primitives.PageID{TableID: 1, PageNum: 5}, FlagLeaf)
	p.InsertRecord([]byte("roundtrip"))

	buf := append([]byte(nil), p.Bytes()...)
	p2, err := FromBytes(buf)
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}
	if p2.PageNum() != 5 {
		t.Fatalf("PageNum() = %d, want 5", p2.PageNum())
	}
	got, ok := p2.GetRecord(0)
	if !ok || string(got) != "roundtrip" {
		t.Fatalf("GetRecord() = %q, %v; want %q, true", got, ok, "roundtrip")
	}
}

func TestFromBytesRejectsWrongLength(t *testing.T) {
	if _, err := FromBytes(make([]byte, 100)); err == nil {
		t.Fatal("expected an error for a buffer of the wrong length")
	}
}
