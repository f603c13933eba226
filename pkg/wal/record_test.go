package wal

import (
	"bytes"
	"testing"

	"edgesql/pkg/primitives"
)

func TestSerializeDecodeRoundTrip(t *testing.T) {
	r := &Record{
		LSN:     42,
		Type:    Update,
		TableID: primitives.TableID(7),
		PageID:  primitives.PageNumber(3),
		SlotID:  primitives.SlotID(2),
		Payload: []byte("payload bytes"),
	}
	buf := r.Serialize()

	decoded, length, crc, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader failed: %v", err)
	}
	if int(length) != len(buf) {
		t.Fatalf("length = %d, want %d", length, len(buf))
	}
	if err := decoded.attachPayload(buf[HeaderSize:], crc); err != nil {
		t.Fatalf("attachPayload failed: %v", err)
	}
	if decoded.LSN != r.LSN || decoded.Type != r.Type || decoded.TableID != r.TableID {
		t.Fatalf("decoded header mismatch: %+v", decoded)
	}
	if !bytes.Equal(decoded.Payload, r.Payload) {
		t.Fatalf("Payload = %q, want %q", decoded.Payload, r.Payload)
	}
}

func TestAttachPayloadRejectsBadCRC(t *testing.T) {
	r := &Record{Type: Insert, Payload: []byte("hello")}
	buf := r.Serialize()
	_, _, crc, _ := DecodeHeader(buf)

	if err := r.attachPayload([]byte("tampered payload"), crc); err == nil {
		t.Fatal("expected a CRC mismatch error")
	}
}
