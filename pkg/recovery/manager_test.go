package recovery

import (
	"path/filepath"
	"testing"

	"edgesql/pkg/primitives"
	"edgesql/pkg/storage/buffer"
	"edgesql/pkg/storage/record"
	"edgesql/pkg/wal"
)

func openFixture(t *testing.T) (*wal.WAL, *buffer.Pool) {
	t.Helper()
	dir := t.TempDir()

	w, err := wal.Open(filepath.Join(dir, "wal.log"))
	if err != nil {
		t.Fatalf("wal.Open failed: %v", err)
	}
	pool := buffer.New(filepath.Join(dir, "pages"), 16)
	if err := pool.Open(); err != nil {
		t.Fatalf("pool.Open failed: %v", err)
	}
	if err := pool.CreateTableFile(1); err != nil {
		t.Fatalf("CreateTableFile failed: %v", err)
	}
	return w, pool
}

func encodedRow(t *testing.T, text string) []byte {
	t.Helper()
	rec := record.New(1)
	rec.Values[0] = record.TextValue(text)
	return rec.Encode()
}

func TestRecoverReplaysInsertAgainstAFreshPool(t *testing.T) {
	w, pool := openFixture(t)

	payload := encodedRow(t, "hello")
	lsn, err := w.Append(&wal.Record{Type: wal.Insert, TableID: 1, PageID: 0, SlotID: 0, Payload: payload})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	w.Sync()

	mgr := New(w, pool)
	ok, err := mgr.Recover()
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if !ok {
		t.Fatal("Recover reported failure")
	}
	if mgr.Stats().RecordsApplied != 1 {
		t.Fatalf("RecordsApplied = %d, want 1", mgr.Stats().RecordsApplied)
	}
	if mgr.Stats().EndLSN != lsn {
		t.Fatalf("EndLSN = %d, want %d", mgr.Stats().EndLSN, lsn)
	}

	pg, err := pool.GetPage(primitives.PageID{TableID: 1, PageNum: 0})
	if err != nil {
		t.Fatalf("GetPage after recovery failed: %v", err)
	}
	data, ok := pg.GetRecord(0)
	if !ok {
		t.Fatal("expected a live record at slot 0 after recovery")
	}
	decoded, err := record.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Values[0].Str != "hello" {
		t.Fatalf("recovered value = %q, want %q", decoded.Values[0].Str, "hello")
	}
}

func TestRecoverSkipsRecordsAtOrBeforeCheckpoint(t *testing.T) {
	w, pool := openFixture(t)

	w.Append(&wal.Record{Type: wal.Insert, TableID: 1, PageID: 0, SlotID: 0, Payload: encodedRow(t, "before")})
	w.Checkpoint()
	afterLSN, _ := w.Append(&wal.Record{Type: wal.Insert, TableID: 1, PageID: 0, SlotID: 1, Payload: encodedRow(t, "after")})
	w.Sync()

	mgr := New(w, pool)
	ok, err := mgr.Recover()
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if !ok {
		t.Fatal("Recover reported failure")
	}
	if mgr.Stats().StartLSN <= 1 {
		t.Fatalf("StartLSN = %d, expected recovery to start at the checkpoint", mgr.Stats().StartLSN)
	}
	if mgr.Stats().EndLSN != afterLSN {
		t.Fatalf("EndLSN = %d, want %d", mgr.Stats().EndLSN, afterLSN)
	}
}

func TestRecoverIsIdempotentOnInsert(t *testing.T) {
	w, pool := openFixture(t)
	w.Append(&wal.Record{Type: wal.Insert, TableID: 1, PageID: 0, SlotID: 0, Payload: encodedRow(t, "x")})
	w.Sync()

	mgr := New(w, pool)
	if _, err := mgr.Recover(); err != nil {
		t.Fatalf("first Recover failed: %v", err)
	}
	if _, err := mgr.Recover(); err != nil {
		t.Fatalf("second Recover failed: %v", err)
	}
	if mgr.Stats().RecordsSkipped == 0 {
		t.Fatal("expected the second recovery pass to skip the already-applied insert")
	}

	pg, err := pool.GetPage(primitives.PageID{TableID: 1, PageNum: 0})
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if pg.SlotCount() != 1 {
		t.Fatalf("SlotCount() = %d, want 1 (insert must not be replayed twice)", pg.SlotCount())
	}
}

func TestRecoverSkipsStaleUpdateByLSN(t *testing.T) {
	w, pool := openFixture(t)
	w.Append(&wal.Record{Type: wal.Insert, TableID: 1, PageID: 0, SlotID: 0, Payload: encodedRow(t, "v1")})
	updateLSN, _ := w.Append(&wal.Record{Type: wal.Update, TableID: 1, PageID: 0, SlotID: 0, Payload: encodedRow(t, "v2")})
	w.Sync()

	mgr := New(w, pool)
	if _, err := mgr.Recover(); err != nil {
		t.Fatalf("Recover failed: %v", err)
	}

	pg, err := pool.GetPage(primitives.PageID{TableID: 1, PageNum: 0})
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if pg.LSN() != updateLSN {
		t.Fatalf("page LSN = %d, want %d", pg.LSN(), updateLSN)
	}

	// Replaying the same WAL again must not reapply the update (page.LSN
	// already matches or exceeds the record's LSN).
	mgr2 := New(w, pool)
	if _, err := mgr2.Recover(); err != nil {
		t.Fatalf("second Recover failed: %v", err)
	}
	if mgr2.Stats().RecordsSkipped == 0 {
		t.Fatal("expected the replayed update to be skipped as stale")
	}
}

func TestFindLastCheckpointReturnsZeroWhenNoneTaken(t *testing.T) {
	w, pool := openFixture(t)
	w.Append(&wal.Record{Type: wal.Insert, TableID: 1, Payload: []byte("x")})

	mgr := New(w, pool)
	lsn, err := mgr.FindLastCheckpoint()
	if err != nil {
		t.Fatalf("FindLastCheckpoint failed: %v", err)
	}
	if lsn != 0 {
		t.Fatalf("FindLastCheckpoint() = %d, want 0", lsn)
	}
}

func TestNeedsRecoveryReflectsUnappliedRecords(t *testing.T) {
	w, pool := openFixture(t)
	mgr := New(w, pool)

	needs, err := mgr.NeedsRecovery()
	if err != nil {
		t.Fatalf("NeedsRecovery failed: %v", err)
	}
	if needs {
		t.Fatal("a fresh WAL should not need recovery")
	}

	w.Append(&wal.Record{Type: wal.Insert, TableID: 1, Payload: encodedRow(t, "y")})
	needs, err = mgr.NeedsRecovery()
	if err != nil {
		t.Fatalf("NeedsRecovery failed: %v", err)
	}
	if !needs {
		t.Fatal("expected NeedsRecovery to report true with an unapplied insert present")
	}
}
