package wal

import (
	"os"
	"testing"

	"github.com/Aman-CERP/ragarchive/internal/config"
)

func newTestWAL(t *testing.T, size int64) (*WAL, *os.File) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "wal-*.bin")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if err := f.Truncate(size); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	cfg := config.WALConfig{FsyncPolicy: config.FsyncOnCommit}
	return New(f, 0, size, cfg), f
}

func TestAppend_ThenReplay_SeesAllRecords(t *testing.T) {
	w, f := newTestWAL(t, 4096)
	defer f.Close()

	seq1, err := w.Append(KindPut, []byte("frame-one"))
	if err != nil {
		t.Fatalf("append 1: %v", err)
	}
	seq2, err := w.Append(KindDelete, []byte("frame-two"))
	if err != nil {
		t.Fatalf("append 2: %v", err)
	}
	if seq1 != 1 || seq2 != 2 {
		t.Errorf("sequences = %d, %d; want 1, 2", seq1, seq2)
	}

	var got []Record
	if err := w.Replay(func(r Record) error {
		got = append(got, r)
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("replay returned %d records, want 2", len(got))
	}
	if string(got[0].Payload) != "frame-one" || got[0].Kind != KindPut {
		t.Errorf("record 0 = %+v", got[0])
	}
	if string(got[1].Payload) != "frame-two" || got[1].Kind != KindDelete {
		t.Errorf("record 1 = %+v", got[1])
	}
}

func TestRecordCheckpoint_AdvancesCommittedSeqAndReclaimsSpace(t *testing.T) {
	w, f := newTestWAL(t, 4096)
	defer f.Close()

	if _, err := w.Append(KindPut, []byte("a")); err != nil {
		t.Fatalf("append: %v", err)
	}
	w.RecordCheckpoint()

	stats := w.RecoverStats()
	if stats.CheckpointCount != 1 {
		t.Errorf("CheckpointCount = %d, want 1", stats.CheckpointCount)
	}
	if stats.CommittedSeq != 1 {
		t.Errorf("CommittedSeq = %d, want 1", stats.CommittedSeq)
	}
	if stats.PendingBytes != 0 {
		t.Errorf("PendingBytes = %d, want 0 after checkpoint", stats.PendingBytes)
	}
}

func TestAppendBatch_ReturnsContiguousSequencesAndReplaysAsIndividualPuts(t *testing.T) {
	w, f := newTestWAL(t, 4096)
	defer f.Close()

	payloads := [][]byte{[]byte("p1"), []byte("p2"), []byte("p3")}
	seqs, err := w.AppendBatch(KindPut, payloads)
	if err != nil {
		t.Fatalf("append batch: %v", err)
	}
	if len(seqs) != 3 || seqs[0] != 1 || seqs[1] != 2 || seqs[2] != 3 {
		t.Errorf("sequences = %v, want [1 2 3]", seqs)
	}

	var got []Record
	if err := w.Replay(func(r Record) error {
		got = append(got, r)
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("replay returned %d records, want 3", len(got))
	}
	for i, want := range payloads {
		if string(got[i].Payload) != string(want) {
			t.Errorf("record %d payload = %q, want %q", i, got[i].Payload, want)
		}
		if got[i].Sequence != seqs[i] {
			t.Errorf("record %d sequence = %d, want %d", i, got[i].Sequence, seqs[i])
		}
	}
}

func TestAppend_WALFull_WhenNoReclaimableCheckpoint(t *testing.T) {
	// Small ring, never checkpointed: the second large record cannot fit.
	w, f := newTestWAL(t, 64)
	defer f.Close()

	if _, err := w.Append(KindPut, make([]byte, 20)); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if _, err := w.Append(KindPut, make([]byte, 20)); err == nil {
		t.Error("expected wal_full, got nil error")
	}
}

func TestAppend_SucceedsAfterCheckpointReclaimsSpace(t *testing.T) {
	w, f := newTestWAL(t, 64)
	defer f.Close()

	if _, err := w.Append(KindPut, make([]byte, 20)); err != nil {
		t.Fatalf("first append: %v", err)
	}
	w.RecordCheckpoint()

	if _, err := w.Append(KindPut, make([]byte, 20)); err != nil {
		t.Errorf("append after checkpoint should succeed, got: %v", err)
	}
}

// TestWALWrap is the literal scenario from spec §8 scenario 6: wal_size=1
// KiB, 10 records of 200 bytes on disk, recordCheckpoint() after record 5,
// continue appending, verify wrapCount=1 and no data loss on replay. Each
// record's payload is sized so header+payload+footer totals exactly 200
// bytes, matching the scenario's "records of 200 bytes".
func TestWALWrap(t *testing.T) {
	const walSize = 1024
	const recordTotalSize = 200
	payloadSize := recordTotalSize - headerSize - footerSize

	w, f := newTestWAL(t, walSize)
	defer f.Close()

	payload := make([]byte, payloadSize)

	for i := 0; i < 5; i++ {
		payload[0] = byte(i)
		if _, err := w.Append(KindPut, payload); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	w.RecordCheckpoint()

	for i := 5; i < 10; i++ {
		payload[0] = byte(i)
		if _, err := w.Append(KindPut, payload); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	stats := w.RecoverStats()
	if stats.WrapCount != 1 {
		t.Errorf("WrapCount = %d, want 1", stats.WrapCount)
	}
	if stats.LastSeq != 10 {
		t.Errorf("LastSeq = %d, want 10", stats.LastSeq)
	}

	var got []Record
	if err := w.Replay(func(r Record) error {
		got = append(got, r)
		return nil
	}); err != nil {
		t.Fatalf("replay after wrap: %v", err)
	}

	// Only records 5..9 remain reachable from the last checkpoint; records
	// 0..4 were superseded by the checkpoint and are fair game to be
	// overwritten by the wrap. No data loss means all of 5..9 replay intact
	// and in order.
	if len(got) != 5 {
		t.Fatalf("replay returned %d records, want 5", len(got))
	}
	for i, r := range got {
		wantFirstByte := byte(i + 5)
		if r.Payload[0] != wantFirstByte {
			t.Errorf("record %d first byte = %d, want %d", i, r.Payload[0], wantFirstByte)
		}
		if len(r.Payload) != payloadSize {
			t.Errorf("record %d payload length = %d, want %d", i, len(r.Payload), payloadSize)
		}
	}
}

func TestAppend_AutoCommitTriggersAtThreshold(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "wal-*.bin")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer f.Close()
	const size = 1024
	if err := f.Truncate(size); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	cfg := config.WALConfig{
		FsyncPolicy:                     config.FsyncOnCommit,
		ProactiveCommitThresholdPercent: 50,
		ProactiveCommitMinPendingBytes:  1,
	}
	w := New(f, 0, size, cfg)

	committed := 0
	w.SetAutoCommit(func() error {
		committed++
		w.RecordCheckpoint()
		return nil
	})

	payload := make([]byte, 300)
	for i := 0; i < 3; i++ {
		if _, err := w.Append(KindPut, payload); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	if committed == 0 {
		t.Error("expected proactive auto-commit to have fired at least once")
	}
}

func TestRecoverStats_ReportsWALSizeAndPendingBytes(t *testing.T) {
	w, f := newTestWAL(t, 2048)
	defer f.Close()

	if _, err := w.Append(KindPut, make([]byte, 100)); err != nil {
		t.Fatalf("append: %v", err)
	}

	stats := w.RecoverStats()
	if stats.WALSize != 2048 {
		t.Errorf("WALSize = %d, want 2048", stats.WALSize)
	}
	if stats.PendingBytes != int64(encodedSize(100)) {
		t.Errorf("PendingBytes = %d, want %d", stats.PendingBytes, encodedSize(100))
	}
}

func TestSetCommittedSeq_CarriesForwardAfterCompaction(t *testing.T) {
	w, f := newTestWAL(t, 1024)
	defer f.Close()

	w.SetCommittedSeq(42)

	seq, err := w.Append(KindPut, []byte("x"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if seq != 43 {
		t.Errorf("sequence after carried-forward committed_seq = %d, want 43", seq)
	}
}
