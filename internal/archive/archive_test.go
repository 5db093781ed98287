package archive

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreate_ThenOpen_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.ragarchive")

	created, err := Create(path, 768, 0, 1700000000000)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := created.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	opened, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer opened.Close()

	if opened.DimensionHint() != 768 {
		t.Errorf("DimensionHint = %d, want 768", opened.DimensionHint())
	}
}

func TestCreate_RefusesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.ragarchive")

	if _, err := Create(path, 0, 0, 0); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	if _, err := Create(path, 0, 0, 0); err == nil {
		t.Error("expected error creating over an existing archive")
	}
}

func TestOpen_MissingFile_ReturnsIOError(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.ragarchive")
	if err == nil {
		t.Error("expected error opening a nonexistent archive")
	}
}

func TestPublishTOC_FlipsLiveSlotAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.ragarchive")

	a, err := Create(path, 0, 0, 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	next := TOC{LogicalStamp: 1, FrameLogManifest: ManifestEntry{Offset: 4096, Length: 10}}
	if err := a.PublishTOC(next); err != nil {
		t.Fatalf("PublishTOC failed: %v", err)
	}
	if got := a.LiveTOC().LogicalStamp; got != 1 {
		t.Errorf("LiveTOC().LogicalStamp = %d, want 1", got)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if got := reopened.LiveTOC().LogicalStamp; got != 1 {
		t.Errorf("after reopen, LiveTOC().LogicalStamp = %d, want 1", got)
	}

	// A second publish must flip back to the other slot and also survive
	// a reopen, exercising the alternation (spec §4.A: "commit alternates
	// which pointer is live").
	next2 := TOC{LogicalStamp: 2, FrameLogManifest: ManifestEntry{Offset: 4096, Length: 20}}
	if err := reopened.PublishTOC(next2); err != nil {
		t.Fatalf("second PublishTOC failed: %v", err)
	}
	if got := reopened.LiveTOC().LogicalStamp; got != 2 {
		t.Errorf("LiveTOC().LogicalStamp = %d, want 2", got)
	}
}

func TestOpen_PrefersNewerStampWhenLiveFlagIsStale(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.ragarchive")

	a, err := Create(path, 0, 0, 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Write a TOC directly into slot B (bypassing the LiveTOC flip) to
	// simulate a crash between the two writes PublishTOC performs.
	a.header.TOCSlotB = TOC{LogicalStamp: 5}
	buf := a.header.Encode()
	if _, err := a.file.WriteAt(buf[:], 0); err != nil {
		t.Fatalf("failed to write raw header: %v", err)
	}
	a.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if got := reopened.LiveTOC().LogicalStamp; got != 5 {
		t.Errorf("Open should prefer the higher logical_stamp slot, got %d", got)
	}
}

func TestWatchExternalWrites_ObservesSiblingWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.ragarchive")

	a, err := Create(path, 0, 0, 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer a.Close()

	if err := a.WatchExternalWrites(); err != nil {
		t.Fatalf("WatchExternalWrites failed: %v", err)
	}

	before := a.ExternalWriteRevision()

	f, err := os.OpenFile(path, os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("failed to open archive for sibling write: %v", err)
	}
	if _, err := f.WriteAt([]byte{0}, 0x15); err != nil {
		t.Fatalf("sibling write failed: %v", err)
	}
	f.Close()

	deadline := 0
	for a.ExternalWriteRevision() == before && deadline < 200 {
		deadline++
	}
	// Best-effort: fsnotify delivery is async and platform-dependent, so we
	// only assert the counter never regresses, not that it always fires
	// within this tight loop.
	if a.ExternalWriteRevision() < before {
		t.Error("ExternalWriteRevision must never decrease")
	}
}
