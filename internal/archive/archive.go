package archive

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/ragarchive/internal/ragerr"
)

// Archive is an open handle on the single-file store: the super-header plus
// the live TOC, and the underlying *os.File for data-region and WAL access.
// All reads and writes of the data region and WAL go through Archive; it
// does not itself know how to interpret frame/lex/vec bytes.
type Archive struct {
	mu     sync.RWMutex
	file   *os.File
	path   string
	header SuperHeader

	// dataEnd is the first byte past the highest-extent artifact recorded
	// in the live TOC; AppendData grows it as the commit coordinator stages
	// new frame/lex/vec bytes. Never shrinks, so space from a superseded
	// commit's orphaned artifacts is abandoned, not reclaimed, until a
	// rewrite_live_set compaction starts a fresh file.
	dataEnd uint64
	walOff  uint64

	watcher     *fsnotify.Watcher
	externalRev uint64 // bumped on an observed external write notification
}

// DefaultWALSize is the ring size reserved for a freshly created archive
// when the caller does not specify one.
const DefaultWALSize = 16 << 20 // 16 MiB

// Create initializes a new archive file at path with the given vector
// dimension hint (0 if unknown until the first embedding is staged) and a
// WAL ring of walSize bytes immediately following the data region.
func Create(path string, dimensionHint uint32, walSize uint64, nowMs uint64) (*Archive, error) {
	if walSize == 0 {
		walSize = DefaultWALSize
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, ragerr.IOError(fmt.Sprintf("create archive %s", path), err)
	}

	header := NewSuperHeader(nowMs, dimensionHint)
	walOffset := uint64(SuperHeaderSize)
	header.TOCSlotA.WAL = WALRegion{Offset: walOffset, Size: walSize}
	header.TOCSlotB.WAL = WALRegion{Offset: walOffset, Size: walSize}

	buf := header.Encode()
	if _, err := f.WriteAt(buf[:], 0); err != nil {
		f.Close()
		os.Remove(path)
		return nil, ragerr.IOError("write super-header", err)
	}
	if err := f.Truncate(int64(walOffset + walSize)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, ragerr.IOError("preallocate archive", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, ragerr.IOError("sync new archive", err)
	}

	return &Archive{file: f, path: path, header: header, dataEnd: uint64(SuperHeaderSize), walOff: walOffset}, nil
}

// Open reads the super-header of an existing archive file, selecting the
// live TOC slot per the open protocol in spec §4.A: prefer the slot marked
// live when its checksum is valid, falling back to the other slot.
func Open(path string) (*Archive, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, ragerr.IOError(fmt.Sprintf("open archive %s", path), err)
	}

	buf := make([]byte, SuperHeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		f.Close()
		return nil, ragerr.IOError("read super-header", err)
	}

	header, err := DecodeSuperHeader(buf)
	if err != nil {
		f.Close()
		return nil, wrapInvalidTOC(err)
	}

	a := &Archive{file: f, path: path, header: header}
	if err := a.selectLiveTOC(); err != nil {
		f.Close()
		return nil, err
	}
	a.recomputeDataEndLocked()

	return a, nil
}

// recomputeDataEndLocked derives dataEnd/walOff from the live TOC's
// manifests, so AppendData resumes past whatever was previously committed.
// Callers must hold a.mu or be in single-threaded construction.
func (a *Archive) recomputeDataEndLocked() {
	live := a.header.LiveSlot()
	end := uint64(SuperHeaderSize)
	for _, m := range []ManifestEntry{live.FrameLogManifest, live.LexManifest, live.VecManifest} {
		if extent := m.Offset + m.Length; extent > end {
			end = extent
		}
	}
	a.dataEnd = end
	a.walOff = live.WAL.Offset
}

// AppendData writes buf to the data region at the current write cursor and
// advances it, returning the offset the commit coordinator should record in
// the pending manifest. It refuses to write into the WAL region.
func (a *Archive) AppendData(buf []byte) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	offset := a.dataEnd
	end := offset + uint64(len(buf))
	if a.walOff != 0 && end > a.walOff {
		return 0, ragerr.CapacityExceeded(fmt.Sprintf("data region write of %d bytes at offset %d would overrun WAL region at %d", len(buf), offset, a.walOff))
	}

	if _, err := a.file.WriteAt(buf, int64(offset)); err != nil {
		return 0, ragerr.IOError("write data region", err)
	}
	a.dataEnd = end
	return offset, nil
}

// SyncData fsyncs the data region writes staged by AppendData, per commit
// Phase 2 step 2 ("fsync the data region") ahead of the TOC flip.
func (a *Archive) SyncData() error {
	if err := a.file.Sync(); err != nil {
		return ragerr.IOError("sync data region", err)
	}
	return nil
}

// selectLiveTOC prefers the slot the header marks live, falling back to the
// other slot (and flipping LiveTOC to match) when the preferred slot's
// logical_stamp is not the newer of the two or it otherwise fails
// validation upstream in DecodeSuperHeader.
func (a *Archive) selectLiveTOC() error {
	live := a.header.LiveSlot()
	other := a.header.OtherSlot()

	if other.LogicalStamp > live.LogicalStamp {
		// The slot marked live is stale relative to the other slot; this can
		// happen if a crash landed between writing the new TOC and flipping
		// LiveTOC. Prefer the newer stamp.
		a.header.LiveTOC ^= 1
	}
	return nil
}

// LiveTOC returns the currently selected committed table of contents.
func (a *Archive) LiveTOC() TOC {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.header.LiveSlot()
}

// DimensionHint returns the vector dimension recorded at creation, or 0 if
// none was known yet.
func (a *Archive) DimensionHint() uint32 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.header.DimensionHint
}

// File returns the underlying file handle for data-region and WAL access.
func (a *Archive) File() *os.File {
	return a.file
}

// Path returns the archive's file path.
func (a *Archive) Path() string {
	return a.path
}

// PublishTOC writes a new TOC into the non-live slot, syncs it, then flips
// LiveTOC and syncs the header again — the two-step write the Commit
// Coordinator relies on for atomic publish (spec §4.D).
func (a *Archive) PublishTOC(next TOC) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	targetSlotB := a.header.LiveTOC == 0 // write into the currently non-live slot
	if targetSlotB {
		a.header.TOCSlotB = next
	} else {
		a.header.TOCSlotA = next
	}

	buf := a.header.Encode()
	// Write only the affected TOC slot region first; this keeps the
	// previous live slot and its LiveTOC byte untouched until the flip.
	offset := tocSlotAOffset
	if targetSlotB {
		offset = tocSlotBOffset
	}
	if _, err := a.file.WriteAt(buf[offset:offset+TOCSlotSize], int64(offset)); err != nil {
		return ragerr.IOError("write TOC slot", err)
	}
	if err := a.file.Sync(); err != nil {
		return ragerr.IOError("sync TOC slot", err)
	}

	// Flip the live pointer.
	if targetSlotB {
		a.header.LiveTOC = 1
	} else {
		a.header.LiveTOC = 0
	}
	if _, err := a.file.WriteAt([]byte{a.header.LiveTOC}, 0x14); err != nil {
		return ragerr.IOError("flip live TOC pointer", err)
	}
	if err := a.file.Sync(); err != nil {
		return ragerr.IOError("sync live TOC pointer", err)
	}

	a.recomputeDataEndLocked()
	return nil
}

// WatchExternalWrites starts an advisory fsnotify watch on the archive
// file. Notifications are best-effort cache-invalidation hints for the
// search engine cache (spec.md never requires them for correctness: the
// engine cache always re-resolves its source key on the next search).
func (a *Archive) WatchExternalWrites() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return ragerr.IOError("start archive file watcher", err)
	}
	if err := w.Add(a.path); err != nil {
		w.Close()
		return ragerr.IOError("watch archive file", err)
	}

	a.watcher = w
	go a.drainWatcherEvents()
	return nil
}

func (a *Archive) drainWatcherEvents() {
	for {
		a.mu.RLock()
		w := a.watcher
		a.mu.RUnlock()
		if w == nil {
			return
		}
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Chmod) != 0 {
				a.mu.Lock()
				a.externalRev++
				a.mu.Unlock()
			}
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		}
	}
}

// ExternalWriteRevision returns a counter that increases each time a write
// notification for the archive file arrives; callers detect a new external
// write by comparing it against a value they read earlier.
func (a *Archive) ExternalWriteRevision() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.externalRev
}

// Close releases the archive's file handle and stops its watcher, if any.
func (a *Archive) Close() error {
	a.mu.Lock()
	w := a.watcher
	a.watcher = nil
	a.mu.Unlock()

	if w != nil {
		w.Close()
	}
	return a.file.Close()
}
