package commit

import (
	"fmt"

	"github.com/Aman-CERP/ragarchive/internal/archive"
	"github.com/Aman-CERP/ragarchive/internal/config"
	"github.com/Aman-CERP/ragarchive/internal/frame"
	"github.com/Aman-CERP/ragarchive/internal/ragerr"
	"github.com/Aman-CERP/ragarchive/internal/wal"
)

// CompactResult holds the freshly written destination archive's open
// handles, ready to be wrapped by a new Coordinator once the caller swaps
// it in for the source path.
type CompactResult struct {
	Archive *archive.Archive
	WAL     *wal.WAL
}

// RewriteLiveSet implements spec §4.D's offline `rewrite_live_set`
// compaction: it writes a fresh archive at destPath containing every frame
// from src (live payloads copied verbatim; dead frames' payloads
// optionally zeroed, but their ids and metadata preserved), carries the
// source's committed lex/vec blobs forward unchanged, and commits once.
// The destination WAL is left empty; committedSeq is carried forward so
// a subsequent put continues the same monotone sequence (spec.md open
// question, decided in DESIGN.md).
func RewriteLiveSet(srcFS *frame.FrameStore, lexBlob, vecBlob []byte, destPath string, walCfg config.WALConfig, zeroDeadPayloads bool, nowMs, committedSeq uint64) (*CompactResult, error) {
	dest, err := archive.Create(destPath, srcFS.Archive().DimensionHint(), uint64(walCfg.SizeBytes), nowMs)
	if err != nil {
		return nil, err
	}

	destStore := frame.NewStore()
	srcArchiveFile := srcFS.Archive().File()

	for _, f := range srcFS.Store().AllFrames() {
		var payload []byte
		if f.Payload.Length > 0 {
			payload = make([]byte, f.Payload.Length)
			if _, err := srcArchiveFile.ReadAt(payload, int64(f.Payload.Offset)); err != nil {
				dest.Close()
				return nil, ragerr.IOError(fmt.Sprintf("read source frame %d payload", f.ID), err)
			}
			if zeroDeadPayloads && !f.Searchable() {
				for i := range payload {
					payload[i] = 0
				}
			}
		}

		newOffset, err := dest.AppendData(payload)
		if err != nil {
			dest.Close()
			return nil, err
		}
		f.Payload = frame.PayloadRef{Offset: newOffset, Length: uint64(len(payload))}
		f.Checksum = archive.Checksum32(payload)
		destStore.LoadCommitted(f)
	}

	lexOffset, err := dest.AppendData(lexBlob)
	if err != nil {
		dest.Close()
		return nil, err
	}
	vecOffset, err := dest.AppendData(vecBlob)
	if err != nil {
		dest.Close()
		return nil, err
	}
	frameLogBlob := destStore.Serialize()
	frameLogOffset, err := dest.AppendData(frameLogBlob)
	if err != nil {
		dest.Close()
		return nil, err
	}

	if err := dest.SyncData(); err != nil {
		dest.Close()
		return nil, err
	}

	toc := archive.TOC{
		LogicalStamp: committedSeq,
		FrameLogManifest: archive.ManifestEntry{
			Offset: frameLogOffset, Length: uint64(len(frameLogBlob)),
			Checksum: archive.Checksum64(frameLogBlob), Aux: committedSeq,
		},
		LexManifest: archive.ManifestEntry{
			Offset: lexOffset, Length: uint64(len(lexBlob)),
			Checksum: archive.Checksum64(lexBlob), Aux: committedSeq,
		},
		VecManifest: archive.ManifestEntry{
			Offset: vecOffset, Length: uint64(len(vecBlob)),
			Checksum: archive.Checksum64(vecBlob), Aux: committedSeq,
		},
		WAL: dest.LiveTOC().WAL,
	}
	if err := dest.PublishTOC(toc); err != nil {
		dest.Close()
		return nil, err
	}

	destWAL := wal.New(dest.File(), int64(toc.WAL.Offset), int64(toc.WAL.Size), walCfg)
	destWAL.SetCommittedSeq(committedSeq)
	destWAL.RecordCheckpoint()

	return &CompactResult{Archive: dest, WAL: destWAL}, nil
}
