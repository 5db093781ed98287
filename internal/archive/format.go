// Package archive implements the on-disk layout of the retrieval store: a
// single file holding a super-header, two alternating table-of-contents
// slots, a data region for frame log segments and index blobs, and a
// trailing WAL ring. See internal/wal for the ring writer itself.
package archive

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

const (
	// SuperHeaderMagic identifies a valid archive file.
	SuperHeaderMagic uint32 = 0x53325657 // "WV2S"

	// VectorBlobMagic identifies a valid serialized vector index blob.
	VectorBlobMagic uint32 = 0x56325657 // "WV2V"

	// LexicalBlobMagic identifies a valid serialized lexical index blob.
	LexicalBlobMagic uint32 = 0x4c325657 // "WV2L"

	// WALSentinel is written immediately after every WAL record.
	WALSentinel uint32 = 0x5741454E // "WAEN"

	// SuperHeaderSize is the fixed on-disk size of the super-header.
	SuperHeaderSize = 4096

	// TOCSlotSize is the fixed on-disk size of one TOC slot.
	TOCSlotSize = 256

	tocSlotAOffset = 0x20
	tocSlotBOffset = 0x120

	// FormatMajorVersion and FormatMinorVersion are written to every new
	// archive's super-header.
	FormatMajorVersion uint16 = 1
	FormatMinorVersion uint16 = 0
)

// ManifestEntry locates and authenticates one artifact in the data region.
type ManifestEntry struct {
	Offset   uint64
	Length   uint64
	Checksum uint64
	Aux      uint64 // logical_stamp for per-artifact staleness checks
}

const manifestEntrySize = 8 * 4

func (m ManifestEntry) encode(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], m.Offset)
	binary.LittleEndian.PutUint64(b[8:16], m.Length)
	binary.LittleEndian.PutUint64(b[16:24], m.Checksum)
	binary.LittleEndian.PutUint64(b[24:32], m.Aux)
}

func decodeManifestEntry(b []byte) ManifestEntry {
	return ManifestEntry{
		Offset:   binary.LittleEndian.Uint64(b[0:8]),
		Length:   binary.LittleEndian.Uint64(b[8:16]),
		Checksum: binary.LittleEndian.Uint64(b[16:24]),
		Aux:      binary.LittleEndian.Uint64(b[24:32]),
	}
}

// WALRegion records the WAL ring's offset and size within the file.
type WALRegion struct {
	Offset uint64
	Size   uint64
}

// TOC is one table-of-contents slot: the committed state as of LogicalStamp.
type TOC struct {
	LogicalStamp     uint64
	FrameLogManifest ManifestEntry
	LexManifest      ManifestEntry
	VecManifest      ManifestEntry
	WAL              WALRegion
}

// Encode serializes t into a fixed TOCSlotSize-byte buffer, with the trailing
// checksum covering everything before it.
func (t TOC) Encode() [TOCSlotSize]byte {
	var buf [TOCSlotSize]byte
	off := 0
	binary.LittleEndian.PutUint64(buf[off:off+8], t.LogicalStamp)
	off += 8
	t.FrameLogManifest.encode(buf[off : off+manifestEntrySize])
	off += manifestEntrySize
	t.LexManifest.encode(buf[off : off+manifestEntrySize])
	off += manifestEntrySize
	t.VecManifest.encode(buf[off : off+manifestEntrySize])
	off += manifestEntrySize
	binary.LittleEndian.PutUint64(buf[off:off+8], t.WAL.Offset)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:off+8], t.WAL.Size)
	off += 8

	checksum := xxhash.Sum64(buf[:off])
	binary.LittleEndian.PutUint64(buf[off:off+8], checksum)
	return buf
}

// DecodeTOC parses a TOC slot and verifies its trailing checksum.
func DecodeTOC(buf []byte) (TOC, error) {
	if len(buf) < TOCSlotSize {
		return TOC{}, fmt.Errorf("archive: TOC slot too short: %d bytes", len(buf))
	}

	checksumOffset := TOCSlotSize - 8
	wantChecksum := binary.LittleEndian.Uint64(buf[checksumOffset : checksumOffset+8])
	gotChecksum := xxhash.Sum64(buf[:checksumOffset])
	if wantChecksum != gotChecksum {
		return TOC{}, fmt.Errorf("%w: TOC checksum mismatch", ErrInvalidTOC)
	}

	off := 0
	t := TOC{}
	t.LogicalStamp = binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	t.FrameLogManifest = decodeManifestEntry(buf[off : off+manifestEntrySize])
	off += manifestEntrySize
	t.LexManifest = decodeManifestEntry(buf[off : off+manifestEntrySize])
	off += manifestEntrySize
	t.VecManifest = decodeManifestEntry(buf[off : off+manifestEntrySize])
	off += manifestEntrySize
	t.WAL.Offset = binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	t.WAL.Size = binary.LittleEndian.Uint64(buf[off : off+8])

	return t, nil
}

// SuperHeader is the fixed-size leading region of an archive file.
type SuperHeader struct {
	Magic          uint32
	MajorVersion   uint16
	MinorVersion   uint16
	CreatedMs      uint64
	DimensionHint  uint32
	LiveTOC        uint8
	TOCSlotA       TOC
	TOCSlotB       TOC
}

// NewSuperHeader returns the header for a freshly created archive, with
// both TOC slots holding an empty (zero-stamp) committed state.
func NewSuperHeader(createdMs uint64, dimensionHint uint32) SuperHeader {
	empty := TOC{}
	return SuperHeader{
		Magic:         SuperHeaderMagic,
		MajorVersion:  FormatMajorVersion,
		MinorVersion:  FormatMinorVersion,
		CreatedMs:     createdMs,
		DimensionHint: dimensionHint,
		LiveTOC:       0,
		TOCSlotA:      empty,
		TOCSlotB:      empty,
	}
}

// Encode serializes h into a SuperHeaderSize-byte buffer.
func (h SuperHeader) Encode() [SuperHeaderSize]byte {
	var buf [SuperHeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0x00:0x04], h.Magic)
	binary.LittleEndian.PutUint16(buf[0x04:0x06], h.MajorVersion)
	binary.LittleEndian.PutUint16(buf[0x06:0x08], h.MinorVersion)
	binary.LittleEndian.PutUint64(buf[0x08:0x10], h.CreatedMs)
	binary.LittleEndian.PutUint32(buf[0x10:0x14], h.DimensionHint)
	buf[0x14] = h.LiveTOC

	slotA := h.TOCSlotA.Encode()
	copy(buf[tocSlotAOffset:tocSlotAOffset+TOCSlotSize], slotA[:])
	slotB := h.TOCSlotB.Encode()
	copy(buf[tocSlotBOffset:tocSlotBOffset+TOCSlotSize], slotB[:])

	return buf
}

// DecodeSuperHeader parses and validates the magic number of a super-header.
func DecodeSuperHeader(buf []byte) (SuperHeader, error) {
	if len(buf) < SuperHeaderSize {
		return SuperHeader{}, fmt.Errorf("archive: super-header too short: %d bytes", len(buf))
	}

	h := SuperHeader{}
	h.Magic = binary.LittleEndian.Uint32(buf[0x00:0x04])
	if h.Magic != SuperHeaderMagic {
		return SuperHeader{}, fmt.Errorf("%w: got magic 0x%x, want 0x%x", ErrBadMagic, h.Magic, SuperHeaderMagic)
	}
	h.MajorVersion = binary.LittleEndian.Uint16(buf[0x04:0x06])
	h.MinorVersion = binary.LittleEndian.Uint16(buf[0x06:0x08])
	h.CreatedMs = binary.LittleEndian.Uint64(buf[0x08:0x10])
	h.DimensionHint = binary.LittleEndian.Uint32(buf[0x10:0x14])
	h.LiveTOC = buf[0x14]

	slotA, errA := DecodeTOC(buf[tocSlotAOffset : tocSlotAOffset+TOCSlotSize])
	slotB, errB := DecodeTOC(buf[tocSlotBOffset : tocSlotBOffset+TOCSlotSize])

	// Both slots are zero on a freshly created archive, which decodes fine
	// (checksum over zeros is still a valid checksum); only propagate a
	// decode error if neither slot comes back usable.
	if errA != nil && errB != nil {
		return SuperHeader{}, fmt.Errorf("archive: both TOC slots invalid: a=%v b=%v", errA, errB)
	}
	h.TOCSlotA = slotA
	h.TOCSlotB = slotB

	return h, nil
}

// LiveSlot returns the TOC slot currently marked live.
func (h SuperHeader) LiveSlot() TOC {
	if h.LiveTOC == 1 {
		return h.TOCSlotB
	}
	return h.TOCSlotA
}

// OtherSlot returns the non-live TOC slot (the fallback on checksum failure
// or the write target for the next commit).
func (h SuperHeader) OtherSlot() TOC {
	if h.LiveTOC == 1 {
		return h.TOCSlotA
	}
	return h.TOCSlotB
}

// Checksum64 computes the non-cryptographic checksum used throughout the
// archive format (manifest entries, WAL records).
func Checksum64(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// Checksum32 is the truncated 32-bit form used for WAL record checksums,
// where the frame is smaller and a 32-bit field is sufficient.
func Checksum32(data []byte) uint32 {
	return uint32(xxhash.Sum64(data))
}
