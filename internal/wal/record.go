package wal

import (
	"encoding/binary"
	"fmt"

	"github.com/Aman-CERP/ragarchive/internal/archive"
	"github.com/Aman-CERP/ragarchive/internal/ragerr"
)

// RecordKind tags the payload so the Frame Store's replay loop knows how to
// interpret it.
type RecordKind uint8

const (
	KindPut            RecordKind = 1
	KindSupersede      RecordKind = 2
	KindDelete         RecordKind = 3
	KindStageEmbedding RecordKind = 4
	KindCheckpoint     RecordKind = 5
	// KindWrap is an internal filler record: its payload is unused padding
	// written when a real record would straddle the ring's physical end.
	// Replay recognizes it and jumps its read cursor to offset 0.
	KindWrap RecordKind = 6
	// KindBatch wraps a sub-framed sequence of payloads written by
	// AppendBatch under a single sentinel; replay expands it back into
	// individual records with contiguous sequence numbers.
	KindBatch RecordKind = 7
)

// headerSize is length(4) + kind(1) + reserved(3) + sequence(8).
const headerSize = 16

// footerSize is checksum(4) + sentinel(4).
const footerSize = 8

// minRecordSize is the smallest possible record: header + footer, no
// payload. Nothing smaller can ever be a valid record, which is what makes
// it safe to use as the "not enough room here" threshold during wrap.
const minRecordSize = headerSize + footerSize

// Record is one decoded WAL entry.
type Record struct {
	Sequence uint64
	Kind     RecordKind
	Payload  []byte
}

// encodedSize returns the total on-disk size of a record with this payload
// length.
func encodedSize(payloadLen int) int {
	return headerSize + payloadLen + footerSize
}

// encodeRecord serializes a record into buf, which must be exactly
// encodedSize(len(payload)) bytes.
func encodeRecord(buf []byte, seq uint64, kind RecordKind, payload []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(payload)))
	buf[4] = byte(kind)
	buf[5], buf[6], buf[7] = 0, 0, 0
	binary.LittleEndian.PutUint64(buf[8:16], seq)
	copy(buf[headerSize:headerSize+len(payload)], payload)

	checksum := archive.Checksum32(payload)
	footerOff := headerSize + len(payload)
	binary.LittleEndian.PutUint32(buf[footerOff:footerOff+4], checksum)
	binary.LittleEndian.PutUint32(buf[footerOff+4:footerOff+8], archive.WALSentinel)
}

// decodeRecord parses one record from buf, which must hold at least the
// header. It returns the record and the total number of bytes consumed.
func decodeRecord(buf []byte) (Record, int, error) {
	if len(buf) < headerSize {
		return Record{}, 0, fmt.Errorf("wal: buffer too short for header: %d bytes", len(buf))
	}

	length := binary.LittleEndian.Uint32(buf[0:4])
	kind := RecordKind(buf[4])
	seq := binary.LittleEndian.Uint64(buf[8:16])

	total := encodedSize(int(length))
	if len(buf) < total {
		return Record{}, 0, fmt.Errorf("wal: buffer too short for record body: have %d, need %d", len(buf), total)
	}

	payload := buf[headerSize : headerSize+int(length)]
	footerOff := headerSize + int(length)
	wantChecksum := binary.LittleEndian.Uint32(buf[footerOff : footerOff+4])
	sentinel := binary.LittleEndian.Uint32(buf[footerOff+4 : footerOff+8])

	if sentinel != archive.WALSentinel {
		return Record{}, 0, ragerr.New(ragerr.ErrCodeChecksum, "wal: missing sentinel", nil)
	}
	if gotChecksum := archive.Checksum32(payload); gotChecksum != wantChecksum {
		return Record{}, 0, ragerr.Checksum("wal: record checksum mismatch")
	}

	payloadCopy := make([]byte, len(payload))
	copy(payloadCopy, payload)

	return Record{Sequence: seq, Kind: kind, Payload: payloadCopy}, total, nil
}

// decodeLength reads just the length field out of a record header, without
// requiring the full record body to be available yet.
func decodeLength(header []byte) uint32 {
	return binary.LittleEndian.Uint32(header[0:4])
}

// encodeBatch sub-frames a sequence of payloads as repeated
// `length u32 | payload` pairs, for AppendBatch's single-sentinel
// scatter/gather write.
func encodeBatch(payloads [][]byte) []byte {
	total := 0
	for _, p := range payloads {
		total += 4 + len(p)
	}
	buf := make([]byte, total)
	off := 0
	for _, p := range payloads {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(p)))
		off += 4
		copy(buf[off:off+len(p)], p)
		off += len(p)
	}
	return buf
}

// decodeBatch reverses encodeBatch.
func decodeBatch(buf []byte) ([][]byte, error) {
	var parts [][]byte
	off := 0
	for off < len(buf) {
		if off+4 > len(buf) {
			return nil, fmt.Errorf("wal: truncated batch sub-frame length at offset %d", off)
		}
		length := int(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
		if off+length > len(buf) {
			return nil, fmt.Errorf("wal: truncated batch sub-frame payload at offset %d", off)
		}
		p := make([]byte, length)
		copy(p, buf[off:off+length])
		parts = append(parts, p)
		off += length
	}
	return parts, nil
}
