package frame

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Aman-CERP/ragarchive/internal/archive"
)

// EncodePut serializes a newly allocated frame plus its raw payload into the
// WAL `put` record payload (spec §4.C). The archive payload bytes travel
// inline in the WAL record until commit moves them into the data region.
func EncodePut(f *Frame, payload []byte) []byte {
	buf := make([]byte, 0, 64+len(f.Kind)+len(payload)+metaSize(f.Metadata))

	buf = appendU64(buf, f.ID)
	buf = appendU64(buf, f.TimestampMs)
	buf = appendU64(buf, f.ParentID)
	buf = append(buf, byte(f.Role))
	buf = append(buf, byte(f.Encoding))
	buf = appendString16(buf, f.Kind)

	if f.HasSearchText {
		buf = append(buf, 1)
		buf = appendString32(buf, f.SearchText)
	} else {
		buf = append(buf, 0)
	}

	buf = appendMeta(buf, f.Metadata)

	checksum := archive.Checksum32(payload)
	buf = appendU32(buf, checksum)
	buf = appendString32(buf, string(payload))

	return buf
}

// DecodePut reverses EncodePut, returning the frame (status always active,
// payload ref left zero pending commit) and the raw payload bytes.
func DecodePut(buf []byte) (*Frame, []byte, error) {
	r := &reader{buf: buf}

	f := &Frame{}
	f.ID = r.u64()
	f.TimestampMs = r.u64()
	f.ParentID = r.u64()
	f.Role = Role(r.u8())
	f.Encoding = Encoding(r.u8())
	f.Kind = r.string16()

	if r.u8() == 1 {
		f.HasSearchText = true
		f.SearchText = r.string32()
	}

	f.Metadata = r.meta()
	f.Checksum = r.u32()
	payload := []byte(r.string32())

	if r.err != nil {
		return nil, nil, fmt.Errorf("frame: decode put record: %w", r.err)
	}
	if got := archive.Checksum32(payload); got != f.Checksum {
		return nil, nil, fmt.Errorf("frame: put record payload checksum mismatch for frame %d", f.ID)
	}
	f.Status = StatusActive
	return f, payload, nil
}

// EncodeSupersede serializes a `supersede(old_id, new_id)` WAL record.
func EncodeSupersede(oldID, newID uint64) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], oldID)
	binary.LittleEndian.PutUint64(buf[8:16], newID)
	return buf
}

// DecodeSupersede reverses EncodeSupersede.
func DecodeSupersede(buf []byte) (oldID, newID uint64, err error) {
	if len(buf) < 16 {
		return 0, 0, fmt.Errorf("frame: supersede record too short: %d bytes", len(buf))
	}
	return binary.LittleEndian.Uint64(buf[0:8]), binary.LittleEndian.Uint64(buf[8:16]), nil
}

// EncodeDelete serializes a `delete(id)` WAL record.
func EncodeDelete(id uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, id)
	return buf
}

// DecodeDelete reverses EncodeDelete.
func DecodeDelete(buf []byte) (uint64, error) {
	if len(buf) < 8 {
		return 0, fmt.Errorf("frame: delete record too short: %d bytes", len(buf))
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// EncodeStageEmbedding serializes a `stage_embedding` WAL record.
func EncodeStageEmbedding(e *Embedding) []byte {
	buf := make([]byte, 0, 21+len(e.Vector)*4)
	buf = appendU64(buf, e.FrameID)
	buf = appendU32(buf, e.Dimension)
	if e.Normalized {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendU64(buf, e.Sequence)
	for _, v := range e.Vector {
		buf = appendU32(buf, math.Float32bits(v))
	}
	return buf
}

// DecodeStageEmbedding reverses EncodeStageEmbedding.
func DecodeStageEmbedding(buf []byte) (*Embedding, error) {
	r := &reader{buf: buf}
	e := &Embedding{}
	e.FrameID = r.u64()
	e.Dimension = r.u32()
	e.Normalized = r.u8() == 1
	e.Sequence = r.u64()
	if r.err != nil {
		return nil, fmt.Errorf("frame: decode stage_embedding header: %w", r.err)
	}
	e.Vector = make([]float32, e.Dimension)
	for i := range e.Vector {
		e.Vector[i] = math.Float32frombits(r.u32())
	}
	if r.err != nil {
		return nil, fmt.Errorf("frame: decode stage_embedding vector: %w", r.err)
	}
	return e, nil
}

// frameLogMagic/frameLogVersion identify the committed frame-log blob
// written to the archive's data region at commit (distinct from the WAL
// `put` record wire format, which carries the payload inline; the frame
// log instead carries the committed PayloadRef pointing back into the
// data region).
const (
	frameLogMagic   uint32 = 0x574c4632 // "WLF2"
	frameLogVersion uint16 = 1
)

// EncodeFrameLog serializes every frame in frames into the committed
// frame-log blob (spec §4.A "frame log segments" manifest).
func EncodeFrameLog(frames []*Frame) []byte {
	buf := make([]byte, 0, 16+len(frames)*96)
	buf = appendU32(buf, frameLogMagic)
	var vb [2]byte
	vb[0], vb[1] = byte(frameLogVersion), byte(frameLogVersion>>8)
	buf = append(buf, vb[:]...)
	buf = appendU64(buf, uint64(len(frames)))

	for _, f := range frames {
		buf = appendU64(buf, f.ID)
		buf = appendU64(buf, f.TimestampMs)
		buf = append(buf, byte(f.Status))
		buf = append(buf, byte(f.Role))
		buf = append(buf, byte(f.Encoding))
		buf = appendU64(buf, f.ParentID)
		buf = appendU64(buf, f.Supersedes)
		buf = appendU64(buf, f.SupersededBy)
		buf = appendString16(buf, f.Kind)
		if f.HasSearchText {
			buf = append(buf, 1)
			buf = appendString32(buf, f.SearchText)
		} else {
			buf = append(buf, 0)
		}
		buf = appendU64(buf, f.Payload.Offset)
		buf = appendU64(buf, f.Payload.Length)
		buf = appendMeta(buf, f.Metadata)
		buf = appendU32(buf, f.Checksum)
	}
	return buf
}

// DecodeFrameLog reverses EncodeFrameLog.
func DecodeFrameLog(buf []byte) ([]*Frame, error) {
	r := &reader{buf: buf}
	magic := r.u32()
	if r.err != nil {
		return nil, fmt.Errorf("frame: decode frame log header: %w", r.err)
	}
	if magic != frameLogMagic {
		return nil, fmt.Errorf("frame: bad frame log magic 0x%x", magic)
	}
	_ = r.u8() // version lo
	_ = r.u8() // version hi
	count := r.u64()
	if r.err != nil {
		return nil, fmt.Errorf("frame: decode frame log count: %w", r.err)
	}

	frames := make([]*Frame, 0, count)
	for i := uint64(0); i < count; i++ {
		f := &Frame{}
		f.ID = r.u64()
		f.TimestampMs = r.u64()
		f.Status = Status(r.u8())
		f.Role = Role(r.u8())
		f.Encoding = Encoding(r.u8())
		f.ParentID = r.u64()
		f.Supersedes = r.u64()
		f.SupersededBy = r.u64()
		f.Kind = r.string16()
		if r.u8() == 1 {
			f.HasSearchText = true
			f.SearchText = r.string32()
		}
		f.Payload.Offset = r.u64()
		f.Payload.Length = r.u64()
		f.Metadata = r.meta()
		f.Checksum = r.u32()
		if r.err != nil {
			return nil, fmt.Errorf("frame: decode frame log entry %d: %w", i, r.err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// --- small binary helpers ---

func metaSize(m map[string]string) int {
	n := 2
	for k, v := range m {
		n += 2 + len(k) + 2 + len(v)
	}
	return n
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendString16(buf []byte, s string) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(len(s)))
	buf = append(buf, b[:]...)
	return append(buf, s...)
}

func appendString32(buf []byte, s string) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(len(s)))
	buf = append(buf, b[:]...)
	return append(buf, s...)
}

func appendMeta(buf []byte, m map[string]string) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(len(m)))
	buf = append(buf, b[:]...)
	for k, v := range m {
		buf = appendString16(buf, k)
		buf = appendString16(buf, v)
	}
	return buf
}

// reader sequentially decodes fixed/variable-width fields, latching the
// first error so callers can check it once at the end.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.off+n > len(r.buf) {
		r.err = fmt.Errorf("buffer too short: need %d bytes at offset %d, have %d", n, r.off, len(r.buf))
		return false
	}
	return true
}

func (r *reader) u8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off : r.off+4])
	r.off += 4
	return v
}

func (r *reader) u64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off : r.off+8])
	r.off += 8
	return v
}

func (r *reader) string16() string {
	if !r.need(2) {
		return ""
	}
	l := binary.LittleEndian.Uint16(r.buf[r.off : r.off+2])
	r.off += 2
	if !r.need(int(l)) {
		return ""
	}
	s := string(r.buf[r.off : r.off+int(l)])
	r.off += int(l)
	return s
}

func (r *reader) string32() string {
	if !r.need(4) {
		return ""
	}
	l := binary.LittleEndian.Uint32(r.buf[r.off : r.off+4])
	r.off += 4
	if !r.need(int(l)) {
		return ""
	}
	s := string(r.buf[r.off : r.off+int(l)])
	r.off += int(l)
	return s
}

func (r *reader) meta() map[string]string {
	if !r.need(2) {
		return nil
	}
	count := binary.LittleEndian.Uint16(r.buf[r.off : r.off+2])
	r.off += 2
	if count == 0 {
		return nil
	}
	m := make(map[string]string, count)
	for i := 0; i < int(count); i++ {
		k := r.string16()
		v := r.string16()
		if r.err != nil {
			return m
		}
		m[k] = v
	}
	return m
}
