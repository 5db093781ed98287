package vector

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Aman-CERP/ragarchive/internal/archive"
)

// vectorBlobVersion is the on-disk format version for CPUEngine.Serialize.
const vectorBlobVersion uint16 = 1

// vectorEncodingFloat32 is the only vector element encoding so far.
const vectorEncodingFloat32 uint8 = 0

// Serialize encodes the engine's rows into the archive's vector blob format
// (spec §6.1): magic, version, encoding, similarity, dimensions, vector
// count, the packed float32 matrix (rows ordered by ascending frame_id for
// a deterministic byte-identical blob across commits of the same state),
// and the parallel frame_id array.
func (e *CPUEngine) Serialize() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	order := e.snapshotRowOrder()
	dim := int(e.dim)
	count := len(order)

	vectorBytes := make([]byte, count*dim*4)
	frameIDBytes := make([]byte, count*8)
	for i, row := range order {
		dst := vectorBytes[i*dim*4 : (i+1)*dim*4]
		src := e.data[row*dim : (row+1)*dim]
		for j, v := range src {
			binary.LittleEndian.PutUint32(dst[j*4:j*4+4], math.Float32bits(v))
		}
		binary.LittleEndian.PutUint64(frameIDBytes[i*8:i*8+8], e.frameIDs[row])
	}

	buf := make([]byte, 0, 4+2+1+1+4+8+8+8+len(vectorBytes)+8+len(frameIDBytes))
	buf = appendU32(buf, archive.VectorBlobMagic)
	buf = appendU16(buf, vectorBlobVersion)
	buf = append(buf, vectorEncodingFloat32)
	buf = append(buf, byte(e.similarity))
	buf = appendU32(buf, e.dim)
	buf = appendU64(buf, uint64(count))
	buf = appendU64(buf, uint64(len(vectorBytes)))
	buf = appendU64(buf, 0) // reserved
	buf = append(buf, vectorBytes...)
	buf = appendU64(buf, uint64(len(frameIDBytes)))
	buf = append(buf, frameIDBytes...)
	return buf, nil
}

// Load replaces the engine's contents with the blob produced by Serialize.
func (e *CPUEngine) Load(blob []byte) error {
	r := &blobReader{buf: blob}

	magic := r.u32()
	if magic != archive.VectorBlobMagic {
		return fmt.Errorf("vector: bad blob magic 0x%x", magic)
	}
	version := r.u16()
	if version != vectorBlobVersion {
		return fmt.Errorf("vector: unsupported blob version %d", version)
	}
	_ = r.u8() // encoding; only float32 exists today
	similarity := Similarity(r.u8())
	dim := r.u32()
	count := r.u64()
	vectorBytesLen := r.u64()
	_ = r.u64() // reserved
	vectorBytes := r.bytes(int(vectorBytesLen))
	frameIDBytesLen := r.u64()
	frameIDBytes := r.bytes(int(frameIDBytesLen))
	if r.err != nil {
		return fmt.Errorf("vector: decode blob: %w", r.err)
	}
	if uint64(len(vectorBytes)) != count*uint64(dim)*4 {
		return fmt.Errorf("vector: vector bytes length mismatch")
	}
	if uint64(len(frameIDBytes)) != count*8 {
		return fmt.Errorf("vector: frame id bytes length mismatch")
	}

	data := make([]float32, count*uint64(dim))
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(vectorBytes[i*4 : i*4+4]))
	}
	frameIDs := make([]uint64, count)
	idToRow := make(map[uint64]int, count)
	for i := range frameIDs {
		id := binary.LittleEndian.Uint64(frameIDBytes[i*8 : i*8+8])
		frameIDs[i] = id
		idToRow[id] = i
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.dim = dim
	e.similarity = similarity
	e.data = data
	e.frameIDs = frameIDs
	e.idToRow = idToRow
	return nil
}

func appendU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

// blobReader is a minimal sequential decoder local to this package, kept
// separate from internal/frame's reader to avoid a cross-package coupling
// for what is otherwise a one-shot format.
type blobReader struct {
	buf []byte
	off int
	err error
}

func (r *blobReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.off+n > len(r.buf) {
		r.err = fmt.Errorf("vector: blob truncated")
		return false
	}
	return true
}

func (r *blobReader) u8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *blobReader) u16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off : r.off+2])
	r.off += 2
	return v
}

func (r *blobReader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off : r.off+4])
	r.off += 4
	return v
}

func (r *blobReader) u64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off : r.off+8])
	r.off += 8
	return v
}

func (r *blobReader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	v := r.buf[r.off : r.off+n]
	r.off += n
	return v
}
