package lexical

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/Aman-CERP/ragarchive/internal/archive"
)

const lexicalBlobVersion uint16 = 1

// Serialize encodes the full index snapshot: config, the doc-length
// table, and per-term postings with per-(term,frame) frequencies (spec
// §4.F "serialize"). Postings bitmaps themselves are not persisted
// directly; Load rebuilds them from the frequency table, which is the
// only representation both Serialize and the mmap-backed reader need.
func (ix *Index) Serialize() ([]byte, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	docIDs := make([]uint64, 0, len(ix.docLength))
	for id := range ix.docLength {
		docIDs = append(docIDs, id)
	}
	sort.Slice(docIDs, func(i, j int) bool { return docIDs[i] < docIDs[j] })

	terms := make([]string, 0, len(ix.postings))
	for term := range ix.postings {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	buf := make([]byte, 0, 64)
	buf = appendU32(buf, archive.LexicalBlobMagic)
	buf = appendU16(buf, lexicalBlobVersion)
	buf = appendU64(buf, math.Float64bits(ix.k1))
	buf = appendU64(buf, math.Float64bits(ix.b))
	buf = appendU64(buf, uint64(len(docIDs)))
	buf = appendU64(buf, ix.totalTokens)

	for _, id := range docIDs {
		buf = appendU64(buf, id)
		buf = appendU32(buf, uint32(ix.docLength[id]))
	}

	buf = appendU32(buf, uint32(len(terms)))
	for _, term := range terms {
		tf := ix.termFreq[term]
		frameIDs := make([]uint64, 0, len(tf))
		for id := range tf {
			frameIDs = append(frameIDs, id)
		}
		sort.Slice(frameIDs, func(i, j int) bool { return frameIDs[i] < frameIDs[j] })

		buf = appendU16(buf, uint16(len(term)))
		buf = append(buf, term...)
		buf = appendU32(buf, uint32(len(frameIDs)))
		for _, id := range frameIDs {
			buf = appendU64(buf, id)
			buf = appendU32(buf, tf[id])
		}
	}

	return buf, nil
}

// Load replaces the index's contents with a blob produced by Serialize.
func (ix *Index) Load(blob []byte) error {
	decoded, err := decodeBlob(blob)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.readOnly = false
	ix.installDecoded(decoded)
	return nil
}

// decodedIndex is the parsed form of a serialized blob, shared by Load
// and the mmap-backed read-only open path.
type decodedIndex struct {
	k1, b       float64
	totalTokens uint64
	docLength   map[uint64]int
	termFreq    map[string]map[uint64]uint32
}

func decodeBlob(blob []byte) (*decodedIndex, error) {
	r := &blobReader{buf: blob}

	magic := r.u32()
	if magic != archive.LexicalBlobMagic {
		return nil, fmt.Errorf("lexical: bad blob magic 0x%x", magic)
	}
	version := r.u16()
	if version != lexicalBlobVersion {
		return nil, fmt.Errorf("lexical: unsupported blob version %d", version)
	}
	k1 := math.Float64frombits(r.u64())
	b := math.Float64frombits(r.u64())
	docCount := r.u64()
	totalTokens := r.u64()

	docLength := make(map[uint64]int, docCount)
	for i := uint64(0); i < docCount; i++ {
		id := r.u64()
		length := r.u32()
		docLength[id] = int(length)
	}

	termCount := r.u32()
	termFreq := make(map[string]map[uint64]uint32, termCount)
	for i := uint32(0); i < termCount; i++ {
		termLen := r.u16()
		term := string(r.bytes(int(termLen)))
		postingCount := r.u32()
		tf := make(map[uint64]uint32, postingCount)
		for j := uint32(0); j < postingCount; j++ {
			id := r.u64()
			freq := r.u32()
			tf[id] = freq
		}
		termFreq[term] = tf
	}

	if r.err != nil {
		return nil, fmt.Errorf("lexical: decode blob: %w", r.err)
	}

	return &decodedIndex{k1: k1, b: b, totalTokens: totalTokens, docLength: docLength, termFreq: termFreq}, nil
}

// installDecoded rebuilds postings bitmaps and docTerms from a decoded
// blob. Callers must hold ix.mu.
func (ix *Index) installDecoded(d *decodedIndex) {
	ix.k1 = d.k1
	ix.b = d.b
	ix.totalTokens = d.totalTokens
	ix.docLength = d.docLength
	ix.termFreq = d.termFreq
	ix.postings = make(map[string]*roaring64.Bitmap, len(d.termFreq))
	ix.docTerms = make(map[uint64][]string, len(d.docLength))

	for term, tf := range d.termFreq {
		bm := roaring64.New()
		for frameID := range tf {
			bm.Add(frameID)
			ix.docTerms[frameID] = append(ix.docTerms[frameID], term)
		}
		ix.postings[term] = bm
	}
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

// blobReader is a minimal sequential decoder, kept local to avoid coupling
// to internal/frame's or internal/vector's identical helper.
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
		r.err = fmt.Errorf("lexical: blob truncated")
		return false
	}
	return true
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
