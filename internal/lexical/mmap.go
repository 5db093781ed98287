package lexical

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// ReadOnlyIndex is an mmap-backed index opened directly against a region
// of the archive file (spec §4.F "deserialize_read_only"): the raw bytes
// are never copied into a second in-process buffer, only the derived
// term/posting lookup tables are built over them. All mutating calls
// fail with ErrReadOnly.
type ReadOnlyIndex struct {
	*Index
	region mmap.MMap
}

// OpenReadOnly mmaps f[offset:offset+length] and parses it as a lexical
// blob. The returned index must be closed to release the mapping.
func OpenReadOnly(f *os.File, offset, length int64) (*ReadOnlyIndex, error) {
	region, err := mmap.MapRegion(f, int(length), mmap.RDONLY, 0, offset)
	if err != nil {
		return nil, fmt.Errorf("lexical: mmap region: %w", err)
	}

	decoded, err := decodeBlob(region)
	if err != nil {
		_ = region.Unmap()
		return nil, err
	}

	ix := &Index{analyzer: newAnalyzer(DefaultStopWords), readOnly: true}
	ix.installDecoded(decoded)

	return &ReadOnlyIndex{Index: ix, region: region}, nil
}

// Close releases the backing mmap region.
func (r *ReadOnlyIndex) Close() error {
	return r.region.Unmap()
}
