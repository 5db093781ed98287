package archive

import (
	"errors"

	"github.com/Aman-CERP/ragarchive/internal/ragerr"
)

// Sentinel errors for errors.Is matching inside this package; callers at
// the archive boundary should prefer the ragerr.Error wrapping below.
var (
	ErrBadMagic   = errors.New("archive: bad magic number")
	ErrInvalidTOC = errors.New("archive: invalid TOC")
)

// wrapInvalidTOC converts a local format error into the taxonomy's
// invalid_toc kind (spec §7: "TOC checksum or version mismatch").
func wrapInvalidTOC(err error) error {
	return ragerr.Wrap(ragerr.ErrCodeInvalidTOC, err)
}

// wrapChecksum converts a local format error into the taxonomy's
// checksum_mismatch kind.
func wrapChecksum(err error) error {
	return ragerr.Wrap(ragerr.ErrCodeChecksum, err)
}
