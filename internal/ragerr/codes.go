// Package ragerr provides structured error handling for the retrieval engine.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: storage/format errors (archive, TOC, WAL)
//   - 2XX: encoding/validation errors (dimension, capacity, checksum)
//   - 3XX: concurrency errors (writer lease, cancellation)
//   - 4XX: not-found / lookup errors
//   - 5XX: provider / collaborator errors
package ragerr

// Kind is the error taxonomy from the spec: io, invalid_toc, encoding_error,
// capacity_exceeded, wal_full, frame_not_found, writer_contention,
// checksum_mismatch, provider_rejected, canceled.
type Kind string

const (
	KindIO               Kind = "io"
	KindInvalidTOC       Kind = "invalid_toc"
	KindEncoding         Kind = "encoding_error"
	KindCapacityExceeded Kind = "capacity_exceeded"
	KindWALFull          Kind = "wal_full"
	KindFrameNotFound    Kind = "frame_not_found"
	KindWriterContention Kind = "writer_contention"
	KindChecksumMismatch Kind = "checksum_mismatch"
	KindProviderRejected Kind = "provider_rejected"
	KindCanceled         Kind = "canceled"
)

// Severity mirrors the teacher's error severity ladder.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Error codes organized by category.
const (
	// Storage/format errors (100-199)
	ErrCodeInvalidTOC     = "ERR_101_INVALID_TOC"
	ErrCodeWALFull        = "ERR_102_WAL_FULL"
	ErrCodeChecksum       = "ERR_103_CHECKSUM_MISMATCH"
	ErrCodeIO             = "ERR_104_IO"
	ErrCodeArchiveClosed  = "ERR_105_ARCHIVE_CLOSED"

	// Encoding/validation errors (200-299)
	ErrCodeDimensionMismatch = "ERR_201_DIMENSION_MISMATCH"
	ErrCodeCapacityExceeded  = "ERR_202_CAPACITY_EXCEEDED"
	ErrCodeBadMagic          = "ERR_203_BAD_MAGIC"
	ErrCodeSupersedeCycle    = "ERR_204_SUPERSEDE_CYCLE"
	ErrCodeReadOnly          = "ERR_205_READ_ONLY"

	// Concurrency errors (300-399)
	ErrCodeWriterContention = "ERR_301_WRITER_CONTENTION"
	ErrCodeCanceled         = "ERR_302_CANCELED"

	// Not-found errors (400-499)
	ErrCodeFrameNotFound = "ERR_401_FRAME_NOT_FOUND"

	// Provider errors (500-599)
	ErrCodeProviderRejected = "ERR_501_PROVIDER_REJECTED"
	ErrCodeInternal         = "ERR_502_INTERNAL"
)

// kindFromCode extracts the taxonomy Kind from a code's numeric band.
func kindFromCode(code string) Kind {
	switch code {
	case ErrCodeInvalidTOC:
		return KindInvalidTOC
	case ErrCodeWALFull:
		return KindWALFull
	case ErrCodeChecksum:
		return KindChecksumMismatch
	case ErrCodeDimensionMismatch, ErrCodeBadMagic, ErrCodeSupersedeCycle, ErrCodeReadOnly:
		return KindEncoding
	case ErrCodeCapacityExceeded:
		return KindCapacityExceeded
	case ErrCodeWriterContention:
		return KindWriterContention
	case ErrCodeCanceled:
		return KindCanceled
	case ErrCodeFrameNotFound:
		return KindFrameNotFound
	case ErrCodeProviderRejected:
		return KindProviderRejected
	default:
		return KindIO
	}
}

// severityFromKind determines severity based on taxonomy kind.
func severityFromKind(k Kind) Severity {
	switch k {
	case KindChecksumMismatch, KindInvalidTOC:
		return SeverityFatal
	case KindWALFull, KindWriterContention:
		return SeverityWarning
	case KindCanceled:
		return SeverityInfo
	default:
		return SeverityError
	}
}

// isRetryableKind reports whether the kind is retried implicitly by the
// caller. Per spec §7, wal_full is the only kind retried implicitly (after
// auto-commit); writer_contention is retried explicitly by the caller with
// backoff (see Retry in retry.go).
func isRetryableKind(k Kind) bool {
	switch k {
	case KindWALFull, KindWriterContention:
		return true
	default:
		return false
	}
}
