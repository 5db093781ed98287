package ragerr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Unwrap_PreservesOriginalError(t *testing.T) {
	original := errors.New("disk full")
	wrapped := New(ErrCodeIO, "write failed", original)

	require.NotNil(t, wrapped)
	assert.Equal(t, original, errors.Unwrap(wrapped))
	assert.True(t, errors.Is(wrapped, original))
}

func TestError_Is_MatchesByCode(t *testing.T) {
	a := New(ErrCodeWALFull, "ring full", nil)
	b := New(ErrCodeWALFull, "ring full (again)", nil)
	c := New(ErrCodeChecksum, "bad checksum", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestKindAndRetryableDerivation(t *testing.T) {
	cases := []struct {
		code      string
		wantKind  Kind
		retryable bool
		fatal     bool
	}{
		{ErrCodeWALFull, KindWALFull, true, false},
		{ErrCodeWriterContention, KindWriterContention, true, false},
		{ErrCodeChecksum, KindChecksumMismatch, false, true},
		{ErrCodeInvalidTOC, KindInvalidTOC, false, true},
		{ErrCodeFrameNotFound, KindFrameNotFound, false, false},
		{ErrCodeCanceled, KindCanceled, false, false},
	}

	for _, tc := range cases {
		e := New(tc.code, "x", nil)
		assert.Equal(t, tc.wantKind, e.Kind, tc.code)
		assert.Equal(t, tc.retryable, IsRetryable(e), tc.code)
		assert.Equal(t, tc.fatal, IsFatal(e), tc.code)
	}
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), DefaultRetryConfig(), func() error {
		calls++
		return New(ErrCodeFrameNotFound, "nope", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "non-retryable errors must not be retried")
}

func TestRetry_RetriesRetryableUntilSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryConfig{MaxRetries: 10}, func() error {
		calls++
		if calls < 3 {
			return WriterContention("lease held")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_RespectsMaxRetries(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryConfig{MaxRetries: 2}, func() error {
		calls++
		return WALFull("no checkpoint")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls) // initial attempt + 2 retries
}
