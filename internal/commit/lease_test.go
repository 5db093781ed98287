package commit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriterLeaseTryAcquireExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.ragarchive")

	a := NewWriterLease(path)
	require.NoError(t, a.TryAcquire())
	defer a.Release()

	b := NewWriterLease(path)
	err := b.TryAcquire()
	require.Error(t, err)
}

func TestWriterLeaseReleaseAllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.ragarchive")

	a := NewWriterLease(path)
	require.NoError(t, a.TryAcquire())
	require.NoError(t, a.Release())

	b := NewWriterLease(path)
	require.NoError(t, b.TryAcquire())
	defer b.Release()
}

func TestWriterLeaseAcquireTimesOutOnContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.ragarchive")

	a := NewWriterLease(path)
	require.NoError(t, a.TryAcquire())
	defer a.Release()

	b := NewWriterLease(path)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := b.Acquire(ctx, 10*time.Millisecond)
	require.Error(t, err)
}
