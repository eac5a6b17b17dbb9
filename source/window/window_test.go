package window_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-zipio/zipsource/source"
	"github.com/go-zipio/zipsource/source/sourcetest"
	"github.com/go-zipio/zipsource/source/window"
)

func data32() []byte {
	b := make([]byte, 32)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

// scenario 1: window over an unseekable lower source.
func TestWindowOverUnseekableLower(t *testing.T) {
	lower := sourcetest.New(sourcetest.Options{Data: data32()}) // READ only

	w, err := window.New(lower, 10, 8, nil, nil)
	require.NoError(t, err)

	require.NoError(t, w.Open())
	buf := make([]byte, 16)
	n, err := w.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, data32()[10:18], buf[:8])

	n, err = w.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	require.NoError(t, w.Close())
}

// scenario 2: window bounds extend past the lower source's actual length.
func TestWindowTruncated(t *testing.T) {
	lower := sourcetest.New(sourcetest.Options{Data: make([]byte, 12)})

	w, err := window.New(lower, 0, 20, nil, nil)
	require.NoError(t, err)

	require.NoError(t, w.Open())
	buf := make([]byte, 20)
	n, err := w.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	_, err = w.Read(buf)
	require.Error(t, err)
	var srcErr *source.Error
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, source.KindEOF, srcErr.Kind)
	require.NoError(t, w.Close())
}

// Window content must be byte-identical to the lower range whether the
// lower source is seekable (real seek) or not (drain emulation).
func TestWindowByteIdenticalSeekableAndNot(t *testing.T) {
	full := data32()

	for _, seekable := range []bool{false, true} {
		lower := sourcetest.New(sourcetest.Options{Data: full, Seekable: seekable})
		w, err := window.New(lower, 5, 10, nil, nil)
		require.NoError(t, err)

		require.NoError(t, w.Open())
		buf := make([]byte, 10)
		n, err := w.Read(buf)
		require.NoError(t, err)
		require.Equal(t, 10, n)
		assert.Equal(t, full[5:15], buf)
		require.NoError(t, w.Close())
	}
}

func TestWindowUnboundedSeekEnd(t *testing.T) {
	full := data32()
	lower := sourcetest.New(sourcetest.Options{Data: full, Seekable: true})

	w, err := window.New(lower, 4, -1, nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.Open())

	require.NoError(t, w.SeekPrimary(source.SeekArgs{Offset: 0, Whence: source.SeekEnd}))
	off, err := w.Tell()
	require.NoError(t, err)
	assert.EqualValues(t, len(full)-4, off)

	require.NoError(t, w.Close())
}

type offsetter struct {
	offset uint64
	err    error
}

func (o offsetter) FileOffset(index uint64) (uint64, error) { return o.offset, o.err }

func TestNewFromEntryTranslatesArchiveOffset(t *testing.T) {
	full := data32()
	lower := sourcetest.New(sourcetest.Options{Data: full, Seekable: true})

	w, err := window.NewFromEntry(lower, 2, 6, nil, nil, offsetter{offset: 8}, 0)
	require.NoError(t, err)
	require.NoError(t, w.Open())

	buf := make([]byte, 6)
	n, err := w.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 6, n)
	assert.Equal(t, full[10:16], buf)
	require.NoError(t, w.Close())
}

func TestNewFromEntryOverflowIsInconsistent(t *testing.T) {
	lower := sourcetest.New(sourcetest.Options{Data: data32()})

	// start+length (=5) plus a huge archive offset wraps past the top of
	// the uint64 range.
	hugeOffset := ^uint64(0) - 2
	_, err := window.NewFromEntry(lower, 0, 5, nil, nil, offsetter{offset: hugeOffset}, 7)
	require.Error(t, err)
	var srcErr *source.Error
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, source.KindInconsistent, srcErr.Kind)
	assert.Equal(t, source.DetailCDirEntryInvalid, srcErr.Detail)
	assert.EqualValues(t, 7, srcErr.Index)
}
