package compress_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-zipio/zipsource/source"
	"github.com/go-zipio/zipsource/source/compress"
	"github.com/go-zipio/zipsource/source/sourcetest"
)

func readAll(t *testing.T, s *source.Source) []byte {
	t.Helper()
	require.NoError(t, s.Open())
	defer func() { require.NoError(t, s.Close()) }()

	var out bytes.Buffer
	buf := make([]byte, 64)
	for {
		n, err := s.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
		}
		require.NoError(t, err)
		if n == 0 {
			break
		}
	}
	return out.Bytes()
}

// scenario 3: compression round-trip.
func TestDeflateRoundTrip(t *testing.T) {
	input := []byte(strings.Repeat("ABCDE", 1000))

	leaf := sourcetest.New(sourcetest.Options{Data: input})
	compressed, err := compress.Compress(leaf, compress.MethodDeflate, compress.Options{})
	require.NoError(t, err)

	compressedBytes := readAll(t, compressed)

	stat, err := compressed.Stat()
	require.NoError(t, err)
	assert.True(t, stat.CompValid)
	assert.LessOrEqual(t, stat.CompSize, uint64(len(input)))

	innerLeaf := sourcetest.New(sourcetest.Options{Data: compressedBytes})
	decompressed, err := compress.Decompress(innerLeaf, compress.MethodDeflate, compress.Options{})
	require.NoError(t, err)

	out := readAll(t, decompressed)
	assert.Equal(t, input, out)

	dstat, err := decompressed.Stat()
	require.NoError(t, err)
	assert.True(t, dstat.SizeValid)
	assert.EqualValues(t, len(input), dstat.Size)
}

// scenario 4: store shortcut.
func TestStoreShortcutOnTinyInput(t *testing.T) {
	input := []byte("AB")
	leaf := sourcetest.New(sourcetest.Options{Data: input})

	compressed, err := compress.Compress(leaf, compress.MethodDeflate, compress.Options{})
	require.NoError(t, err)

	out := readAll(t, compressed)
	assert.Equal(t, input, out)

	stat, err := compressed.Stat()
	require.NoError(t, err)
	require.True(t, stat.MethodValid)
	assert.EqualValues(t, compress.MethodStore, stat.CompMethod)

	attrs, err := compressed.GetFileAttributes()
	require.NoError(t, err)
	assert.Zero(t, attrs.GeneralPurposeFlags)
}

func TestBzip2CompressUnsupported(t *testing.T) {
	leaf := sourcetest.New(sourcetest.Options{Data: []byte("x")})
	_, err := compress.Compress(leaf, compress.MethodBzip2, compress.Options{})
	require.Error(t, err)
	var srcErr *source.Error
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, source.KindCompressionNotSupported, srcErr.Kind)
}

func TestBzip2DecompressSupported(t *testing.T) {
	assert.True(t, compress.Supported(compress.MethodBzip2, false))
	assert.False(t, compress.Supported(compress.MethodBzip2, true))
}

func TestXZRoundTrip(t *testing.T) {
	input := []byte(strings.Repeat("the quick brown fox ", 200))
	leaf := sourcetest.New(sourcetest.Options{Data: input})

	compressed, err := compress.Compress(leaf, compress.MethodXZ, compress.Options{})
	require.NoError(t, err)
	compressedBytes := readAll(t, compressed)

	innerLeaf := sourcetest.New(sourcetest.Options{Data: compressedBytes})
	decompressed, err := compress.Decompress(innerLeaf, compress.MethodXZ, compress.Options{})
	require.NoError(t, err)
	out := readAll(t, decompressed)
	assert.Equal(t, input, out)
}
