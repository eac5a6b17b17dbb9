package compress

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// zstdAlgorithm implements the ZSTD method on top of klauspost/compress's
// zstd reader/writer pair.
type zstdAlgorithm struct{}

func (zstdAlgorithm) Compress(r io.Reader) (io.Reader, error) {
	return pipeCompress(r, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w)
	})
}

func (zstdAlgorithm) Decompress(r io.Reader) (io.Reader, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

// VersionNeeded reports the same value libzip uses for the community
// WinZip compression methods APPNOTE has no dedicated version entry
// for.
func (zstdAlgorithm) VersionNeeded() uint16 { return 63 }

func (zstdAlgorithm) GeneralPurposeBitFlags() uint16 { return 0 }
