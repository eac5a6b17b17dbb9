package compress

import (
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// lzmaAlgorithm uses the LZMA1 subpackage of the same ulikunitz/xz
// dependency xzAlgorithm uses — ZIP's LZMA method (14) is the classic
// LZMA1 stream format, not LZMA2 (which the ZIP format reserves a
// separate, rarely-used method number for).
type lzmaAlgorithm struct{}

func (lzmaAlgorithm) Compress(r io.Reader) (io.Reader, error) {
	return pipeCompress(r, func(w io.Writer) (io.WriteCloser, error) {
		return lzma.NewWriter(w)
	})
}

func (lzmaAlgorithm) Decompress(r io.Reader) (io.Reader, error) {
	return lzma.NewReader(r)
}

func (lzmaAlgorithm) VersionNeeded() uint16 { return 63 }

func (lzmaAlgorithm) GeneralPurposeBitFlags() uint16 { return 0 }
