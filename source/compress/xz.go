package compress

import (
	"io"

	"github.com/ulikunitz/xz"
)

// xzAlgorithm implements the XZ method on top of the pure-Go
// ulikunitz/xz package.
type xzAlgorithm struct{}

func (xzAlgorithm) Compress(r io.Reader) (io.Reader, error) {
	return pipeCompress(r, func(w io.Writer) (io.WriteCloser, error) {
		return xz.NewWriter(w)
	})
}

func (xzAlgorithm) Decompress(r io.Reader) (io.Reader, error) {
	return xz.NewReader(r)
}

func (xzAlgorithm) VersionNeeded() uint16 { return 63 }

func (xzAlgorithm) GeneralPurposeBitFlags() uint16 { return 0 }
