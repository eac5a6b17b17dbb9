package compress

import (
	"io"

	"github.com/klauspost/compress/flate"
)

// deflateAlgorithm uses klauspost/compress's deflate implementation, a
// drop-in faster replacement for the standard library's compress/flate.
type deflateAlgorithm struct{}

func (deflateAlgorithm) Compress(r io.Reader) (io.Reader, error) {
	return pipeCompress(r, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})
}

func (deflateAlgorithm) Decompress(r io.Reader) (io.Reader, error) {
	return flate.NewReader(r), nil
}

// VersionNeeded is APPNOTE's version-needed-to-extract value for
// DEFLATE (2.0).
func (deflateAlgorithm) VersionNeeded() uint16 { return 20 }

// GeneralPurposeBitFlags reports no deflate-specific bits; the
// "normal"/"maximum"/"fast" sub-flags APPNOTE defines for bits 1-2 are
// a tuning concern this layer doesn't expose.
func (deflateAlgorithm) GeneralPurposeBitFlags() uint16 { return 0 }
