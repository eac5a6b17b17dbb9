package compress

import (
	"compress/bzip2"
	"errors"
	"io"
)

// bzip2Algorithm decompresses with the standard library's compress/bzip2
// — the one standard-library use in this package (see DESIGN.md): no
// pure-Go bzip2 encoder is in scope here, so BZIP2 compression is left
// unsupported (algorithm.go's registry wires a nil compress Algorithm
// for it) while decompression, which the standard library does
// provide, is wired in.
type bzip2Algorithm struct{}

var errBzip2CompressUnsupported = errors.New("compress: bzip2 encoding not supported")

func (bzip2Algorithm) Compress(r io.Reader) (io.Reader, error) {
	return nil, errBzip2CompressUnsupported
}

func (bzip2Algorithm) Decompress(r io.Reader) (io.Reader, error) {
	return bzip2.NewReader(r), nil
}

// VersionNeeded is APPNOTE's version-needed-to-extract value for
// BZIP2 (4.6).
func (bzip2Algorithm) VersionNeeded() uint16 { return 46 }

func (bzip2Algorithm) GeneralPurposeBitFlags() uint16 { return 0 }
