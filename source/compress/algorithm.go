// Package compress implements the compression/decompression layer. Each
// algorithm is expressed as a pair of io.Reader transforms — the
// natural shape for Go's stdlib-style compressors. Compress wraps a
// push-style io.Writer compressor behind an io.Pipe so it can be read
// from a pull-based caller; Decompress wraps the already-pull-based
// io.Reader decompressors directly. The layer (layer.go) drives this by
// treating every Read the pipe goroutine issues against the lower
// source as one refill of its internal buffer.
package compress

import (
	"fmt"
	"io"
)

// Algorithm adapts one ZIP compression method to the layer's read
// loop. Compress/Decompress each take the lower, not-yet-transformed
// byte stream and return a transformed one; callers read the result to
// EOF and never seek it — the layer is primary/stream-read-only.
// VersionNeeded and GeneralPurposeBitFlags mirror the plug-in
// contract's version_needed/general_purpose_bit_flags calls, reported
// through GET_FILE_ATTRIBUTES.
type Algorithm interface {
	Compress(r io.Reader) (io.Reader, error)
	Decompress(r io.Reader) (io.Reader, error)
	VersionNeeded() uint16
	GeneralPurposeBitFlags() uint16
}

// Method is the numeric ZIP compression method identifier (the low
// byte of a central directory entry's compression method field).
// Lookup masks off the encryption bits the same way
// ZIP_CM_ACTUAL does, so Method values here are always the "real"
// method with no encryption indicator mixed in.
type Method int32

const (
	MethodStore   Method = 0
	MethodDeflate Method = 8
	MethodBzip2   Method = 12
	MethodLZMA    Method = 14
	MethodZstd    Method = 93
	MethodXZ      Method = 95

	methodActualMask Method = 0x00ff
)

// Actual masks off everything but the low byte (the encryption bits a
// central directory entry's method field can carry live above it),
// mirroring ZIP_CM_ACTUAL.
func (m Method) Actual() Method {
	return m & methodActualMask
}

var registry = map[Method]struct {
	compress   Algorithm
	decompress Algorithm
}{
	MethodDeflate: {deflateAlgorithm{}, deflateAlgorithm{}},
	MethodBzip2:   {nil, bzip2Algorithm{}}, // no pure-Go bzip2 encoder available
	MethodLZMA:    {lzmaAlgorithm{}, lzmaAlgorithm{}},
	MethodZstd:    {zstdAlgorithm{}, zstdAlgorithm{}},
	MethodXZ:      {xzAlgorithm{}, xzAlgorithm{}},
}

// Lookup returns the Algorithm registered for (method, compress),
// mirroring _zip_get_compression_algorithm's table scan. MethodStore is
// never registered here: a stored entry is read straight off the window
// layer without a compress-layer wrapper at all.
func Lookup(method Method, compress bool) (Algorithm, error) {
	entry, ok := registry[method.Actual()]
	if !ok {
		return nil, fmt.Errorf("compress: method %d not supported", method)
	}
	algo := entry.decompress
	if compress {
		algo = entry.compress
	}
	if algo == nil {
		return nil, fmt.Errorf("compress: method %d not supported for compress=%v", method, compress)
	}
	return algo, nil
}

// Supported answers compression_method_supported(method, compress_flag):
// always true for STORE, otherwise true only if the method table has an
// entry for the requested direction.
func Supported(method Method, compress bool) bool {
	if method.Actual() == MethodStore {
		return true
	}
	_, err := Lookup(method, compress)
	return err == nil
}

// pipeCompress runs newWriter(pw) in a goroutine, copying all of r
// through it and closing both ends when done, turning a push-style
// io.Writer compressor into a pull-style io.Reader. newWriter errors
// are delivered to the pipe reader via CloseWithError.
func pipeCompress(r io.Reader, newWriter func(w io.Writer) (io.WriteCloser, error)) (io.Reader, error) {
	pr, pw := io.Pipe()
	go func() {
		w, err := newWriter(pw)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(w, r); err != nil {
			w.Close()
			pw.CloseWithError(err)
			return
		}
		if err := w.Close(); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()
	return pr, nil
}
