// This file implements the compression/decompression layer's Source
// construction and read loop. sourceReader feeds an Algorithm's
// io.Reader transform one lower-source chunk at a time, and each call
// the transform makes back into sourceReader.Read is one refill.
package compress

import (
	"io"

	"github.com/go-zipio/zipsource/internal/metrics"
	"github.com/go-zipio/zipsource/internal/xlog"
	"github.com/go-zipio/zipsource/source"
)

// Options configures a compress/decompress layer.
type Options struct {
	// CompressionFlags are kept with the layer's options but not
	// interpreted; STAT and GET_FILE_ATTRIBUTES do not report them.
	CompressionFlags int
	Metrics          *metrics.Recorder
}

// stream is the per-reader state: one per primary mode and one per
// OPEN_STREAM, each with its own algorithm instance and input buffer,
// never shared.
type stream struct {
	reader io.Reader // transformed reader (Algorithm.Compress/Decompress's output)

	buffer    []byte // first chunk cached from lower, for the store-shortcut
	firstRead int    // -1 = no input consumed yet
	canStore  bool
	isStored  bool

	endOfInput  bool
	endOfStream bool
	size        uint64

	latchedErr error
}

func newStream() *stream {
	return &stream{firstRead: -1}
}

// layer is the compress/decompress Source's UserData.
type layer struct {
	method   Method
	algo     Algorithm
	compress bool
	opts     Options

	primary *stream
}

// New builds a Source that compresses (compress=true) or decompresses
// (compress=false) lower using method. Construction fails
// COMPRESSION_NOT_SUPPORTED if the method/direction pair has no
// registered Algorithm, mirroring compression_source_new's lookup
// failure path.
func New(lower *source.Source, method Method, compress bool, opts Options) (*source.Source, error) {
	if lower == nil {
		return nil, &source.Error{Kind: source.KindInval}
	}
	algo, err := Lookup(method, compress)
	if err != nil {
		return nil, &source.Error{Kind: source.KindCompressionNotSupported, Cause: err}
	}

	l := &layer{method: method, algo: algo, compress: compress, opts: opts}

	caps := source.CapOpen | source.CapRead | source.CapClose | source.CapStat |
		source.CapGetFileAttributes | source.CapSupports | source.CapReopen |
		source.CapOpenStream | source.CapReadStream | source.CapCloseStream

	s := source.New(lower, l.callback, l, caps)
	s.SetMetrics(opts.Metrics)
	return s, nil
}

// Compress returns a Source that compresses lower's bytes with method.
func Compress(lower *source.Source, method Method, opts Options) (*source.Source, error) {
	return New(lower, method, true, opts)
}

// Decompress returns a Source that decompresses lower's bytes, which
// were encoded with method.
func Decompress(lower *source.Source, method Method, opts Options) (*source.Source, error) {
	return New(lower, method, false, opts)
}

// storeEligible reports whether st is a candidate for the
// store-shortcut: only compress mode on DEFLATE, the format's default
// method, ever prefers a verbatim copy over its own output.
func (l *layer) storeEligible() bool {
	return l.compress && l.method.Actual() == MethodDeflate
}

// callback is the layer's single Callback, dispatched through the
// Source it's attached to.
func (l *layer) callback(s *source.Source, streamID int64, args *source.Args, cmd source.Cmd) (int64, error) {
	lower := s.Lower

	switch cmd {
	case source.CmdOpen:
		st := newStream()
		if err := l.open(lower, -1, st); err != nil {
			return -1, err
		}
		l.primary = st
		return 0, nil

	case source.CmdOpenStream:
		st := newStream()
		if err := l.open(lower, streamID, st); err != nil {
			return -1, err
		}
		args.UserStream = st
		return 0, nil

	case source.CmdRead:
		n, err := l.read(l.primary, args.Data)
		return int64(n), err

	case source.CmdReadStream:
		st := args.UserStream.(*stream)
		n, err := l.read(st, args.Data)
		return int64(n), err

	case source.CmdClose, source.CmdCloseStream:
		return 0, nil

	case source.CmdStat:
		if args.Stat != nil {
			*args.Stat = l.stat(l.primary)
		}
		return 0, nil

	case source.CmdGetFileAttributes:
		if args.Attributes != nil {
			*args.Attributes = l.attributes(l.primary)
		}
		return 0, nil

	case source.CmdSupports:
		return int64(s.Capabilities), nil

	case source.CmdFree:
		return 0, nil

	default:
		return -1, &source.Error{Kind: source.KindOpNotSupp}
	}
}

// open wires a fresh Algorithm transform over a sourceReader bound to
// streamID. It does not query lower's STAT or GET_FILE_ATTRIBUTES.
func (l *layer) open(lower *source.Source, streamID int64, st *stream) error {
	sr := &sourceReader{lower: lower, streamID: streamID, st: st, track: l.storeEligible()}

	var rdr io.Reader
	var err error
	if l.compress {
		rdr, err = l.algo.Compress(sr)
	} else {
		rdr, err = l.algo.Decompress(sr)
	}
	if err != nil {
		xlog.Errorf("compress: open method=%d compress=%v: %v", l.method, l.compress, err)
		return &source.Error{Kind: source.KindInternal, Cause: err}
	}
	st.reader = rdr
	if l.storeEligible() {
		st.canStore = true
	}
	return nil
}

// read pulls from the transformed reader until data is full or end of
// stream, applying the store-shortcut when the whole input turned out
// to fit in one buffer-sized chunk and didn't actually shrink.
func (l *layer) read(st *stream, data []byte) (int, error) {
	if st.latchedErr != nil {
		return 0, st.latchedErr
	}
	if len(data) == 0 || st.endOfStream {
		return 0, nil
	}

	off := 0
	for off < len(data) {
		n, err := st.reader.Read(data[off:])
		off += n

		if err == io.EOF {
			st.endOfStream = true
			if st.firstRead < 0 {
				st.latchedErr = &source.Error{Kind: source.KindInternal}
				return 0, st.latchedErr
			}
			if st.canStore && st.firstRead <= off {
				copy(data, st.buffer[:st.firstRead])
				st.isStored = true
				st.size = uint64(st.firstRead)
				if l.opts.Metrics != nil {
					l.opts.Metrics.ObserveCompressionRatio(int64(st.firstRead), int64(st.firstRead))
				}
				return st.firstRead, nil
			}
			break
		}
		if err != nil {
			st.latchedErr = &source.Error{Kind: source.KindInternal, Cause: err}
			break
		}
		if n == 0 {
			break
		}
	}

	if off > 0 {
		st.canStore = false
		st.size += uint64(off)
		return off, nil
	}
	if st.latchedErr != nil {
		return 0, st.latchedErr
	}
	return 0, nil
}

// stat fills in comp_size/comp_method (compress mode) or size
// (decompress mode), both only meaningful once end-of-stream has been
// observed.
func (l *layer) stat(st *stream) source.Stat {
	var out source.Stat
	if st == nil {
		return out
	}
	if l.compress {
		if st.endOfStream {
			method := l.method.Actual()
			if st.isStored {
				method = MethodStore
			}
			out.CompMethod = int32(method)
			out.CompSize = st.size
			out.CompValid = true
			out.MethodValid = true
		}
	} else {
		out.CompMethod = int32(MethodStore)
		out.MethodValid = true
		if st.endOfStream {
			out.Size = st.size
			out.SizeValid = true
		}
	}
	return out
}

// attributes reports version_needed/general_purpose_bit_flags, zeroed
// out once the store-shortcut has taken over for this stream.
func (l *layer) attributes(st *stream) source.FileAttributes {
	attrs := source.FileAttributes{VersionNeeded: l.algo.VersionNeeded()}
	if st != nil && st.isStored {
		attrs.GeneralPurposeFlags = 0
	} else {
		attrs.GeneralPurposeFlags = l.algo.GeneralPurposeBitFlags()
	}
	return attrs
}

// sourceReader adapts a lower Source (primary or one of its streams)
// into an io.Reader, recording the refill bookkeeping the store-
// shortcut needs: the first non-empty chunk is cached as a candidate,
// and any further chunk disqualifies it.
type sourceReader struct {
	lower    *source.Source
	streamID int64
	st       *stream
	track    bool
}

func (sr *sourceReader) Read(buf []byte) (int, error) {
	n, err := lowerRead(sr.lower, sr.streamID, buf)
	if err != nil {
		return n, err
	}
	if n == 0 {
		sr.st.endOfInput = true
		if sr.st.firstRead < 0 {
			sr.st.firstRead = 0
		}
		return 0, io.EOF
	}

	// first_read is tracked regardless of direction — it also guards the
	// "algorithm ended with no input consumed" internal-error check in
	// layer.read. Only the store-shortcut bookkeeping (the cached buffer
	// and can_store) is compress-only.
	if sr.st.firstRead < 0 {
		sr.st.firstRead = n
		if sr.track {
			if cap(sr.st.buffer) < n {
				sr.st.buffer = make([]byte, n)
			} else {
				sr.st.buffer = sr.st.buffer[:n]
			}
			copy(sr.st.buffer, buf[:n])
		}
	} else if sr.track {
		sr.st.canStore = false
	}
	return n, nil
}

func lowerRead(lower *source.Source, streamID int64, buf []byte) (int, error) {
	if streamID < 0 {
		return lower.Read(buf)
	}
	return lower.ReadStream(streamID, buf)
}
