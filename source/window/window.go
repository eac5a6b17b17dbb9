// Package window implements the window layer: a read-only [start,end)
// (or [start,∞) for an unbounded window) view over a lower source. It
// is how an archive entry's compressed data is carved out of the
// single byte stream backing a whole ZIP file.
package window

import (
	"github.com/go-zipio/zipsource/internal/xlog"
	"github.com/go-zipio/zipsource/source"
)

// ArchiveOffsetter translates a central-directory entry index into its
// archive-relative byte offset, used to fold an entry's position in
// the whole archive into the window's start.
type ArchiveOffsetter interface {
	FileOffset(index uint64) (uint64, error)
}

// drainBufSize is the scratch buffer size used to emulate a seek by
// reading and discarding bytes, for lower sources that can't seek.
const drainBufSize = 32 * 1024

// streamState is the per-stream-mode equivalent of the primary-mode
// offset field, set on OpenStream and threaded back in on every
// subsequent *Stream call via Args.UserStream.
type streamState struct {
	offset uint64
}

type window struct {
	start    uint64
	end      uint64
	endValid bool

	primaryOffset uint64

	stat       source.Stat
	attributes source.FileAttributes

	needsSeek       bool
	needsStreamSeek bool
}

// New returns a Source presenting [start, start+length) of lower, or
// [start, ∞) if length is -1 (any smaller length fails INVAL) — the public entry point with no
// archive back-reference. st and attrs, if non-nil, seed the
// STAT/GET_FILE_ATTRIBUTES responses the window reports on its own
// behalf (an archive entry's size/compression method/flags as recorded
// in its central directory entry, independent of what lower reports).
func New(lower *source.Source, start uint64, length int64, st *source.Stat, attrs *source.FileAttributes) (*source.Source, error) {
	return newWindow(lower, start, length, st, attrs, nil, 0)
}

// NewFromEntry is the archive-aware counterpart of New: start is
// relative to the entry at index within archive, and archive.FileOffset
// translates it into an absolute position before the window is built.
func NewFromEntry(lower *source.Source, start uint64, length int64, st *source.Stat, attrs *source.FileAttributes, archive ArchiveOffsetter, index uint64) (*source.Source, error) {
	return newWindow(lower, start, length, st, attrs, archive, index)
}

// newWindow is like New, but additionally accepts an archive
// back-reference and a central-directory entry index. When archive is
// non-nil, start is translated by the entry's archive-relative offset
// (archive.FileOffset(index)), and the start+length+offset overflow
// check below also guards against that translated bound.
func newWindow(lower *source.Source, start uint64, length int64, st *source.Stat, attrs *source.FileAttributes, archive ArchiveOffsetter, index uint64) (*source.Source, error) {
	if lower == nil {
		return nil, &source.Error{Kind: source.KindInval}
	}
	if length < -1 {
		return nil, &source.Error{Kind: source.KindInval}
	}
	if length >= 0 && start+uint64(length) < start {
		return nil, &source.Error{Kind: source.KindInval}
	}

	if archive != nil {
		offset, err := archive.FileOffset(index)
		if err != nil {
			return nil, &source.Error{Kind: source.KindInternal, Cause: err}
		}
		if length >= 0 {
			sum := start + uint64(length)
			if sum+offset < sum {
				return nil, newWindowInconsistentErr(index)
			}
		}
		start += offset
	}

	w := &window{start: start}
	if length < 0 {
		w.endValid = false
	} else {
		w.end = start + uint64(length)
		w.endValid = true
	}
	if st != nil {
		w.stat = *st
	}
	if attrs != nil {
		w.attributes = *attrs
	}

	caps := source.CapOpen | source.CapRead | source.CapClose | source.CapStat |
		source.CapGetFileAttributes | source.CapSupports | source.CapTell

	if lower.Supports(source.CapRead | source.CapSeek | source.CapTell) {
		caps |= source.CapSeek
		w.needsSeek = true
	}
	if lower.Capabilities.Has(source.CapReopen) {
		caps |= source.CapReopen
	}
	if lower.Capabilities.ReadableStreams() {
		caps |= source.CapOpenStream | source.CapReadStream | source.CapCloseStream
		if lower.Capabilities.SeekableStreams() {
			caps |= source.CapSeekStream | source.CapTellStream
			w.needsStreamSeek = true
		}
	}

	return source.New(lower, w.callback, w, caps), nil
}

// newWindowInconsistentErr builds the INCONSISTENT/CDIR_ENTRY_INVALID
// error reported when a window's bounds overflow once an
// archive-relative offset is folded in.
func newWindowInconsistentErr(index uint64) error {
	return &source.Error{Kind: source.KindInconsistent, Detail: source.DetailCDirEntryInvalid, Index: index}
}

func (w *window) needsSeekFor(streamID int64) bool {
	if streamID < 0 {
		return w.needsSeek
	}
	return w.needsStreamSeek
}

func (w *window) windowLen() (uint64, bool) {
	if !w.endValid {
		return 0, false
	}
	return w.end - w.start, true
}

// callback is the window layer's single Callback, dispatched through
// the Source it's attached to; it owns no locking of its own, matching
// the synchronous-per-stream contract documented on source.Source.
func (w *window) callback(s *source.Source, streamID int64, args *source.Args, cmd source.Cmd) (int64, error) {
	lower := s.Lower

	switch cmd {
	case source.CmdOpen:
		off, err := w.open(lower, -1)
		if err != nil {
			return -1, err
		}
		w.primaryOffset = off
		return 0, nil

	case source.CmdOpenStream:
		off, err := w.open(lower, streamID)
		if err != nil {
			return -1, err
		}
		args.UserStream = &streamState{offset: off}
		return 0, nil

	case source.CmdRead:
		n, err := w.read(lower, -1, &w.primaryOffset, args.Data)
		return int64(n), err

	case source.CmdReadStream:
		st := args.UserStream.(*streamState)
		n, err := w.read(lower, streamID, &st.offset, args.Data)
		return int64(n), err

	case source.CmdClose, source.CmdCloseStream:
		return 0, nil

	case source.CmdSeek:
		return 0, w.seek(lower, -1, &w.primaryOffset, args.Seek)

	case source.CmdSeekStream:
		st := args.UserStream.(*streamState)
		return 0, w.seek(lower, streamID, &st.offset, args.Seek)

	case source.CmdTell:
		return int64(w.primaryOffset - w.start), nil

	case source.CmdTellStream:
		st := args.UserStream.(*streamState)
		return int64(st.offset - w.start), nil

	case source.CmdStat:
		if args.Stat != nil {
			*args.Stat = w.stat
		}
		return 0, nil

	case source.CmdGetFileAttributes:
		if args.Attributes != nil {
			*args.Attributes = w.attributes
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

// open positions the lower source at w.start. If the lower source
// can't seek, it's drained byte by byte from its current position
// (assumed to be 0) up to w.start instead.
func (w *window) open(lower *source.Source, streamID int64) (uint64, error) {
	if !w.needsSeekFor(streamID) {
		if err := drain(lower, streamID, w.start); err != nil {
			xlog.Errorf("window: draining to offset %d failed: %v", w.start, err)
			return 0, err
		}
	}
	return w.start, nil
}

func drain(lower *source.Source, streamID int64, n uint64) error {
	buf := make([]byte, drainBufSize)
	for n > 0 {
		chunk := uint64(len(buf))
		if n < chunk {
			chunk = n
		}
		read, err := lowerRead(lower, streamID, buf[:chunk])
		if err != nil {
			return err
		}
		if read == 0 {
			return &source.Error{Kind: source.KindEOF}
		}
		n -= uint64(read)
	}
	return nil
}

// read fills data, clamped to the window's end if bounded, seeking the
// lower source into position first when it supports real seeking.
// Running out of bytes before the window's declared end is an error;
// running out at or past it (or in an unbounded window) is a normal EOS.
func (w *window) read(lower *source.Source, streamID int64, offset *uint64, data []byte) (int, error) {
	want := uint64(len(data))
	if w.endValid {
		if remaining := w.end - *offset; want > remaining {
			want = remaining
		}
	}
	if want == 0 {
		return 0, nil
	}

	if w.needsSeekFor(streamID) {
		if err := lowerSeek(lower, streamID, source.SeekArgs{Offset: int64(*offset), Whence: source.SeekSet}); err != nil {
			return 0, err
		}
	}

	n, err := lowerRead(lower, streamID, data[:want])
	if err != nil {
		return 0, &source.Error{Kind: source.KindEOF, Cause: err}
	}
	*offset += uint64(n)

	if n == 0 && w.endValid && *offset < w.end {
		xlog.Errorf("window [%d,%d): truncated at offset %d", w.start, w.end, *offset)
		return 0, &source.Error{Kind: source.KindEOF}
	}
	return n, nil
}

// seek repositions offset within the window. For an unbounded window,
// SEEK_END has no virtual length to compute against, so it's passed
// straight through to the lower source (which must be seekable, since
// CapSeek is only ever advertised when needsSeek is true) and the
// result validated to still lie at or past w.start.
func (w *window) seek(lower *source.Source, streamID int64, offset *uint64, seek source.SeekArgs) error {
	if !w.endValid && seek.Whence == source.SeekEnd {
		prev := *offset
		if err := lowerSeek(lower, streamID, seek); err != nil {
			return err
		}
		newOffset, err := lowerTell(lower, streamID)
		if err != nil {
			return err
		}
		if uint64(newOffset) < w.start {
			_ = lowerSeek(lower, streamID, source.SeekArgs{Offset: int64(prev), Whence: source.SeekSet})
			return &source.Error{Kind: source.KindInval}
		}
		*offset = uint64(newOffset)
		return nil
	}

	length, bounded := w.windowLen()
	rel, err := computeSeekOffset(*offset-w.start, length, bounded, seek)
	if err != nil {
		return err
	}
	*offset = rel + w.start
	return nil
}

// computeSeekOffset resolves a SeekArgs against a virtual file of the
// given length (meaningless when unbounded, in which case SEEK_END is
// rejected — callers must special-case the unbounded+SEEK_END case
// before reaching here).
func computeSeekOffset(current uint64, length uint64, bounded bool, seek source.SeekArgs) (uint64, error) {
	var base int64
	switch seek.Whence {
	case source.SeekSet:
		base = 0
	case source.SeekCur:
		base = int64(current)
	case source.SeekEnd:
		if !bounded {
			return 0, &source.Error{Kind: source.KindInval}
		}
		base = int64(length)
	default:
		return 0, &source.Error{Kind: source.KindInval}
	}
	n := base + seek.Offset
	if n < 0 || (bounded && uint64(n) > length) {
		return 0, &source.Error{Kind: source.KindInval}
	}
	return uint64(n), nil
}

func lowerRead(lower *source.Source, streamID int64, buf []byte) (int, error) {
	if streamID < 0 {
		return lower.Read(buf)
	}
	return lower.ReadStream(streamID, buf)
}

func lowerSeek(lower *source.Source, streamID int64, seek source.SeekArgs) error {
	if streamID < 0 {
		if !lower.Capabilities.Has(source.CapSeek) {
			return &source.Error{Kind: source.KindOpNotSupp}
		}
		return lowerSeekPrimary(lower, seek)
	}
	return lower.SeekStream(streamID, seek)
}

// lowerSeekPrimary performs a primary-mode seek through
// Source.SeekPrimary, which dispatches CmdSeek to lower; callers (like
// window) use it only once they know lower advertises CapSeek.
func lowerSeekPrimary(lower *source.Source, seek source.SeekArgs) error {
	return lower.SeekPrimary(seek)
}

func lowerTell(lower *source.Source, streamID int64) (int64, error) {
	if streamID < 0 {
		return lower.Tell()
	}
	return lower.TellStream(streamID)
}
