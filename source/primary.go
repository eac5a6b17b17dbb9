package source

import (
	"errors"

	"github.com/go-zipio/zipsource/internal/xlog"
)

// Primary-mode lifecycle: Open/Read/Tell/Close. Unlike the stream-mode
// lifecycle, primary mode allows only one open reader at a time and
// tracks its state directly on the Source.

var errOffsetOverflow = errors.New("tell: offset exceeds int64 range")

// Open begins a primary-mode read. It is an error to call Open on a
// source that is already open and not seekable, or on one whose backing
// entry has been removed. A layered source opens its Lower first and
// undoes that open if its own OPEN then fails.
func (s *Source) Open() error {
	if s.sourceClosed {
		// The archive-closed error was already latched at
		// invalidation time; open fails without recording a new one.
		return newError(KindArchiveClosed, nil)
	}
	if s.WriteState == WriteStateRemoved {
		err := newError(KindDeleted, nil)
		s.setErr(err)
		return err
	}

	if s.openCount > 0 {
		if !s.Supports(CapRead | CapSeek) {
			err := newError(KindInUse, nil)
			s.setErr(err)
			return err
		}
	} else {
		if s.Lower != nil {
			if err := s.Lower.Open(); err != nil {
				err := setFromSource(s.Lower)
				s.setErr(err)
				return err
			}
		}
		if _, err := dispatch(s, -1, nil, CmdOpen); err != nil {
			if s.Lower != nil {
				_ = s.Lower.Close()
			}
			xlog.Errorf("source %q: open failed: %v", s.Name, err)
			s.setErr(newError(KindOpen, err))
			return s.err
		}
	}

	s.eof = false
	s.hadReadError = false
	s.err = nil
	s.bytesRead = 0
	s.openCount++
	return nil
}

// Read fills buf and returns the number of bytes read, looping the READ
// dispatch until buf is full or the callback signals end of stream (0)
// or an error. A return of (0, nil) signals a clean end of stream; a
// previous short read or error is sticky — Read refuses to call READ
// again once EOF or an error has been observed.
func (s *Source) Read(buf []byte) (int, error) {
	if s.sourceClosed {
		return 0, newError(KindArchiveClosed, nil)
	}
	if s.openCount == 0 {
		return 0, newError(KindInval, nil)
	}
	if s.hadReadError {
		return 0, s.err
	}
	if s.eof {
		return 0, nil
	}
	if len(buf) == 0 {
		return 0, nil
	}

	read := 0
	for read < len(buf) {
		n, err := dispatch(s, -1, &Args{Data: buf[read:]}, CmdRead)
		if err != nil {
			s.hadReadError = true
			xlog.Errorf("source %q: read failed: %v", s.Name, err)
			var srcErr *Error
			if !errors.As(err, &srcErr) {
				srcErr = newError(KindInternal, err)
			}
			s.setErr(srcErr)
			if read == 0 {
				return 0, s.err
			}
			break
		}
		if n == 0 {
			s.eof = true
			break
		}
		read += int(n)
	}

	s.bytesRead = saturatingAdd(s.bytesRead, uint64(read))
	if s.metrics != nil {
		s.metrics.AddBytesRead(s.Name, read)
	}
	return read, nil
}

// saturatingAdd computes a+b, clamping to the unsigned max on overflow
// instead of wrapping.
func saturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}

// SeekPrimary repositions a primary-mode read. Not every source
// advertises CapSeek; callers should check Supports(CapSeek) first.
func (s *Source) SeekPrimary(seek SeekArgs) error {
	if s.sourceClosed {
		return newError(KindArchiveClosed, nil)
	}
	if s.openCount == 0 {
		return newError(KindInval, nil)
	}
	if !s.Supports(CapSeek) {
		return newError(KindOpNotSupp, nil)
	}
	if _, err := dispatch(s, -1, &Args{Seek: seek}, CmdSeek); err != nil {
		s.setErr(newError(KindInval, err))
		return s.err
	}
	s.eof = false
	return nil
}

// Tell returns the current primary-mode read offset. A layer that
// advertises neither TELL nor SEEK falls back to the accumulated
// bytes-read counter, the right fallback for forward-only sources
// (e.g. the compression layer).
func (s *Source) Tell() (int64, error) {
	if s.sourceClosed {
		return -1, newError(KindArchiveClosed, nil)
	}
	if s.openCount == 0 {
		return -1, newError(KindInval, nil)
	}
	if !s.Supports(CapTell) && !s.Supports(CapSeek) {
		if s.bytesRead > maxInt64 {
			err := newError(KindTell, errOffsetOverflow)
			s.setErr(err)
			return -1, err
		}
		return int64(s.bytesRead), nil
	}
	off, err := dispatch(s, -1, nil, CmdTell)
	if err != nil {
		s.setErr(newError(KindTell, err))
		return -1, s.err
	}
	return off, nil
}

const maxInt64 = uint64(1<<63 - 1)

// Stat returns whatever this source reports about its entry's size,
// compressed size, and compression method. Unlike Read/Tell, it can be
// called whether or not the source is currently open.
func (s *Source) Stat() (Stat, error) {
	if !s.Supports(CapStat) {
		return Stat{}, newError(KindOpNotSupp, nil)
	}
	args := &Args{Stat: &Stat{}}
	if _, err := dispatch(s, -1, args, CmdStat); err != nil {
		return Stat{}, newError(KindInternal, err)
	}
	return *args.Stat, nil
}

// GetFileAttributes returns the version-needed and general-purpose-flag
// bits this source reports for its entry.
func (s *Source) GetFileAttributes() (FileAttributes, error) {
	if !s.Supports(CapGetFileAttributes) {
		return FileAttributes{}, newError(KindOpNotSupp, nil)
	}
	args := &Args{Attributes: &FileAttributes{}}
	if _, err := dispatch(s, -1, args, CmdGetFileAttributes); err != nil {
		return FileAttributes{}, newError(KindInternal, err)
	}
	return *args.Attributes, nil
}

// Close ends the current primary-mode read. Close on a source that
// isn't open fails INVAL. Only the final matching Close (the one that
// brings open_count to zero) dispatches CLOSE and recurses into Lower.
func (s *Source) Close() error {
	if s.openCount == 0 {
		return newError(KindInval, nil)
	}
	s.openCount--
	if s.openCount != 0 {
		return nil
	}
	_, err := dispatch(s, -1, nil, CmdClose)
	if s.Lower != nil {
		if lowerErr := s.Lower.Close(); lowerErr != nil {
			if err == nil {
				xlog.Errorf("source %q: lower close failed: %v", s.Name, lowerErr)
				s.setErr(newError(KindInternal, lowerErr))
				return s.err
			}
		}
	}
	if err != nil {
		xlog.Errorf("source %q: close failed: %v", s.Name, err)
		s.setErr(newError(KindInternal, err))
		return s.err
	}
	return nil
}
