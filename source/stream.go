package source

import (
	"errors"

	"github.com/go-zipio/zipsource/internal/xlog"
)

// Stream-mode lifecycle: OpenStream/ReadStream/TellStream/SeekStream/
// CloseStream, plus the free-list-backed ID allocator, using the same
// growable-buffer grow-by-half policy for the stream table and free list.
//
// The streamID threaded through dispatch is always the PARENT's stream
// ID — the one a layered callback must use when it recurses into
// Lower — never this Source's own ID for the stream being operated on
// (source.go's Callback doc comment states this contract).

// allocStreamID returns a stream ID for a new stream, reusing a freed
// ID when one is available and only growing the table when it isn't.
func (s *Source) allocStreamID() int64 {
	if n := len(s.freeStreamIDs); n > 0 {
		id := s.freeStreamIDs[n-1]
		s.freeStreamIDs = s.freeStreamIDs[:n-1]
		return id
	}
	id := int64(len(s.streams))
	s.streams = growSlice(s.streams, len(s.streams)+1)
	s.streams = append(s.streams, nil)
	return id
}

// releaseStreamID returns id to the free list. A released ID is never
// both live and free at once: callers must nil out streams[id] first.
func (s *Source) releaseStreamID(id int64) {
	s.freeStreamIDs = growSlice(s.freeStreamIDs, len(s.freeStreamIDs)+1)
	s.freeStreamIDs = append(s.freeStreamIDs, id)
}

func (s *Source) lookupStream(id int64) (*Stream, error) {
	if id < 0 || id >= int64(len(s.streams)) || s.streams[id] == nil {
		return nil, newError(KindInval, nil)
	}
	return s.streams[id], nil
}

// OpenStream begins a new concurrent reader and returns its ID. Many
// streams may be open on the same Source simultaneously; each gets its
// own ParentStreamID/UserStream established by the layer's callback. A
// layered source first opens a stream on Lower to obtain the parent ID,
// undoing it if anything downstream of that fails.
func (s *Source) OpenStream() (int64, error) {
	if s.sourceClosed {
		return -1, newError(KindArchiveClosed, nil)
	}
	if s.WriteState == WriteStateRemoved {
		err := newError(KindDeleted, nil)
		s.setErr(err)
		return -1, err
	}
	if !s.Supports(CapOpenStream | CapReadStream | CapCloseStream) {
		return -1, newError(KindOpNotSupp, nil)
	}

	parentID := int64(-1)
	if s.Lower != nil {
		pid, err := s.Lower.OpenStream()
		if err != nil {
			err := setFromSource(s.Lower)
			s.setErr(err)
			return -1, err
		}
		parentID = pid
	}

	args := &Args{}
	if _, err := dispatch(s, parentID, args, CmdOpenStream); err != nil {
		if s.Lower != nil {
			_ = s.Lower.CloseStream(parentID)
		}
		xlog.Errorf("source %q: open stream failed: %v", s.Name, err)
		s.setErr(newError(KindOpen, err))
		return -1, s.err
	}
	if args.UserStream == nil {
		if s.Lower != nil {
			_ = s.Lower.CloseStream(parentID)
		}
		err := newError(KindOpen, nil)
		s.setErr(err)
		return -1, err
	}

	id := s.allocStreamID()
	s.streams[id] = &Stream{ParentStreamID: parentID, UserStream: args.UserStream}
	s.nstreams++
	if s.metrics != nil {
		s.metrics.StreamOpened()
	}
	return id, nil
}

// ReadStream fills buf from the stream identified by id, looping the
// READ_STREAM dispatch exactly as primary-mode Read does; id has no
// relation to, and does not affect, the primary-mode counters.
func (s *Source) ReadStream(id int64, buf []byte) (int, error) {
	if s.sourceClosed {
		return 0, newError(KindArchiveClosed, nil)
	}
	st, err := s.lookupStream(id)
	if err != nil {
		return 0, err
	}
	if st.HadReadError {
		return 0, s.err
	}
	if st.EOF {
		return 0, nil
	}
	if len(buf) == 0 {
		return 0, nil
	}

	read := 0
	for read < len(buf) {
		args := &Args{Data: buf[read:], UserStream: st.UserStream}
		n, err := dispatch(s, st.ParentStreamID, args, CmdReadStream)
		if err != nil {
			st.HadReadError = true
			xlog.Errorf("source %q: read stream %d failed: %v", s.Name, id, err)
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
			st.EOF = true
			break
		}
		read += int(n)
	}

	st.BytesRead = saturatingAdd(st.BytesRead, uint64(read))
	if s.metrics != nil {
		s.metrics.AddBytesRead(s.Name, read)
	}
	return read, nil
}

// TellStream returns the stream's current read offset. A layer that
// doesn't advertise Seekable streams falls back to the stream's own
// bytes-read counter.
func (s *Source) TellStream(id int64) (int64, error) {
	if s.sourceClosed {
		return -1, newError(KindArchiveClosed, nil)
	}
	st, err := s.lookupStream(id)
	if err != nil {
		return -1, err
	}
	if !s.Capabilities.SeekableStreams() {
		if st.BytesRead > maxInt64 {
			tellErr := newError(KindTell, errOffsetOverflow)
			s.setErr(tellErr)
			return -1, tellErr
		}
		return int64(st.BytesRead), nil
	}
	args := &Args{UserStream: st.UserStream}
	off, callErr := dispatch(s, st.ParentStreamID, args, CmdTellStream)
	if callErr != nil {
		s.setErr(newError(KindTell, callErr))
		return -1, s.err
	}
	return off, nil
}

// SeekStream repositions the stream; the layer decides whether to
// satisfy it with a real seek or by draining, per its own capabilities.
// Defined only when the source advertises Seekable streams.
func (s *Source) SeekStream(id int64, seek SeekArgs) error {
	if s.sourceClosed {
		return newError(KindArchiveClosed, nil)
	}
	st, err := s.lookupStream(id)
	if err != nil {
		return err
	}
	if !s.Capabilities.SeekableStreams() {
		return newError(KindOpNotSupp, nil)
	}
	args := &Args{UserStream: st.UserStream, Seek: seek}
	if _, callErr := dispatch(s, st.ParentStreamID, args, CmdSeekStream); callErr != nil {
		s.setErr(newError(KindInval, callErr))
		return s.err
	}
	st.EOF = false
	return nil
}

// CloseStream ends the stream and releases its ID for reuse: the last
// slot of the table is dropped by shrinking the table, any other ID
// goes onto the free list. It always
// dispatches CLOSE_STREAM to the callback and, for a layered source,
// recursively closes the parent stream on Lower regardless of that
// dispatch's outcome — closure of the lower stream must happen exactly
// once per upper stream no matter how the upper CLOSE_STREAM behaved.
// The non-tail path never surfaces a close failure as a returned error
// (it only latches one via setErr), matching the tail-close branch,
// which also always succeeds.
func (s *Source) CloseStream(id int64) error {
	st, err := s.lookupStream(id)
	if err != nil {
		return err
	}

	userStream := st.UserStream
	parentID := st.ParentStreamID
	s.streams[id] = nil
	s.nstreams--

	args := &Args{UserStream: userStream}
	_, callErr := dispatch(s, parentID, args, CmdCloseStream)

	var lowerErr error
	if s.Lower != nil {
		lowerErr = s.Lower.CloseStream(parentID)
	}

	switch {
	case callErr != nil:
		xlog.Errorf("source %q: close stream %d failed: %v", s.Name, id, callErr)
		s.setErr(newError(KindInternal, callErr))
	case lowerErr != nil:
		xlog.Errorf("source %q: close stream %d: lower close failed: %v", s.Name, id, lowerErr)
		s.setErr(newError(KindInternal, lowerErr))
	}

	if s.metrics != nil {
		s.metrics.StreamClosed()
	}

	if id == int64(len(s.streams))-1 {
		s.streams = s.streams[:id]
	} else {
		s.releaseStreamID(id)
	}
	return nil
}
