// Package source implements the layered byte-source protocol: a
// single dispatch point, a primary (single-reader) lifecycle, and a
// stream (concurrent-reader) lifecycle, shared by every concrete layer
// (window, compress, …) built on top of it.
//
// A Source is created by a layer constructor and is either a leaf (no
// Lower) or built directly on top of exactly one other Source. Commands
// are routed through dispatch to the layer's Callback, which may
// recurse into Lower via the same dispatcher, but never back up into
// the Source that owns it.
package source

import "github.com/go-zipio/zipsource/internal/metrics"

// WriteState tracks whether the archive entry backing a source has
// been removed out from under it.
type WriteState int

const (
	WriteStateNormal WriteState = iota
	WriteStateRemoved
)

// Callback is a layer's single command handler. streamID is -1 for
// primary-mode commands and the stream's own parent-relative ID for
// stream-mode commands issued against that layer's Lower.
type Callback func(src *Source, streamID int64, args *Args, cmd Cmd) (int64, error)

// Stream is one concurrent reader on a Source.
type Stream struct {
	ParentStreamID int64 // stream ID used when talking to Lower, or -1
	UserStream     interface{}
	EOF            bool
	HadReadError   bool
	BytesRead      uint64
}

// Source is a stateful byte producer. Callers must serialize their own
// access to a given stream ID; the type has no internal locking.
type Source struct {
	Lower        *Source
	Callback     Callback
	UserData     interface{}
	Capabilities Capability
	Name         string // diagnostic only, e.g. "window(file.zip)"

	WriteState   WriteState
	sourceClosed bool

	// Primary-mode state.
	openCount    int
	eof          bool
	hadReadError bool
	bytesRead    uint64

	// Stream-mode state.
	streams       []*Stream // nil entries are free slots
	freeStreamIDs []int64
	nstreams      int64

	err *Error

	metrics *metrics.Recorder
}

// New constructs a Source. lower is nil for a leaf source. caps should
// already OR together this layer's own capabilities with whatever it
// forwards from lower (§4.5/§4.6 specify the rule per layer).
func New(lower *Source, cb Callback, userData interface{}, caps Capability) *Source {
	return &Source{
		Lower:        lower,
		Callback:     cb,
		UserData:     userData,
		Capabilities: caps,
	}
}

// SetMetrics attaches an optional metrics recorder; nil disables
// instrumentation.
func (s *Source) SetMetrics(m *metrics.Recorder) {
	s.metrics = m
}

// Err returns the last error recorded against this source.
func (s *Source) Err() *Error {
	return s.err
}

func (s *Source) setErr(err *Error) {
	s.err = err
}

// Supports reports whether every command in want is in this source's
// capability bitmap (the Go equivalent of dispatching CmdSupports).
func (s *Source) Supports(want Capability) bool {
	return s.Capabilities.Has(want)
}

// dispatch is the single entry point that routes a command to a
// source's callback. It threads per-stream context through unchanged
// and does not interpret the result: no capability checks here, those
// live in the primary/stream lifecycle callers per operation.
func dispatch(s *Source, streamID int64, args *Args, cmd Cmd) (int64, error) {
	return s.Callback(s, streamID, args, cmd)
}

// Free tears a source down: FREE is dispatched to the callback (which
// releases UserData), then recurses into Lower if layered. FREE is
// idempotent with respect to an already-freed source.
func (s *Source) Free() error {
	if s == nil {
		return nil
	}
	_, err := dispatch(s, -1, nil, CmdFree)
	if s.Lower != nil {
		if lowerErr := s.Lower.Free(); err == nil {
			err = lowerErr
		}
	}
	return err
}
