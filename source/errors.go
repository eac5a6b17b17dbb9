package source

import "fmt"

// Kind is the closed set of error kinds the source protocol can report.
type Kind int

const (
	// KindOK means no error; Error values with this Kind are never
	// surfaced to callers, it only exists so Kind's zero value is
	// meaningful.
	KindOK Kind = iota
	KindMemory
	KindInval
	KindInternal
	KindInUse
	KindDeleted
	KindArchiveClosed
	KindEOF
	KindOpen
	KindTell
	KindOpNotSupp
	KindCompressionNotSupported
	KindInconsistent
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindMemory:
		return "out of memory"
	case KindInval:
		return "invalid argument"
	case KindInternal:
		return "internal error"
	case KindInUse:
		return "source already open"
	case KindDeleted:
		return "entry deleted"
	case KindArchiveClosed:
		return "archive closed"
	case KindEOF:
		return "unexpected end of file"
	case KindOpen:
		return "can't open source"
	case KindTell:
		return "tell error"
	case KindOpNotSupp:
		return "operation not supported"
	case KindCompressionNotSupported:
		return "compression method not supported"
	case KindInconsistent:
		return "inconsistent archive data"
	default:
		return "unknown error"
	}
}

// DetailTag qualifies an Inconsistent error with the sub-area that
// noticed the inconsistency.
type DetailTag int

const (
	DetailNone DetailTag = iota
	DetailCDirEntryInvalid
)

// Error is the error type every layer operation returns. It wraps an
// optional OS-level cause the same way a lower source's error is
// threaded up through a layer.
type Error struct {
	Kind   Kind
	Detail DetailTag
	Index  uint64 // valid when Detail != DetailNone
	Cause  error
}

func (e *Error) Error() string {
	if e == nil || e.Kind == KindOK {
		return "no error"
	}
	msg := e.Kind.String()
	if e.Detail == DetailCDirEntryInvalid {
		msg = fmt.Sprintf("%s (central directory entry %d invalid)", msg, e.Index)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// newError builds an *Error of the given kind, optionally wrapping cause.
func newError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// newInconsistentError builds an Inconsistent error tagged with detail/index,
// e.g. when a window's bounds overflow past an archive entry's offset.
func newInconsistentError(detail DetailTag, index uint64) *Error {
	return &Error{Kind: KindInconsistent, Detail: detail, Index: index}
}

// setFromSource copies a lower source's current error up as this
// layer's own failure. If the lower source has no recorded error, it
// falls back to Internal.
func setFromSource(lower *Source) *Error {
	if lower == nil {
		return newError(KindInternal, nil)
	}
	if lower.err != nil && lower.err.Kind != KindOK {
		return lower.err
	}
	return newError(KindInternal, nil)
}
