// Package sourcetest provides an in-memory leaf Source for exercising
// the rest of this module's layers: a small, togglable fake rather
// than a real file on disk.
package sourcetest

import (
	"github.com/go-zipio/zipsource/source"
)

// Options configures the capabilities a memsource leaf advertises.
type Options struct {
	Data []byte

	// Seekable controls whether primary mode advertises SEEK/TELL.
	Seekable bool

	// Streamable controls whether OPEN_STREAM/READ_STREAM/CLOSE_STREAM
	// are advertised at all.
	Streamable bool

	// SeekableStreams additionally advertises SEEK_STREAM/TELL_STREAM;
	// meaningless unless Streamable is also set.
	SeekableStreams bool
}

type memLeaf struct {
	data          []byte
	primaryOffset int64
}

type memStream struct {
	offset int64
}

// New builds a leaf Source over opts.Data with the requested
// capabilities. The primary-mode offset lives on the leaf itself (reset
// on OPEN) and each stream's offset on its *memStream; this leaf's callback
// only ever sees streamID == -1 for primary-mode commands and its own
// *memStream for stream-mode ones, exactly like any other leaf.
func New(opts Options) *source.Source {
	m := &memLeaf{data: opts.Data}

	caps := source.CapOpen | source.CapRead | source.CapClose |
		source.CapStat | source.CapSupports | source.CapGetFileAttributes
	if opts.Seekable {
		caps |= source.CapSeek | source.CapTell
	}
	if opts.Streamable {
		caps |= source.CapOpenStream | source.CapReadStream | source.CapCloseStream
		if opts.SeekableStreams {
			caps |= source.CapSeekStream | source.CapTellStream
		}
	}

	return source.New(nil, m.callback, m, caps)
}

func (m *memLeaf) callback(s *source.Source, streamID int64, args *source.Args, cmd source.Cmd) (int64, error) {
	switch cmd {
	case source.CmdOpen:
		m.primaryOffset = 0
		return 0, nil

	case source.CmdOpenStream:
		args.UserStream = &memStream{}
		return 0, nil

	case source.CmdClose, source.CmdCloseStream:
		return 0, nil

	case source.CmdRead:
		return m.read(&m.primaryOffset, args.Data), nil

	case source.CmdReadStream:
		st := args.UserStream.(*memStream)
		return m.read(&st.offset, args.Data), nil

	case source.CmdSeek:
		return 0, m.seek(&m.primaryOffset, args.Seek)

	case source.CmdSeekStream:
		st := args.UserStream.(*memStream)
		return 0, m.seek(&st.offset, args.Seek)

	case source.CmdTell:
		return m.primaryOffset, nil

	case source.CmdTellStream:
		st := args.UserStream.(*memStream)
		return st.offset, nil

	case source.CmdStat:
		if args.Stat != nil {
			args.Stat.Size = uint64(len(m.data))
			args.Stat.SizeValid = true
		}
		return 0, nil

	case source.CmdGetFileAttributes:
		return 0, nil

	case source.CmdSupports:
		return int64(s.Capabilities), nil

	case source.CmdFree:
		return 0, nil

	default:
		return -1, &source.Error{Kind: source.KindOpNotSupp}
	}
}

func (m *memLeaf) read(offset *int64, data []byte) int64 {
	if *offset >= int64(len(m.data)) {
		return 0
	}
	n := copy(data, m.data[*offset:])
	*offset += int64(n)
	return int64(n)
}

func (m *memLeaf) seek(offset *int64, seek source.SeekArgs) error {
	var base int64
	switch seek.Whence {
	case source.SeekSet:
		base = 0
	case source.SeekCur:
		base = *offset
	case source.SeekEnd:
		base = int64(len(m.data))
	default:
		return &source.Error{Kind: source.KindInval}
	}
	n := base + seek.Offset
	if n < 0 {
		return &source.Error{Kind: source.KindInval}
	}
	*offset = n
	return nil
}
