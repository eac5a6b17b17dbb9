package source

// SeekWhence mirrors the three io.Seeker whences; kept as its own type
// so callback implementations never have to import "io" just for this.
type SeekWhence int

const (
	SeekSet SeekWhence = iota
	SeekCur
	SeekEnd
)

// SeekArgs carries a SEEK/SEEK_STREAM request.
type SeekArgs struct {
	Offset int64
	Whence SeekWhence
}

// Stat is the subset of zip_stat_t the core protocol cares about: the
// rest (filenames, CRCs, timestamps) lives above this layer.
type Stat struct {
	Size       uint64
	SizeValid  bool
	CompSize   uint64
	CompValid  bool
	CompMethod int32
	MethodValid bool
}

// FileAttributes mirrors zip_file_attributes_t's two core-relevant
// fields; ownership/external-fs-attribute bits live above this layer.
type FileAttributes struct {
	VersionNeeded        uint16
	GeneralPurposeFlags  uint16
	GeneralPurposeMask   uint16
}

// Args is the tagged payload passed through the dispatcher to a layer's
// Callback. It plays the role of the C union of (data,len) / StreamArgs:
// a Go struct carrier with one field populated per command family
// rather than a raw pointer-and-size pair, so layers never need to cast
// raw memory.
type Args struct {
	// Data is the read buffer for READ and READ_STREAM.
	Data []byte

	// UserStream is the opaque per-stream handle established by
	// OPEN_STREAM and threaded through every subsequent *_STREAM call
	// for that stream.
	UserStream interface{}

	// Seek carries a SEEK/SEEK_STREAM request.
	Seek SeekArgs

	// Stat is populated by the callback on CmdStat.
	Stat *Stat

	// Attributes is populated by the callback on CmdGetFileAttributes.
	Attributes *FileAttributes

	// Err carries the *Error written by a CmdError callback.
	Err *Error
}
