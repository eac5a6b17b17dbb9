package source_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-zipio/zipsource/source"
	"github.com/go-zipio/zipsource/source/sourcetest"
)

func TestOpenStreamOnNonStreamingLowerFailsOpNotSupp(t *testing.T) {
	// open_stream on a source whose lower lacks readable streams fails
	// OPNOTSUPP. The leaf itself doesn't advertise stream caps here.
	s := sourcetest.New(sourcetest.Options{Data: []byte("abc"), Streamable: false})

	_, err := s.OpenStream()
	require.Error(t, err)
	var srcErr *source.Error
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, source.KindOpNotSupp, srcErr.Kind)
}

func TestStreamIDReuse(t *testing.T) {
	// open ids 0,1,2; close 1; next open_stream returns 1 (reused); close
	// 0,1,2 in order, leaving no stream live.
	s := sourcetest.New(sourcetest.Options{Data: []byte("0123456789"), Streamable: true})

	id0, err := s.OpenStream()
	require.NoError(t, err)
	id1, err := s.OpenStream()
	require.NoError(t, err)
	id2, err := s.OpenStream()
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2}, []int64{id0, id1, id2})

	require.NoError(t, s.CloseStream(id1))

	reused, err := s.OpenStream()
	require.NoError(t, err)
	assert.Equal(t, id1, reused)

	require.NoError(t, s.CloseStream(id0))
	require.NoError(t, s.CloseStream(reused))
	require.NoError(t, s.CloseStream(id2))

	// Every id is now free; the next open must reuse one rather than
	// growing the table past 3.
	next, err := s.OpenStream()
	require.NoError(t, err)
	assert.Less(t, next, int64(3))
	require.NoError(t, s.CloseStream(next))
}

func TestReadStreamIndependentOfPrimaryOffset(t *testing.T) {
	s := sourcetest.New(sourcetest.Options{Data: []byte("0123456789"), Streamable: true})

	require.NoError(t, s.Open())
	buf := make([]byte, 3)
	_, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "012", string(buf))

	id, err := s.OpenStream()
	require.NoError(t, err)
	sbuf := make([]byte, 3)
	n, err := s.ReadStream(id, sbuf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "012", string(sbuf))

	require.NoError(t, s.CloseStream(id))
	require.NoError(t, s.Close())
}

func TestCloseStreamOnUnknownIDFailsInval(t *testing.T) {
	s := sourcetest.New(sourcetest.Options{Data: []byte("x"), Streamable: true})
	err := s.CloseStream(42)
	require.Error(t, err)
	var srcErr *source.Error
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, source.KindInval, srcErr.Kind)
}

// countingLayer wraps a lower Source and counts how many times
// CLOSE_STREAM reaches its callback, used to verify layered close
// propagation happens exactly once per level per stream.
type countingLayer struct {
	closeStreamCalls int
}

func (c *countingLayer) callback(s *source.Source, streamID int64, args *source.Args, cmd source.Cmd) (int64, error) {
	lower := s.Lower
	switch cmd {
	case source.CmdOpenStream:
		// streamID is the parent stream OpenStream already opened on lower.
		args.UserStream = streamID
		return 0, nil
	case source.CmdReadStream:
		pid := args.UserStream.(int64)
		n, err := lower.ReadStream(pid, args.Data)
		return int64(n), err
	case source.CmdCloseStream:
		c.closeStreamCalls++
		return 0, nil
	case source.CmdSupports:
		return int64(s.Capabilities), nil
	default:
		return 0, nil
	}
}

func TestLayeredCloseStreamPropagatesExactlyOnce(t *testing.T) {
	leaf := sourcetest.New(sourcetest.Options{Data: []byte("0123456789"), Streamable: true})

	c := &countingLayer{}
	caps := source.CapSupports | source.CapOpenStream | source.CapReadStream | source.CapCloseStream
	upper := source.New(leaf, c.callback, c, caps)

	const n = 5
	ids := make([]int64, n)
	for i := 0; i < n; i++ {
		id, err := upper.OpenStream()
		require.NoError(t, err)
		ids[i] = id
	}

	// close in shuffled order
	order := []int{3, 0, 4, 1, 2}
	for _, i := range order {
		require.NoError(t, upper.CloseStream(ids[i]))
	}

	assert.Equal(t, n, c.closeStreamCalls)

	// the lower leaf must also have zero live streams left: a fresh
	// OpenStream must reuse one of the ids just freed rather than
	// growing the table past n.
	id, err := leaf.OpenStream()
	require.NoError(t, err)
	assert.Less(t, id, int64(n))
	require.NoError(t, leaf.CloseStream(id))
}
