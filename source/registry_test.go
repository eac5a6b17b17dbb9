package source_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-zipio/zipsource/source"
	"github.com/go-zipio/zipsource/source/sourcetest"
)

func TestInvalidateFailsAnySubsequentCall(t *testing.T) {
	reg := source.NewRegistry()
	s := sourcetest.New(sourcetest.Options{Data: []byte("hello")})
	reg.Register(s)

	reg.Invalidate()

	err := s.Open()
	require.Error(t, err) // open fails once the archive is closed

	_, readErr := s.Read(make([]byte, 1))
	require.Error(t, readErr)
	var srcErr *source.Error
	require.ErrorAs(t, readErr, &srcErr)
	assert.Equal(t, source.KindArchiveClosed, srcErr.Kind)
}

func TestDeregisterTailFreesHandleForReuse(t *testing.T) {
	reg := source.NewRegistry()
	s1 := sourcetest.New(sourcetest.Options{Data: []byte("a")})
	s2 := sourcetest.New(sourcetest.Options{Data: []byte("b")})

	id1 := reg.Register(s1)
	reg.Deregister(id1)
	id2 := reg.Register(s2)

	assert.Equal(t, id1, id2)
}

func TestDeregisterNonTailSwapsLastSourceIntoFreedHandle(t *testing.T) {
	// Registry is a swap-and-pop array, not a free-list: deregistering a
	// non-tail handle moves the last live source into the freed slot, so
	// the handle that source was registered under no longer refers to it.
	reg := source.NewRegistry()
	s0 := sourcetest.New(sourcetest.Options{Data: []byte("a")})
	s1 := sourcetest.New(sourcetest.Options{Data: []byte("b")})
	s2 := sourcetest.New(sourcetest.Options{Data: []byte("c")})

	id0 := reg.Register(s0)
	reg.Register(s1)
	reg.Register(s2)

	reg.Deregister(id0)

	// s2 (formerly the tail) is now reachable at id0; invalidating the
	// registry still reaches it even though id0 was "freed".
	reg.Invalidate()
	_, err := s2.Read(make([]byte, 1))
	require.Error(t, err)
	var srcErr *source.Error
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, source.KindArchiveClosed, srcErr.Kind)
}

// freeCountingLeaf counts FREE dispatches to verify Source.Free recurses
// through every layer exactly once.
type freeCountingLeaf struct {
	freed int
}

func (f *freeCountingLeaf) callback(s *source.Source, streamID int64, args *source.Args, cmd source.Cmd) (int64, error) {
	if cmd == source.CmdFree {
		f.freed++
	}
	return 0, nil
}

func TestFreeRecursesThroughLayers(t *testing.T) {
	leaf := &freeCountingLeaf{}
	leafSrc := source.New(nil, leaf.callback, leaf, source.CapSupports)

	mid := &freeCountingLeaf{}
	midSrc := source.New(leafSrc, mid.callback, mid, source.CapSupports)

	require.NoError(t, midSrc.Free())
	assert.Equal(t, 1, mid.freed)
	assert.Equal(t, 1, leaf.freed)
}
