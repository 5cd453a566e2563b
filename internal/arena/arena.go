// Package arena implements a blob-chunked bump allocator: typed object
// pools with coarse, whole-arena free and an optional fixed-size free
// list. In this module ident.Table allocates its Ident records from an
// arena; the other subsystems allocate on the ordinary Go heap.
//
// Go already has a garbage collector, so the point of a bump arena here
// isn't memory safety — it's O(1) "drop all" between translation units,
// and a single allocation path for a pool instead of an ad-hoc slice
// growing independently.
package arena

// DefaultChunkObjects is the number of objects a fresh blob holds before
// the arena allocates another one, the same fixed-burst idea the scanner
// applies to byte reads, applied here to object pools instead.
const DefaultChunkObjects = 512

// Arena is a typed bump allocator over []T. It never shrinks except via
// Reset, which drops every blob at once.
type Arena[T any] struct {
	name      string
	chunkSize int
	blobs     [][]T
	free      []*T // free_one_entry's freelist, for constant-size slot reuse
	allocated int
	reused    int
}

// New creates an arena named for diagnostics/profiling purposes only.
func New[T any](name string) *Arena[T] {
	return &Arena[T]{name: name, chunkSize: DefaultChunkObjects}
}

// WithChunkSize overrides the per-blob object count; useful for arenas that
// hold very large or very small T (entry points vs. pseudos).
func (a *Arena[T]) WithChunkSize(n int) *Arena[T] {
	if n > 0 {
		a.chunkSize = n
	}
	return a
}

// Name returns the arena's diagnostic name.
func (a *Arena[T]) Name() string { return a.name }

// Allocate returns a pointer to a freshly zeroed T. If a freed slot is
// available it is reused first; otherwise the current blob is bumped,
// allocating a new blob when full.
func (a *Arena[T]) Allocate() *T {
	if n := len(a.free); n > 0 {
		p := a.free[n-1]
		a.free = a.free[:n-1]
		var zero T
		*p = zero
		a.reused++
		return p
	}
	if len(a.blobs) == 0 || a.blobFull(a.blobs[len(a.blobs)-1]) {
		a.blobs = append(a.blobs, make([]T, 0, a.chunkSize))
	}
	blob := a.blobs[len(a.blobs)-1]
	blob = blob[:len(blob)+1]
	a.blobs[len(a.blobs)-1] = blob
	a.allocated++
	return &blob[len(blob)-1]
}

func (a *Arena[T]) blobFull(blob []T) bool {
	return len(blob) == cap(blob)
}

// Free pushes p onto the freelist for reuse by a later Allocate call. The
// caller is responsible for p having come from this arena and for not
// using it again until it is handed back by Allocate — per-object free is
// otherwise unsupported.
func (a *Arena[T]) Free(p *T) {
	a.free = append(a.free, p)
}

// Reset drops every blob and the freelist in one step. Any pointer
// obtained from this arena before Reset is invalid afterward; callers
// must not retain cross-translation-unit pointers, which the driver's
// phase structure guarantees.
func (a *Arena[T]) Reset() {
	a.blobs = nil
	a.free = nil
	a.allocated = 0
	a.reused = 0
}

// Stats reports allocation counters, useful for the same kind of coarse
// profiling the original's allocate.c tracks per descriptor.
func (a *Arena[T]) Stats() (allocated, reused, blobs int) {
	return a.allocated, a.reused, len(a.blobs)
}

// Each calls fn for every slot across every blob, in allocation order,
// including slots that were handed back through Free and not yet reused.
// It walks "everything ever allocated from this arena" (e.g. for a final
// consistency check) rather than following graph edges.
func (a *Arena[T]) Each(fn func(*T)) {
	for _, blob := range a.blobs {
		for i := range blob {
			fn(&blob[i])
		}
	}
}
