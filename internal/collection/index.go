package collection

import "sync/atomic"

// Index holds the current published Snapshot behind a single atomic
// pointer. Readers Load a snapshot and query it directly; a prior
// snapshot stays alive for as long as a reader holds it, released by
// the Go garbage collector once the last reference drops — this is the
// "refcounted, freed when the last reader drops it" model in 4.3,
// implemented by ordinary GC rather than manual refcounting, which is
// the idiomatic Go equivalent of the same guarantee.
type Index struct {
	current atomic.Pointer[Snapshot]
}

// NewIndex creates an Index with no published snapshot yet.
func NewIndex() *Index {
	return &Index{}
}

// Load returns the current snapshot, or nil if none has been published.
func (idx *Index) Load() *Snapshot {
	return idx.current.Load()
}

// Publish atomically swaps in a newly built snapshot.
func (idx *Index) Publish(s *Snapshot) {
	idx.current.Store(s)
}
