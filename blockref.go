package insertdest

import (
	"sync/atomic"

	"github.com/moleculadb/insertdest/storage"
)

// BlockRef is a move-only exclusive handle to one storage block, held by a
// worker for the duration of a checkout. Once returned through a
// destination's get/return protocol it must not be used again; doing so is
// a caller bug, and Insert panics rather than silently corrupting a block
// someone else now owns.
type BlockRef struct {
	handle    storage.BlockHandle
	partition int // -1 when the owning strategy does not partition.
	consumed  int32
}

func newBlockRef(h storage.BlockHandle, partition int) *BlockRef {
	return &BlockRef{handle: h, partition: partition}
}

// ID returns the underlying block's id.
func (r *BlockRef) ID() storage.BlockID {
	return r.handle.ID()
}

// Partition returns the partition this block belongs to, or -1 if the
// owning destination is not partition-aware.
func (r *BlockRef) Partition() int {
	return r.partition
}

// Insert appends t to the held block.
func (r *BlockRef) Insert(t storage.Tuple) (storage.InsertResult, error) {
	if atomic.LoadInt32(&r.consumed) != 0 {
		panic("insertdest: use of BlockRef after it was returned")
	}
	return r.handle.Insert(t)
}

func (r *BlockRef) release() {
	if !atomic.CompareAndSwapInt32(&r.consumed, 0, 1) {
		panic("insertdest: BlockRef returned more than once")
	}
}
