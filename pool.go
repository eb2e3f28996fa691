package insertdest

import (
	destErrors "github.com/moleculadb/insertdest/errors"
	"github.com/moleculadb/insertdest/storage"
)

// blockPool is the state machine shared by the block-pool strategy (one
// instance) and the partition-aware strategy (one instance per partition):
// a stack of in-memory partial blocks, a backlog of known-but-unloaded
// block ids, and the ids of every block this pool has ever sealed or
// drained. Not safe for concurrent use; callers serialize access with their
// own mutex.
type blockPool struct {
	availableRefs []*BlockRef
	availableIDs  []storage.BlockID
	doneIDs       []storage.BlockID
	drainedIDs    []storage.BlockID
	seeded        bool
}

// seed adds ids to the backlog of blocks known to exist but not yet loaded.
func (p *blockPool) seed(ids []storage.BlockID) {
	p.availableIDs = append(p.availableIDs, ids...)
}

// get returns the next block to hand out for insertion: a cache-warm
// in-memory partial first (most recently returned), then a backlog id
// loaded from the manager, then a freshly created block. excluded, if
// non-nil, names block ids get must not hand back even if they are sitting
// in availableRefs: a caller mid-retry after a NoRoom passes the block it
// was just rejected from here, so a rejecting block already back on top of
// the LIFO stack can't be handed straight back out and retried forever.
func (p *blockPool) get(mgr storage.Manager, rel storage.Relation, layout storage.Layout, partition int, stats Stats, excluded map[storage.BlockID]bool) (*BlockRef, error) {
	if idx, ok := p.pickAvailableRef(excluded); ok {
		ref := p.availableRefs[idx]
		p.availableRefs = append(p.availableRefs[:idx], p.availableRefs[idx+1:]...)
		return ref, nil
	}
	if n := len(p.availableIDs); n > 0 {
		id := p.availableIDs[n-1]
		p.availableIDs = p.availableIDs[:n-1]
		h, err := mgr.LoadBlock(id)
		if err != nil {
			return nil, destErrors.WithCode(destErrors.Wrap(err, "loading block"), destErrors.BlockUnavailable)
		}
		return newBlockRef(h, partition), nil
	}
	h, err := mgr.CreateBlock(rel, layout)
	if err != nil {
		return nil, destErrors.WithCode(destErrors.Wrap(err, "creating block"), destErrors.BlockUnavailable)
	}
	if stats != nil {
		stats.BlockCreated(rel.ID())
	}
	return newBlockRef(h, partition), nil
}

// pickAvailableRef finds the most recently returned entry in availableRefs
// that isn't in excluded, searching from the top of the stack down so a
// cache-warm block is still preferred whenever it is usable.
func (p *blockPool) pickAvailableRef(excluded map[storage.BlockID]bool) (int, bool) {
	for i := len(p.availableRefs) - 1; i >= 0; i-- {
		if len(excluded) == 0 || !excluded[p.availableRefs[i].ID()] {
			return i, true
		}
	}
	return 0, false
}

// put returns ref to the pool. If full, it is sealed: recorded as done and
// released for good. Otherwise it's kept on the available stack for the
// next get. put reports whether ref was sealed, so the caller knows
// whether to emit a pipeline notification.
func (p *blockPool) put(ref *BlockRef, full bool) bool {
	if full {
		p.doneIDs = append(p.doneIDs, ref.ID())
		ref.release()
		return true
	}
	p.availableRefs = append(p.availableRefs, ref)
	return false
}

// drainPartial removes and returns every in-memory partial block this pool
// is holding, recording their ids so TouchedBlocks still accounts for them.
func (p *blockPool) drainPartial() []*BlockRef {
	refs := p.availableRefs
	p.availableRefs = nil
	for _, r := range refs {
		p.drainedIDs = append(p.drainedIDs, r.ID())
	}
	return refs
}

// touched returns every block id this pool has ever handed out for
// insertion: those sealed full, plus those drained as partials.
func (p *blockPool) touched() []storage.BlockID {
	out := make([]storage.BlockID, 0, len(p.doneIDs)+len(p.drainedIDs))
	out = append(out, p.doneIDs...)
	out = append(out, p.drainedIDs...)
	return out
}
