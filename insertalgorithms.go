package insertdest

import (
	destErrors "github.com/moleculadb/insertdest/errors"
	"github.com/moleculadb/insertdest/storage"
)

// insertOne implements insert_tuple's checkout discipline: get a block,
// attempt the insert, and if the block reports no room, treat it as full
// and retry against a new checkout. A result that exactly fills the block
// also finalizes it. A NoRoom result always seals the rejecting block, so
// it leaves the pool for good and a retry can never be handed it again.
func insertOne(t storage.Tuple, get func(excluded map[storage.BlockID]bool) (*BlockRef, error), put func(*BlockRef, bool) error, onTuple func()) error {
	for {
		ref, err := get(nil)
		if err != nil {
			return err
		}
		res, err := ref.Insert(t)
		if err != nil {
			_ = put(ref, false)
			return destErrors.WithCode(destErrors.Wrap(err, "inserting tuple"), destErrors.SchemaMismatch)
		}
		switch res {
		case storage.NoRoom:
			if err := put(ref, true); err != nil {
				return err
			}
			continue
		case storage.InsertedFull:
			if onTuple != nil {
				onTuple()
			}
			return put(ref, true)
		default:
			if onTuple != nil {
				onTuple()
			}
			return put(ref, false)
		}
	}
}

// insertOneBatch implements insert_tuple_in_batch: identical to insertOne
// except a rejected insert never finalizes the block it was rejected from,
// since the caller is mid-batch and the block may still take tuples with a
// different byte layout later. Because the block goes back to the pool with
// full=false instead of being sealed, get could otherwise hand the very
// same rejecting block straight back out (it's the most recently returned
// entry); excluded accumulates every block id this call has already been
// rejected from so a retry always makes progress toward a block that can
// actually take the tuple, or a freshly created one.
func insertOneBatch(t storage.Tuple, get func(excluded map[storage.BlockID]bool) (*BlockRef, error), put func(*BlockRef, bool) error) error {
	var excluded map[storage.BlockID]bool
	for {
		ref, err := get(excluded)
		if err != nil {
			return err
		}
		res, err := ref.Insert(t)
		if err != nil {
			_ = put(ref, false)
			return destErrors.WithCode(destErrors.Wrap(err, "inserting tuple"), destErrors.SchemaMismatch)
		}
		switch res {
		case storage.NoRoom:
			id := ref.ID()
			if err := put(ref, false); err != nil {
				return err
			}
			if excluded == nil {
				excluded = make(map[storage.BlockID]bool)
			}
			excluded[id] = true
			continue
		case storage.InsertedFull:
			return put(ref, true)
		default:
			return put(ref, false)
		}
	}
}

// bulkInsertLoop implements bulk_insert/bulk_insert_remapped: one block is
// held across consecutive tuples from accessor, only switching when it
// reports no room. alwaysMarkFull, if set, finalizes every block the call
// actually wrote to when it is done with it, but never a block that
// received zero tuples during this call (flush's wroteAny && sealIfWritten).
// A rejecting block goes back to the pool unsealed whenever flush will not
// seal it — that is, whenever alwaysMarkFull is unset, or it is set but this
// call never wrote to the block before the rejection (the exact shape of a
// historical full block drawn straight out of a seeded backlog). In every
// such case excluded records the block's id so the next get() cannot cycle
// back onto the same unsealed, still-rejecting block; it is only safe to
// omit a block from excluded when flush is about to seal it for good.
func bulkInsertLoop(
	accessor storage.Accessor,
	remap func(storage.Tuple) storage.Tuple,
	alwaysMarkFull bool,
	get func(excluded map[storage.BlockID]bool) (*BlockRef, error),
	put func(*BlockRef, bool) error,
	onTuple func(),
) error {
	var ref *BlockRef
	var wroteAny bool
	var excluded map[storage.BlockID]bool

	flush := func(sealIfWritten bool) error {
		if ref == nil {
			return nil
		}
		full := wroteAny && sealIfWritten
		err := put(ref, full)
		ref = nil
		wroteAny = false
		return err
	}

	for accessor.Next() {
		t := accessor.Tuple()
		if remap != nil {
			t = remap(t)
		}
		for {
			if ref == nil {
				var err error
				ref, err = get(excluded)
				if err != nil {
					return err
				}
				wroteAny = false
			}
			res, err := ref.Insert(t)
			if err != nil {
				_ = flush(false)
				return destErrors.WithCode(destErrors.Wrap(err, "inserting tuple"), destErrors.SchemaMismatch)
			}
			switch res {
			case storage.NoRoom:
				if !(alwaysMarkFull && wroteAny) {
					if excluded == nil {
						excluded = make(map[storage.BlockID]bool)
					}
					excluded[ref.ID()] = true
				}
				if err := flush(alwaysMarkFull); err != nil {
					return err
				}
				continue
			case storage.InsertedFull:
				wroteAny = true
				if onTuple != nil {
					onTuple()
				}
				if err := flush(true); err != nil {
					return err
				}
			default:
				wroteAny = true
				if onTuple != nil {
					onTuple()
				}
			}
			break
		}
	}
	return flush(alwaysMarkFull)
}

// remappedTuple wraps a tuple so that reading attribute attr actually reads
// attributeMap[attr] from the underlying tuple, per bulk_insert_remapped.
type remappedTuple struct {
	src     storage.Tuple
	attrMap []int
}

func (t remappedTuple) Value(attr storage.AttributeID) (interface{}, bool) {
	idx := int(attr)
	if idx < 0 || idx >= len(t.attrMap) {
		return nil, false
	}
	src := t.attrMap[idx]
	if src < 0 {
		return nil, false
	}
	return t.src.Value(storage.AttributeID(src))
}

func remapper(attributeMap []int) func(storage.Tuple) storage.Tuple {
	if attributeMap == nil {
		return nil
	}
	return func(t storage.Tuple) storage.Tuple {
		return remappedTuple{src: t, attrMap: attributeMap}
	}
}

// tupleSliceAccessor is an internal Accessor over an in-memory tuple slice,
// used by the partition-aware strategy to re-batch an incoming accessor's
// tuples per partition before running them through bulkInsertLoop.
type tupleSliceAccessor struct {
	tuples []storage.Tuple
	pos    int
}

func newTupleSliceAccessor(tuples []storage.Tuple) *tupleSliceAccessor {
	return &tupleSliceAccessor{tuples: tuples, pos: -1}
}

func (a *tupleSliceAccessor) Next() bool {
	a.pos++
	return a.pos < len(a.tuples)
}

func (a *tupleSliceAccessor) Tuple() storage.Tuple {
	return a.tuples[a.pos]
}
