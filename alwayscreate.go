package insertdest

import (
	"context"
	"sync"

	destErrors "github.com/moleculadb/insertdest/errors"
	"github.com/moleculadb/insertdest/logger"
	"github.com/moleculadb/insertdest/storage"
)

// AlwaysCreateDestination allocates a fresh block on every checkout and
// never keeps a partially-filled block around for reuse. Suited to
// producers, such as a sort-run creator, where every worker needs a block
// whose contents are exactly what it wrote and nothing else, even at the
// cost of leaving blocks underfilled.
type AlwaysCreateDestination struct {
	rel     storage.Relation
	layout  storage.Layout
	manager storage.Manager
	notify  *Notifier
	log     logger.Logger
	stats   Stats

	mu               sync.Mutex
	returnedBlockIDs []storage.BlockID
}

// NewAlwaysCreateDestination constructs an always-create destination for
// rel. layout defaults to rel.DefaultLayout() when nil.
func NewAlwaysCreateDestination(rel storage.Relation, layout storage.Layout, manager storage.Manager, notify *Notifier, log logger.Logger, stats Stats) *AlwaysCreateDestination {
	if layout == nil {
		layout = rel.DefaultLayout()
	}
	if log == nil {
		log = logger.NopLogger
	}
	if stats == nil {
		stats = NopStats
	}
	return &AlwaysCreateDestination{rel: rel, layout: layout, manager: manager, notify: notify, log: log, stats: stats}
}

// getBlockForInsertion always mints a brand new block, so excluded (which
// only matters for pool-backed strategies that might otherwise hand back a
// just-rejected block) is irrelevant here.
func (d *AlwaysCreateDestination) getBlockForInsertion(excluded map[storage.BlockID]bool) (*BlockRef, error) {
	h, err := d.manager.CreateBlock(d.rel, d.layout)
	if err != nil {
		return nil, destErrors.WithCode(destErrors.Wrap(err, "creating block"), destErrors.BlockUnavailable)
	}
	d.stats.BlockCreated(d.rel.ID())
	return newBlockRef(h, -1), nil
}

// returnBlock records ref's id regardless of full, and notifies the
// scheduler only if full.
func (d *AlwaysCreateDestination) returnBlock(ctx context.Context, ref *BlockRef, full bool) error {
	d.mu.Lock()
	d.returnedBlockIDs = append(d.returnedBlockIDs, ref.ID())
	d.mu.Unlock()
	ref.release()
	if !full {
		return nil
	}
	d.stats.BlockSealed(d.rel.ID(), ref.ID())
	return d.notify.notifyBlockFilled(ctx, ref.ID())
}

func (d *AlwaysCreateDestination) InsertTuple(ctx context.Context, t storage.Tuple) error {
	if err := checkSchema(d.rel, t); err != nil {
		return err
	}
	return insertOne(t,
		d.getBlockForInsertion,
		func(ref *BlockRef, full bool) error { return d.returnBlock(ctx, ref, full) },
		func() { d.stats.TupleInserted(d.rel.ID()) },
	)
}

func (d *AlwaysCreateDestination) InsertTupleInBatch(ctx context.Context, t storage.Tuple) error {
	if err := checkSchema(d.rel, t); err != nil {
		return err
	}
	return insertOneBatch(t,
		d.getBlockForInsertion,
		func(ref *BlockRef, full bool) error { return d.returnBlock(ctx, ref, full) },
	)
}

func (d *AlwaysCreateDestination) BulkInsert(ctx context.Context, accessor storage.Accessor, alwaysMarkFull bool) error {
	return bulkInsertLoop(accessor, nil, alwaysMarkFull,
		d.getBlockForInsertion,
		func(ref *BlockRef, full bool) error { return d.returnBlock(ctx, ref, full) },
		func() { d.stats.TupleInserted(d.rel.ID()) },
	)
}

func (d *AlwaysCreateDestination) BulkInsertRemapped(ctx context.Context, attributeMap []int, accessor storage.Accessor, alwaysMarkFull bool) error {
	return bulkInsertLoop(accessor, remapper(attributeMap), alwaysMarkFull,
		d.getBlockForInsertion,
		func(ref *BlockRef, full bool) error { return d.returnBlock(ctx, ref, full) },
		func() { d.stats.TupleInserted(d.rel.ID()) },
	)
}

func (d *AlwaysCreateDestination) InsertTuplesFromVector(ctx context.Context, tuples []storage.Tuple) error {
	for _, t := range tuples {
		if err := d.InsertTuple(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (d *AlwaysCreateDestination) PartitioningAttribute() storage.AttributeID {
	return storage.NoAttribute
}

// PartiallyFilledBlocks always returns empty: an always-create destination
// never keeps a block around once it's been returned.
func (d *AlwaysCreateDestination) PartiallyFilledBlocks() ([]*BlockRef, error) {
	return nil, nil
}

func (d *AlwaysCreateDestination) TouchedBlocks() ([]storage.BlockID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]storage.BlockID, len(d.returnedBlockIDs))
	copy(out, d.returnedBlockIDs)
	return out, nil
}
