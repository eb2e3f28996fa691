package insertdest

import (
	"context"
	"sync"

	destErrors "github.com/moleculadb/insertdest/errors"
	"github.com/moleculadb/insertdest/logger"
	"github.com/moleculadb/insertdest/storage"
)

// PoolDestination maintains a pool of partially-filled blocks belonging to
// one relation and hands them out one at a time, reusing a block across
// many checkouts until it finally fills.
type PoolDestination struct {
	rel     storage.Relation
	layout  storage.Layout
	manager storage.Manager
	notify  *Notifier
	log     logger.Logger
	stats   Stats

	mu   sync.Mutex
	pool blockPool
}

// NewPoolDestination constructs a block-pool destination for rel. layout
// defaults to rel.DefaultLayout() when nil.
func NewPoolDestination(rel storage.Relation, layout storage.Layout, manager storage.Manager, notify *Notifier, log logger.Logger, stats Stats) *PoolDestination {
	if layout == nil {
		layout = rel.DefaultLayout()
	}
	if log == nil {
		log = logger.NopLogger
	}
	if stats == nil {
		stats = NopStats
	}
	return &PoolDestination{rel: rel, layout: layout, manager: manager, notify: notify, log: log, stats: stats}
}

// AddAllBlocksFromRelation seeds the pool's backlog from the relation's
// current block list. It must run before any insertion begins, and only
// once. A second call panics; a call issued after insertion has started is
// not detected.
func (d *PoolDestination) AddAllBlocksFromRelation() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pool.seeded {
		panic("insertdest: AddAllBlocksFromRelation called more than once")
	}
	d.pool.seed(d.rel.BlockIDs())
	d.pool.seeded = true
}

func (d *PoolDestination) getBlockForInsertion(excluded map[storage.BlockID]bool) (*BlockRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pool.get(d.manager, d.rel, d.layout, -1, d.stats, excluded)
}

func (d *PoolDestination) returnBlock(ctx context.Context, ref *BlockRef, full bool) error {
	d.mu.Lock()
	sealed := d.pool.put(ref, full)
	d.mu.Unlock()
	if !sealed {
		return nil
	}
	d.stats.BlockSealed(d.rel.ID(), ref.ID())
	return d.notify.notifyBlockFilled(ctx, ref.ID())
}

func (d *PoolDestination) InsertTuple(ctx context.Context, t storage.Tuple) error {
	if err := checkSchema(d.rel, t); err != nil {
		return err
	}
	return insertOne(t,
		d.getBlockForInsertion,
		func(ref *BlockRef, full bool) error { return d.returnBlock(ctx, ref, full) },
		func() { d.stats.TupleInserted(d.rel.ID()) },
	)
}

func (d *PoolDestination) InsertTupleInBatch(ctx context.Context, t storage.Tuple) error {
	if err := checkSchema(d.rel, t); err != nil {
		return err
	}
	return insertOneBatch(t,
		d.getBlockForInsertion,
		func(ref *BlockRef, full bool) error { return d.returnBlock(ctx, ref, full) },
	)
}

func (d *PoolDestination) BulkInsert(ctx context.Context, accessor storage.Accessor, alwaysMarkFull bool) error {
	return bulkInsertLoop(accessor, nil, alwaysMarkFull,
		d.getBlockForInsertion,
		func(ref *BlockRef, full bool) error { return d.returnBlock(ctx, ref, full) },
		func() { d.stats.TupleInserted(d.rel.ID()) },
	)
}

func (d *PoolDestination) BulkInsertRemapped(ctx context.Context, attributeMap []int, accessor storage.Accessor, alwaysMarkFull bool) error {
	return bulkInsertLoop(accessor, remapper(attributeMap), alwaysMarkFull,
		d.getBlockForInsertion,
		func(ref *BlockRef, full bool) error { return d.returnBlock(ctx, ref, full) },
		func() { d.stats.TupleInserted(d.rel.ID()) },
	)
}

func (d *PoolDestination) InsertTuplesFromVector(ctx context.Context, tuples []storage.Tuple) error {
	for _, t := range tuples {
		if err := d.InsertTuple(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (d *PoolDestination) PartitioningAttribute() storage.AttributeID {
	return storage.NoAttribute
}

func (d *PoolDestination) PartiallyFilledBlocks() ([]*BlockRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pool.drainPartial(), nil
}

func (d *PoolDestination) TouchedBlocks() ([]storage.BlockID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pool.touched(), nil
}

// AcquireSpecificBlock and ReleaseSpecificBlock give a privileged
// collaborator, such as a sort-run creator, direct access to a named block
// instead of whatever the pool would hand out next.
func (d *PoolDestination) AcquireSpecificBlock(id storage.BlockID) (*BlockRef, error) {
	h, err := d.manager.LoadBlock(id)
	if err != nil {
		return nil, destErrors.WithCode(destErrors.Wrap(err, "loading block"), destErrors.BlockUnavailable)
	}
	return newBlockRef(h, -1), nil
}

func (d *PoolDestination) ReleaseSpecificBlock(ctx context.Context, ref *BlockRef, full bool) error {
	return d.returnBlock(ctx, ref, full)
}
