package insertdest

import (
	"context"
	"sort"
	"sync"

	destErrors "github.com/moleculadb/insertdest/errors"
	"github.com/moleculadb/insertdest/logger"
	"github.com/moleculadb/insertdest/storage"
)

// PartitionAwareDestination maintains one independent block pool per
// partition and routes each tuple to the pool selected by the relation's
// partition scheme applied to the tuple's partitioning-attribute value.
type PartitionAwareDestination struct {
	rel     storage.Relation
	scheme  storage.PartitionScheme
	layout  storage.Layout
	manager storage.Manager
	notify  *Notifier
	log     logger.Logger
	stats   Stats

	mus   []sync.Mutex
	pools []blockPool
}

// NewPartitionAwareDestination constructs a partition-aware destination for
// rel, with one pool per partition in scheme. layout defaults to
// rel.DefaultLayout() when nil.
func NewPartitionAwareDestination(rel storage.Relation, scheme storage.PartitionScheme, layout storage.Layout, manager storage.Manager, notify *Notifier, log logger.Logger, stats Stats) *PartitionAwareDestination {
	if layout == nil {
		layout = rel.DefaultLayout()
	}
	if log == nil {
		log = logger.NopLogger
	}
	if stats == nil {
		stats = NopStats
	}
	n := scheme.N()
	return &PartitionAwareDestination{
		rel: rel, scheme: scheme, layout: layout, manager: manager,
		notify: notify, log: log, stats: stats,
		mus: make([]sync.Mutex, n), pools: make([]blockPool, n),
	}
}

// AddAllBlocksFromRelation seeds every partition's backlog from the
// relation's current block list, routing each block id by the scheme's
// recorded partition mapping. Blocks the scheme has no mapping for are
// skipped; the storage manager is responsible for having recorded every
// block it ever created under a partition-aware destination.
func (d *PartitionAwareDestination) AddAllBlocksFromRelation() {
	byPartition := make(map[int][]storage.BlockID)
	for _, id := range d.rel.BlockIDs() {
		p, ok := d.scheme.BlockPartition(id)
		if !ok {
			continue
		}
		byPartition[p] = append(byPartition[p], id)
	}
	for p := range d.pools {
		d.mus[p].Lock()
		if d.pools[p].seeded {
			d.mus[p].Unlock()
			panic("insertdest: AddAllBlocksFromRelation called more than once")
		}
		d.pools[p].seed(byPartition[p])
		d.pools[p].seeded = true
		d.mus[p].Unlock()
	}
}

// partitionRecorder is implemented by partition schemes that remember which
// partition a block was created under, such as partition.HashModScheme, so
// a later AddAllBlocksFromRelation bootstrap on a fresh destination can
// route the block back to the right pool.
type partitionRecorder interface {
	RecordBlock(id storage.BlockID, partition int)
}

func (d *PartitionAwareDestination) getBlockForInsertion(p int, excluded map[storage.BlockID]bool) (*BlockRef, error) {
	d.mus[p].Lock()
	ref, err := d.pools[p].get(d.manager, d.rel, d.layout, p, d.stats, excluded)
	d.mus[p].Unlock()
	if err != nil {
		return nil, err
	}
	if rec, ok := d.scheme.(partitionRecorder); ok {
		if _, known := d.scheme.BlockPartition(ref.ID()); !known {
			rec.RecordBlock(ref.ID(), p)
		}
	}
	return ref, nil
}

func (d *PartitionAwareDestination) returnBlock(ctx context.Context, p int, ref *BlockRef, full bool) error {
	d.mus[p].Lock()
	sealed := d.pools[p].put(ref, full)
	d.mus[p].Unlock()
	if !sealed {
		return nil
	}
	d.stats.BlockSealed(d.rel.ID(), ref.ID())
	return d.notify.notifyBlockFilled(ctx, ref.ID())
}

func (d *PartitionAwareDestination) partitionOf(t storage.Tuple) (int, error) {
	attr := d.scheme.PartitioningAttribute()
	v, ok := t.Value(attr)
	if !ok {
		return 0, destErrors.New(destErrors.PartitionKeyMissing, "tuple missing partitioning attribute")
	}
	p, err := d.scheme.PartitionOf(v)
	if err != nil {
		return 0, destErrors.Wrap(err, "computing partition")
	}
	return p, nil
}

func (d *PartitionAwareDestination) InsertTuple(ctx context.Context, t storage.Tuple) error {
	if err := checkSchema(d.rel, t); err != nil {
		return err
	}
	p, err := d.partitionOf(t)
	if err != nil {
		return err
	}
	return insertOne(t,
		func(excluded map[storage.BlockID]bool) (*BlockRef, error) { return d.getBlockForInsertion(p, excluded) },
		func(ref *BlockRef, full bool) error { return d.returnBlock(ctx, p, ref, full) },
		func() { d.stats.TupleInserted(d.rel.ID()) },
	)
}

func (d *PartitionAwareDestination) InsertTupleInBatch(ctx context.Context, t storage.Tuple) error {
	if err := checkSchema(d.rel, t); err != nil {
		return err
	}
	p, err := d.partitionOf(t)
	if err != nil {
		return err
	}
	return insertOneBatch(t,
		func(excluded map[storage.BlockID]bool) (*BlockRef, error) { return d.getBlockForInsertion(p, excluded) },
		func(ref *BlockRef, full bool) error { return d.returnBlock(ctx, p, ref, full) },
	)
}

// partitionBatches drains accessor, applying remap (if any) to each tuple
// and grouping the results by partition while preserving each partition's
// relative arrival order.
func (d *PartitionAwareDestination) partitionBatches(accessor storage.Accessor, remap func(storage.Tuple) storage.Tuple) (map[int][]storage.Tuple, error) {
	attr := d.scheme.PartitioningAttribute()
	batches := make(map[int][]storage.Tuple)
	for accessor.Next() {
		t := accessor.Tuple()
		if remap != nil {
			t = remap(t)
		}
		v, ok := t.Value(attr)
		if !ok {
			return nil, destErrors.New(destErrors.PartitionKeyMissing, "tuple missing partitioning attribute")
		}
		p, err := d.scheme.PartitionOf(v)
		if err != nil {
			return nil, destErrors.Wrap(err, "computing partition")
		}
		batches[p] = append(batches[p], t)
	}
	return batches, nil
}

func (d *PartitionAwareDestination) bulkInsertBatches(ctx context.Context, batches map[int][]storage.Tuple, alwaysMarkFull bool) error {
	parts := make([]int, 0, len(batches))
	for p := range batches {
		parts = append(parts, p)
	}
	sort.Ints(parts)

	for _, p := range parts {
		pp := p
		acc := newTupleSliceAccessor(batches[pp])
		err := bulkInsertLoop(acc, nil, alwaysMarkFull,
			func(excluded map[storage.BlockID]bool) (*BlockRef, error) { return d.getBlockForInsertion(pp, excluded) },
			func(ref *BlockRef, full bool) error { return d.returnBlock(ctx, pp, ref, full) },
			func() { d.stats.TupleInserted(d.rel.ID()) },
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *PartitionAwareDestination) BulkInsert(ctx context.Context, accessor storage.Accessor, alwaysMarkFull bool) error {
	batches, err := d.partitionBatches(accessor, nil)
	if err != nil {
		return err
	}
	return d.bulkInsertBatches(ctx, batches, alwaysMarkFull)
}

// BulkInsertRemapped partitions on the remapped tuple, so the partitioning
// attribute is effectively read from column attributeMap[attr] of the
// accessor's rows, exactly as the remap affects every other attribute.
func (d *PartitionAwareDestination) BulkInsertRemapped(ctx context.Context, attributeMap []int, accessor storage.Accessor, alwaysMarkFull bool) error {
	batches, err := d.partitionBatches(accessor, remapper(attributeMap))
	if err != nil {
		return err
	}
	return d.bulkInsertBatches(ctx, batches, alwaysMarkFull)
}

func (d *PartitionAwareDestination) InsertTuplesFromVector(ctx context.Context, tuples []storage.Tuple) error {
	for _, t := range tuples {
		if err := d.InsertTuple(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (d *PartitionAwareDestination) PartitioningAttribute() storage.AttributeID {
	return d.scheme.PartitioningAttribute()
}

func (d *PartitionAwareDestination) PartiallyFilledBlocks() ([]*BlockRef, error) {
	var out []*BlockRef
	for p := range d.pools {
		d.mus[p].Lock()
		refs := d.pools[p].drainPartial()
		d.mus[p].Unlock()
		out = append(out, refs...)
	}
	return out, nil
}

func (d *PartitionAwareDestination) TouchedBlocks() ([]storage.BlockID, error) {
	var out []storage.BlockID
	for p := range d.pools {
		d.mus[p].Lock()
		out = append(out, d.pools[p].touched()...)
		d.mus[p].Unlock()
	}
	return out, nil
}

// AcquireSpecificBlockInPartition and ReleaseSpecificBlockInPartition give
// a privileged collaborator direct access to a named block within one
// partition. Partition-aware destinations do not implement the generic
// Advanced interface because routing an advanced checkout requires
// knowing which partition's pool it belongs to.
func (d *PartitionAwareDestination) AcquireSpecificBlockInPartition(id storage.BlockID, partition int) (*BlockRef, error) {
	h, err := d.manager.LoadBlock(id)
	if err != nil {
		return nil, destErrors.WithCode(destErrors.Wrap(err, "loading block"), destErrors.BlockUnavailable)
	}
	return newBlockRef(h, partition), nil
}

func (d *PartitionAwareDestination) ReleaseSpecificBlockInPartition(ctx context.Context, ref *BlockRef, partition int, full bool) error {
	return d.returnBlock(ctx, partition, ref, full)
}
